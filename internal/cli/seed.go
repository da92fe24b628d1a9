package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devid8642/weather-alert/pkg/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load locations and alert configs from a YAML file",
	Example: `  locations:
    - name: Teresina
      latitude: -5.09
      longitude: -42.80
      alerts:
        - threshold: 38
          interval_minutes: 15`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := seed.Load(args[0])
	if err != nil {
		return err
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := seed.Apply(cmd.Context(), a.store, a.sync, f)
	if err != nil {
		return err
	}

	fmt.Printf("Seeded %d locations and %d alert configs\n", sum.Locations, sum.AlertConfigs)
	return nil
}
