package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <config-id>",
	Short: "Run one temperature check for an alert config",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair the periodic task table against the alert configs",
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid config id %q", args[0])
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.evaluator.Check(cmd.Context(), id)
	if err != nil {
		return err
	}

	fmt.Printf("Location:     %s\n", res.Config.Location.Name)
	fmt.Printf("Temperature:  %.1f°C\n", res.Log.Temperature)
	fmt.Printf("Threshold:    %.1f°C\n", res.Config.TemperatureThreshold)
	if res.Alert == nil {
		fmt.Println("Alert:        none")
		return nil
	}
	fmt.Printf("Alert:        #%d (notified: %t)\n", res.Alert.ID, res.Alert.Notified)
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.sync.Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	if !report.Changed() {
		fmt.Println("Periodic tasks are in sync.")
		return nil
	}
	for _, name := range report.Created {
		fmt.Printf("created   %s\n", name)
	}
	for _, name := range report.Repaired {
		fmt.Printf("repaired  %s\n", name)
	}
	for _, name := range report.Removed {
		fmt.Printf("removed   %s\n", name)
	}
	return nil
}
