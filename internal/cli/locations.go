package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devid8642/weather-alert/pkg/model"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Manage monitored locations",
}

var locationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locations",
	RunE:  runLocationsList,
}

var locationsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a location",
	RunE:  runLocationsAdd,
}

var locationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a location with its configs, alerts and logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationsDelete,
}

func init() {
	rootCmd.AddCommand(locationsCmd)
	locationsCmd.AddCommand(locationsListCmd)
	locationsCmd.AddCommand(locationsAddCmd)
	locationsCmd.AddCommand(locationsDeleteCmd)

	locationsAddCmd.Flags().StringP("name", "n", "", "Location name")
	locationsAddCmd.Flags().Float64("lat", 0, "Latitude")
	locationsAddCmd.Flags().Float64("lon", 0, "Longitude")
	_ = locationsAddCmd.MarkFlagRequired("name")
	_ = locationsAddCmd.MarkFlagRequired("lat")
	_ = locationsAddCmd.MarkFlagRequired("lon")
}

func runLocationsList(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	locs, err := a.store.ListLocations(cmd.Context())
	if err != nil {
		return fmt.Errorf("list locations: %w", err)
	}

	if len(locs) == 0 {
		fmt.Println("No locations registered. Use 'weatheralert locations add' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tLATITUDE\tLONGITUDE\n")
	for _, l := range locs {
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\n", l.ID, l.Name, l.Latitude, l.Longitude)
	}
	w.Flush()

	return nil
}

func runLocationsAdd(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	lat, _ := cmd.Flags().GetFloat64("lat")
	lon, _ := cmd.Flags().GetFloat64("lon")

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("coordinates out of range: %.4f, %.4f", lat, lon)
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	loc := &model.Location{Name: name, Latitude: lat, Longitude: lon}
	if err := a.store.CreateLocation(cmd.Context(), loc); err != nil {
		return fmt.Errorf("create location: %w", err)
	}

	fmt.Printf("Location #%d created: %s (%.4f, %.4f)\n", loc.ID, loc.Name, loc.Latitude, loc.Longitude)
	return nil
}

func runLocationsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid location id %q", args[0])
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.DeleteLocation(cmd.Context(), id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}

	fmt.Printf("Location #%d deleted\n", id)
	return nil
}
