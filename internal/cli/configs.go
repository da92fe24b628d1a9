package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/schedule"
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Manage alert configs",
}

var configsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alert configs with their periodic tasks",
	RunE:  runConfigsList,
}

var configsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an alert config and schedule its checks",
	RunE:  runConfigsAdd,
}

var configsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change the threshold or interval of an alert config",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigsUpdate,
}

var configsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an alert config and its periodic task",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigsDelete,
}

func init() {
	rootCmd.AddCommand(configsCmd)
	configsCmd.AddCommand(configsListCmd)
	configsCmd.AddCommand(configsAddCmd)
	configsCmd.AddCommand(configsUpdateCmd)
	configsCmd.AddCommand(configsDeleteCmd)

	configsAddCmd.Flags().Int64("location", 0, "Location ID")
	configsAddCmd.Flags().Float64P("threshold", "t", 0, "Temperature threshold in °C")
	configsAddCmd.Flags().IntP("interval", "i", model.DefaultCheckIntervalMinutes, "Check interval in minutes")
	_ = configsAddCmd.MarkFlagRequired("location")
	_ = configsAddCmd.MarkFlagRequired("threshold")

	configsUpdateCmd.Flags().Float64P("threshold", "t", 0, "New temperature threshold in °C")
	configsUpdateCmd.Flags().IntP("interval", "i", 0, "New check interval in minutes")
}

func runConfigsList(cmd *cobra.Command, _ []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	cfgs, err := a.store.ListAlertConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list alert configs: %w", err)
	}

	if len(cfgs) == 0 {
		fmt.Println("No alert configs. Use 'weatheralert configs add' to create one.")
		return nil
	}

	tasks, err := a.store.ListPeriodicTasks(ctx)
	if err != nil {
		return fmt.Errorf("list periodic tasks: %w", err)
	}
	byName := make(map[string]model.PeriodicTask, len(tasks))
	for _, t := range tasks {
		byName[t.Name] = t
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tLOCATION\tTHRESHOLD\tINTERVAL\tRUNS\tLAST RUN\n")
	for _, c := range cfgs {
		locName := ""
		if c.Location != nil {
			locName = c.Location.Name
		}

		runs, lastRun := "-", "-"
		if t, ok := byName[schedule.TaskName(c.ID)]; ok {
			runs = strconv.FormatInt(t.TotalRunCount, 10)
			if t.LastRunAt != nil {
				lastRun = t.LastRunAt.Local().Format("2006-01-02 15:04:05")
			}
		} else {
			runs = "[NO TASK]"
		}

		fmt.Fprintf(w, "%d\t%s\t%.1f°C\t%dm\t%s\t%s\n",
			c.ID, locName, c.TemperatureThreshold, c.CheckIntervalMinutes, runs, lastRun,
		)
	}
	w.Flush()

	return nil
}

func runConfigsAdd(cmd *cobra.Command, _ []string) error {
	locationID, _ := cmd.Flags().GetInt64("location")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	interval, _ := cmd.Flags().GetInt("interval")

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, err := a.sync.Create(cmd.Context(), locationID, threshold, interval)
	if err != nil {
		return fmt.Errorf("create alert config: %w", err)
	}

	fmt.Printf("Alert config #%d created:\n", cfg.ID)
	fmt.Printf("  Location:  %s\n", cfg.Location.Name)
	fmt.Printf("  Threshold: %.1f°C\n", cfg.TemperatureThreshold)
	fmt.Printf("  Interval:  every %d minutes\n", cfg.CheckIntervalMinutes)
	fmt.Printf("  Task:      %s\n", schedule.TaskName(cfg.ID))
	return nil
}

func runConfigsUpdate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid config id %q", args[0])
	}

	var upd model.AlertConfigUpdate
	if cmd.Flags().Changed("threshold") {
		v, _ := cmd.Flags().GetFloat64("threshold")
		upd.TemperatureThreshold = &v
	}
	if cmd.Flags().Changed("interval") {
		v, _ := cmd.Flags().GetInt("interval")
		upd.CheckIntervalMinutes = &v
	}
	if upd.TemperatureThreshold == nil && upd.CheckIntervalMinutes == nil {
		return fmt.Errorf("nothing to update: pass --threshold and/or --interval")
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	cfg, err := a.store.GetAlertConfig(ctx, id)
	if err != nil {
		return err
	}

	updated, err := a.sync.Update(ctx, cfg, upd)
	if err != nil {
		return fmt.Errorf("update alert config: %w", err)
	}

	fmt.Printf("Alert config #%d: threshold %.1f°C, every %d minutes\n",
		updated.ID, updated.TemperatureThreshold, updated.CheckIntervalMinutes)
	return nil
}

func runConfigsDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid config id %q", args[0])
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	cfg, err := a.store.GetAlertConfig(ctx, id)
	if err != nil {
		return err
	}
	if err := a.sync.Delete(ctx, cfg); err != nil {
		return fmt.Errorf("delete alert config: %w", err)
	}

	fmt.Printf("Alert config #%d deleted\n", id)
	return nil
}
