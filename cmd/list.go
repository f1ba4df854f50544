package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"planbench/internal/config"
	"planbench/internal/task"
)

var (
	flagListData  string
	flagListLimit int
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks in the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(cfgFile)
			if err != nil {
				return err
			}
			if flagListData != "" {
				cfg.Dataset = flagListData
			}
			if cfg.Dataset == "" {
				return fmt.Errorf("no dataset: set --data or the dataset field in %s", cfgFile)
			}
			tasks, err := task.LoadJSONL(cfg.Dataset, flagListLimit)
			if err != nil {
				return err
			}
			fmt.Printf("Tasks (%d):\n", len(tasks))
			for _, t := range tasks {
				fmt.Printf("  - %s (entry: %s)\n", t.ID, t.EntryPoint)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagListData, "data", "", "dataset JSONL path (overrides config)")
	cmd.Flags().IntVar(&flagListLimit, "limit", 0, "list at most N tasks")
	return cmd
}
