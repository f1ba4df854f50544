package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"planbench/internal/config"
	"planbench/internal/report"
	"planbench/internal/result"
)

var (
	flagReportFormat string
	flagShowPassed   bool
	flagMaxMsgLen    int
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [results.jsonl]",
		Short: "Summarize a results file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			} else {
				cfg, err := config.LoadOrDefault(cfgFile)
				if err != nil {
					return err
				}
				path = result.DefaultOutPath(cfg.Results.Dir, cfg.PlanFormat, cfg.Models.Planner, cfg.Models.Coder)
			}
			return report.Generate(path, flagReportFormat, os.Stdout, report.Options{
				ShowPassed: flagShowPassed,
				MaxMsgLen:  flagMaxMsgLen,
			})
		},
	}
	cmd.Flags().StringVar(&flagReportFormat, "format", "table", "output format (table, markdown, json)")
	cmd.Flags().BoolVar(&flagShowPassed, "show-passed", false, "also list passed tasks")
	cmd.Flags().IntVar(&flagMaxMsgLen, "max-msg-len", 160, "trim failure messages to this length")
	return cmd
}
