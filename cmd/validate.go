package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"planbench/internal/config"
	"planbench/internal/pricing"
	"planbench/internal/task"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check config, dataset and credentials before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			var problems []string

			if cfg.Dataset == "" {
				problems = append(problems, "no dataset configured")
			} else if tasks, err := task.LoadJSONL(cfg.Dataset, 0); err != nil {
				problems = append(problems, fmt.Sprintf("loading dataset: %v", err))
			} else {
				fmt.Printf("Dataset: %d tasks from %s\n", len(tasks), cfg.Dataset)
				for _, t := range tasks {
					if t.ID == "" {
						problems = append(problems, "task with empty task_id")
						continue
					}
					if strings.TrimSpace(t.Prompt) == "" {
						problems = append(problems, fmt.Sprintf("task %s: empty prompt", t.ID))
					}
					if strings.TrimSpace(t.Test) == "" {
						problems = append(problems, fmt.Sprintf("task %s: empty test program", t.ID))
					}
					if t.Prompt != "" && !strings.Contains(t.Prompt, "def "+t.EntryPoint) {
						problems = append(problems, fmt.Sprintf("task %s: entry point %q not defined in prompt", t.ID, t.EntryPoint))
					}
				}
			}

			loadSecrets(cfg)
			if os.Getenv(cfg.LLM.APIKeyEnv) == "" {
				problems = append(problems, fmt.Sprintf("%s not set", cfg.LLM.APIKeyEnv))
			}

			if cfg.Pricing != "" {
				if table, err := pricing.Load(cfg.Pricing); err != nil {
					log.Printf("warning: loading pricing table: %v", err)
				} else {
					for _, model := range []string{cfg.Models.Planner, cfg.Models.Coder} {
						if !table.Has(cfg.LLM.Provider, model) {
							log.Printf("warning: no pricing for %s/%s", cfg.LLM.Provider, model)
						}
					}
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					fmt.Printf("  - %s\n", p)
				}
				return fmt.Errorf("%d problem(s) found", len(problems))
			}
			fmt.Println("OK: config, dataset and credentials look good")
			return nil
		},
	}
}
