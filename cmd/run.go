package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"planbench/internal/codegen"
	"planbench/internal/config"
	"planbench/internal/llm"
	"planbench/internal/plan"
	"planbench/internal/planner"
	"planbench/internal/pricing"
	"planbench/internal/result"
	"planbench/internal/runner"
	"planbench/internal/sandbox"
	"planbench/internal/task"
)

var (
	flagData         string
	flagLimit        int
	flagTask         string
	flagPlanFormat   string
	flagPlanModel    string
	flagCodeModel    string
	flagTimeout      int
	flagReplanRounds int
	flagRepairRounds int
	flagRuntime      string
	flagParallel     int
	flagOut          string
	flagArtifacts    string
	flagVerbose      bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the dataset with plan-then-code",
		RunE:  runEval,
	}
	cmd.Flags().StringVar(&flagData, "data", "", "dataset JSONL path (overrides config)")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "evaluate at most N tasks")
	cmd.Flags().StringVar(&flagTask, "task", "", "filter to a single task id")
	cmd.Flags().StringVar(&flagPlanFormat, "plan-format", "", "plan format: nl, yaml, dsl or flow")
	cmd.Flags().StringVar(&flagPlanModel, "plan-model", "", "planner model")
	cmd.Flags().StringVar(&flagCodeModel, "code-model", "", "coder model")
	cmd.Flags().IntVar(&flagTimeout, "timeout", 0, "per-candidate timeout in seconds")
	cmd.Flags().IntVar(&flagReplanRounds, "replan-rounds", -1, "replan rounds on failure")
	cmd.Flags().IntVar(&flagRepairRounds, "repair-rounds", -1, "repair rounds on failure")
	cmd.Flags().StringVar(&flagRuntime, "runtime", "", "sandbox runtime: process or docker")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent tasks")
	cmd.Flags().StringVar(&flagOut, "out", "", "results file path")
	cmd.Flags().StringVar(&flagArtifacts, "artifacts", "", "save executed candidate programs to this directory")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "print plans and failure logs per task")
	return cmd
}

// applyFlags layers command-line overrides over the loaded config. The
// round flags use -1 as "not set" so an explicit 0 can disable a phase.
func applyFlags(cfg *config.Config) {
	if flagData != "" {
		cfg.Dataset = flagData
	}
	if flagPlanFormat != "" {
		cfg.PlanFormat = flagPlanFormat
	}
	if flagPlanModel != "" {
		cfg.Models.Planner = flagPlanModel
	}
	if flagCodeModel != "" {
		cfg.Models.Coder = flagCodeModel
	}
	if flagTimeout > 0 {
		cfg.Sandbox.TimeoutSeconds = flagTimeout
	}
	if flagReplanRounds >= 0 {
		cfg.Rounds.Replan = flagReplanRounds
	}
	if flagRepairRounds >= 0 {
		cfg.Rounds.Repair = flagRepairRounds
	}
	if flagRuntime != "" {
		cfg.Sandbox.Runtime = flagRuntime
	}
	if flagArtifacts != "" {
		cfg.Artifacts.Dir = flagArtifacts
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}
	applyFlags(cfg)

	format, err := plan.ParseFormat(cfg.PlanFormat)
	if err != nil {
		return err
	}
	if cfg.Dataset == "" {
		return fmt.Errorf("no dataset: set --data or the dataset field in %s", cfgFile)
	}

	loadSecrets(cfg)

	tasks, err := task.LoadJSONL(cfg.Dataset, flagLimit)
	if err != nil {
		return err
	}
	tasks = filterTasks(tasks, flagTask)
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks to run (check the dataset and --task filter)")
	}

	fmt.Printf("Loaded %d tasks from %s\n", len(tasks), cfg.Dataset)
	fmt.Printf("Plan format = %s, plan-model = %s, code-model = %s\n",
		format, cfg.Models.Planner, cfg.Models.Coder)
	if cfg.Rounds.Replan > 0 {
		fmt.Printf("Replan on fail: rounds=%d\n", cfg.Rounds.Replan)
	}
	if cfg.Rounds.Repair > 0 {
		fmt.Printf("Code repair rounds = %d\n", cfg.Rounds.Repair)
	}

	planClient, err := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKeyEnv, cfg.Models.Planner)
	if err != nil {
		return fmt.Errorf("configuring planner model: %w", err)
	}
	codeClient, err := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKeyEnv, cfg.Models.Coder)
	if err != nil {
		return fmt.Errorf("configuring coder model: %w", err)
	}
	pl := &planner.Planner{Client: planClient}
	gen := &codegen.Generator{Client: codeClient}

	executor, err := buildExecutor(cfg)
	if err != nil {
		return err
	}

	outPath := flagOut
	if outPath == "" {
		outPath = result.DefaultOutPath(cfg.Results.Dir, string(format), cfg.Models.Planner, cfg.Models.Coder)
	}
	writer, err := result.NewWriter(outPath)
	if err != nil {
		return err
	}
	defer writer.Close()
	fmt.Printf("Logging to: %s\n", outPath)

	runID := uuid.New().String()

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	passVerdict := color.New(color.FgGreen).SprintFunc()
	failVerdict := color.New(color.FgRed).SprintFunc()

	ctx := context.Background()
	timeout := time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second
	total := len(tasks)

	var (
		mu     sync.Mutex
		done   int
		passed int
	)

	evalOne := func(t *task.Task) error {
		artifact := ""
		if cfg.Artifacts.Dir != "" {
			artifact = filepath.Join(cfg.Artifacts.Dir, result.SafeName(t.ID)+".py")
		}
		rec, err := runner.Evaluate(ctx, &runner.Opts{
			Task:         t,
			Format:       format,
			Planner:      pl,
			Generator:    gen,
			Executor:     executor,
			Timeout:      timeout,
			ReplanRounds: cfg.Rounds.Replan,
			RepairRounds: cfg.Rounds.Repair,
			ArtifactPath: artifact,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", t.ID, err)
		}
		rec.RunID = runID
		if err := writer.Append(rec); err != nil {
			return fmt.Errorf("%s: %w", t.ID, err)
		}

		mu.Lock()
		defer mu.Unlock()
		done++
		if rec.Passed {
			passed++
		}
		verdict := failVerdict("FAIL")
		if rec.Passed {
			verdict = passVerdict("PASS")
		}
		var tags []string
		if rec.Replanned {
			tags = append(tags, "replanned")
		}
		if rec.Repaired {
			tags = append(tags, "repaired")
		}
		tagStr := ""
		if len(tags) > 0 {
			tagStr = " (" + strings.Join(tags, ", ") + ")"
		}
		fmt.Printf("[%d/%d] %s %s%s\n", done, total, t.ID, verdict, tagStr)
		if flagVerbose {
			fmt.Println("------ PLAN ------")
			fmt.Println(rec.Plan)
			fmt.Println("------------------")
			if !rec.Passed {
				fmt.Println("------ LOGS ------")
				fmt.Println(rec.Logs)
				fmt.Println("------------------")
			}
		}
		return nil
	}

	if flagParallel > 1 {
		jobs := make([]runner.Job, 0, len(tasks))
		for i := range tasks {
			t := &tasks[i]
			jobs = append(jobs, func() error { return evalOne(t) })
		}
		for _, err := range runner.RunPool(ctx, flagParallel, jobs) {
			fmt.Printf("  ERROR: %v\n", err)
		}
	} else {
		for i := range tasks {
			if err := evalOne(&tasks[i]); err != nil {
				fmt.Printf("  ERROR: %v\n", err)
			}
		}
	}

	acc := 0.0
	if done > 0 {
		acc = float64(passed) / float64(done)
	}
	fmt.Printf("\nTotal: %d  Passed: %d  Accuracy (pass@1): %.3f\n", done, passed, acc)
	printUsage(cfg, planClient, codeClient)
	fmt.Printf("Log saved at: %s\n", outPath)
	return nil
}

func loadSecrets(cfg *config.Config) {
	if cfg.Secrets.EnvFile == "" {
		return
	}
	vars, err := config.LoadEnvFile(cfg.Secrets.EnvFile)
	if err != nil {
		log.Printf("warning: could not load secrets: %v", err)
		return
	}
	for k, v := range vars {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}
}

// filterTasks keeps tasks matching the id exactly or by its last path
// element, so --task 7 selects HumanEval/7.
func filterTasks(tasks []task.Task, id string) []task.Task {
	if id == "" {
		return tasks
	}
	var filtered []task.Task
	for _, t := range tasks {
		if t.ID == id || strings.HasSuffix(t.ID, "/"+id) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func buildExecutor(cfg *config.Config) (sandbox.Executor, error) {
	switch cfg.Sandbox.Runtime {
	case "process", "":
		return &sandbox.ProcessExecutor{Python: cfg.Sandbox.Python}, nil
	case "docker":
		return &sandbox.DockerExecutor{Image: cfg.Sandbox.Image, Python: cfg.Sandbox.Python}, nil
	default:
		return nil, fmt.Errorf("unknown sandbox runtime %q", cfg.Sandbox.Runtime)
	}
}

func printUsage(cfg *config.Config, planClient, codeClient *llm.Client) {
	planUsage := planClient.TotalUsage()
	codeUsage := codeClient.TotalUsage()
	total := planUsage.Total() + codeUsage.Total()
	if total == 0 {
		return
	}
	line := fmt.Sprintf("Tokens: %d", total)
	if cfg.Pricing != "" {
		table, err := pricing.Load(cfg.Pricing)
		if err != nil {
			log.Printf("warning: loading pricing table: %v", err)
		} else {
			cost := table.Cost(cfg.LLM.Provider, cfg.Models.Planner, planUsage.PromptTokens, planUsage.CompletionTokens) +
				table.Cost(cfg.LLM.Provider, cfg.Models.Coder, codeUsage.PromptTokens, codeUsage.CompletionTokens)
			if cost > 0 {
				line += fmt.Sprintf("  Est. cost: $%.4f", cost)
			}
		}
	}
	fmt.Println(line)
}
