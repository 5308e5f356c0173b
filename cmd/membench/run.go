package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"membench/internal/agent"
	"membench/internal/bench"
	"membench/internal/llm"
	"membench/internal/memory"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one agent over a dataset",
	Example: `  membench run --dataset ./data --agent episodic
  membench run --dataset ./data --agent episodic --memory --task hello-world --trials 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetDir, _ := cmd.Flags().GetString("dataset")
		agentName, _ := cmd.Flags().GetString("agent")
		taskIDs, _ := cmd.Flags().GetStringSlice("task")
		tag, _ := cmd.Flags().GetString("tag")
		limit, _ := cmd.Flags().GetInt("limit")
		shuffle, _ := cmd.Flags().GetBool("shuffle")
		withMemory, _ := cmd.Flags().GetBool("memory")

		tasks, err := bench.LoadDataset(datasetDir, bench.Filter{
			IDs:     taskIDs,
			Tag:     tag,
			Limit:   limit,
			Shuffle: shuffle,
		})
		if err != nil {
			return err
		}

		client, err := buildClient()
		if err != nil {
			return err
		}

		arm := bench.ArmStateless
		if withMemory {
			arm = bench.ArmMemory
		}
		agentArm, err := buildArm(agentName, arm, client)
		if err != nil {
			return err
		}

		return executeRun(cmd, datasetDir, tasks, []bench.AgentArm{agentArm})
	},
}

func init() {
	runCmd.Flags().String("dataset", "", "dataset directory of task dirs")
	runCmd.Flags().String("agent", "episodic", "agent to run (see 'membench agents')")
	runCmd.Flags().StringSlice("task", nil, "task ids to run (default all)")
	runCmd.Flags().String("tag", "", "only run tasks carrying this tag")
	runCmd.Flags().Int("limit", 0, "cap the number of tasks")
	runCmd.Flags().Bool("shuffle", false, "shuffle task order")
	runCmd.Flags().Bool("memory", false, "run the memory arm instead of stateless")
	_ = runCmd.MarkFlagRequired("dataset")
}

// buildArm wires one agent under one arm. The memory arm gets a store and a
// summarizer rooted at the configured memory directory; the stateless arm
// gets neither.
func buildArm(agentName string, arm bench.Arm, client llm.Client) (bench.AgentArm, error) {
	a, err := agent.New(agentName, agent.Deps{
		Client:         client,
		MaxEpisodes:    cfg.Agent.MaxEpisodes,
		CommandTimeout: cfg.CommandTimeoutDuration(),
	})
	if err != nil {
		return bench.AgentArm{}, err
	}

	armSpec := bench.AgentArm{Agent: a, Arm: arm}
	if arm == bench.ArmMemory {
		store := memory.NewStore(cfg.MemoryRoot)
		armSpec.Options = agent.RunOptions{
			Memory:     store,
			Summarizer: memory.NewSummarizer(client, store),
		}
	}
	return armSpec, nil
}

// executeRun drives the runner over the given arms and writes the report.
func executeRun(cmd *cobra.Command, datasetDir string, tasks []bench.Task, arms []bench.AgentArm) error {
	dir := outputDir()
	runner := bench.NewRunner(bench.RunnerConfig{
		NumWorkers:     cfg.NumWorkers,
		Trials:         cfg.Trials,
		TaskTimeout:    cfg.TaskTimeoutDuration(),
		CommandTimeout: cfg.CommandTimeoutDuration(),
		OutputDir:      filepath.Join(dir, "trials"),
		FailFast:       cfg.FailFast,
	})

	labels := make([]string, len(arms))
	for i, arm := range arms {
		labels[i] = arm.Label()
	}
	cmd.Printf("%s %d tasks x %s (%d trials, %d workers)\n",
		headerText("Running"), len(tasks), strings.Join(labels, ", "), cfg.Trials, cfg.NumWorkers)

	started := time.Now()
	results, err := runner.Run(cmd.Context(), tasks, arms)
	if err != nil {
		return err
	}

	report := &bench.RunReport{
		RunID:      uuid.NewString(),
		Model:      cfg.Model.Name,
		Dataset:    datasetDir,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Results:    results,
		Summary:    bench.Summarize(results),
	}
	if err := bench.WriteReport(dir, report); err != nil {
		return err
	}

	printSummary(cmd, report)
	cmd.Printf("\n%s %s\n", gray("Report:"), filepath.Join(dir, "report.md"))
	return nil
}

func printSummary(cmd *cobra.Command, report *bench.RunReport) {
	for _, arm := range report.Summary.Arms {
		line := fmt.Sprintf("%-10s %-10s %3d/%d passed (%.1f%%)  %s  %d tokens",
			arm.AgentName, arm.Arm, arm.Passed, arm.Trials, arm.PassRate*100,
			arm.MeanDuration.Round(time.Second), arm.InputTokens+arm.OutputTokens)
		if arm.Passed == arm.Trials {
			cmd.Println(green(line))
		} else if arm.Passed == 0 {
			cmd.Println(red(line))
		} else {
			cmd.Println(yellow(line))
		}
	}
	for _, delta := range report.Summary.Deltas {
		cmd.Printf("%s %s: %+.1f%% pass rate, %+d tokens\n",
			blue("memory effect"), delta.AgentName, delta.PassRateDelta*100, delta.TokenDelta)
	}
}
