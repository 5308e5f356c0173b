package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"membench/internal/bench"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare agents across the stateless and memory arms",
	Long: `Runs every listed agent over the dataset twice, once per arm, and reports
the pass-rate and token deltas. The two arms run concurrently, splitting the
configured worker budget between them.`,
	Example: `  membench compare --dataset ./data --agents oneshot,episodic`,
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetDir, _ := cmd.Flags().GetString("dataset")
		agentNames, _ := cmd.Flags().GetStringSlice("agents")
		tag, _ := cmd.Flags().GetString("tag")
		limit, _ := cmd.Flags().GetInt("limit")

		tasks, err := bench.LoadDataset(datasetDir, bench.Filter{Tag: tag, Limit: limit})
		if err != nil {
			return err
		}

		client, err := buildClient()
		if err != nil {
			return err
		}

		var statelessArms, memoryArms []bench.AgentArm
		for _, name := range agentNames {
			stateless, err := buildArm(name, bench.ArmStateless, client)
			if err != nil {
				return err
			}
			withMemory, err := buildArm(name, bench.ArmMemory, client)
			if err != nil {
				return err
			}
			statelessArms = append(statelessArms, stateless)
			memoryArms = append(memoryArms, withMemory)
		}

		// Split the worker budget across the two concurrent arm groups.
		workersPerArm := cfg.NumWorkers / 2
		if workersPerArm < 1 {
			workersPerArm = 1
		}

		dir := outputDir()
		newRunner := func(sub string) *bench.Runner {
			return bench.NewRunner(bench.RunnerConfig{
				NumWorkers:     workersPerArm,
				Trials:         cfg.Trials,
				TaskTimeout:    cfg.TaskTimeoutDuration(),
				CommandTimeout: cfg.CommandTimeoutDuration(),
				OutputDir:      dir + "/trials/" + sub,
				FailFast:       cfg.FailFast,
			})
		}

		cmd.Printf("%s %d tasks x %d agents x 2 arms (%d trials each)\n",
			headerText("Comparing"), len(tasks), len(agentNames), cfg.Trials)

		started := time.Now()
		var mu sync.Mutex
		var results []bench.TrialResult

		g, ctx := errgroup.WithContext(cmd.Context())
		for _, group := range []struct {
			sub  string
			arms []bench.AgentArm
		}{
			{"stateless", statelessArms},
			{"memory", memoryArms},
		} {
			group := group
			g.Go(func() error {
				res, err := newRunner(group.sub).Run(ctx, tasks, group.arms)
				if err != nil {
					return err
				}
				mu.Lock()
				results = append(results, res...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
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
		cmd.Printf("\n%s %s\n", gray("Report:"), dir+"/report.md")
		return nil
	},
}

func init() {
	compareCmd.Flags().String("dataset", "", "dataset directory of task dirs")
	compareCmd.Flags().StringSlice("agents", []string{"oneshot", "episodic"}, "agents to compare")
	compareCmd.Flags().String("tag", "", "only run tasks carrying this tag")
	compareCmd.Flags().Int("limit", 0, "cap the number of tasks")
	_ = compareCmd.MarkFlagRequired("dataset")
}
