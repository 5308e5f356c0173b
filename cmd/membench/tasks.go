package main

import (
	"strings"

	"github.com/spf13/cobra"

	"membench/internal/bench"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks in a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		datasetDir, _ := cmd.Flags().GetString("dataset")
		tag, _ := cmd.Flags().GetString("tag")

		tasks, err := bench.LoadDataset(datasetDir, bench.Filter{Tag: tag})
		if err != nil {
			return err
		}

		cmd.Printf("%s (%d)\n", headerText("Tasks"), len(tasks))
		for _, task := range tasks {
			instruction := task.Instruction
			if idx := strings.IndexByte(instruction, '\n'); idx >= 0 {
				instruction = instruction[:idx]
			}
			if len(instruction) > 80 {
				instruction = instruction[:80] + "..."
			}
			cmd.Printf("  %s  %s\n", bold(task.ID), gray(instruction))
			if len(task.Tags) > 0 {
				cmd.Printf("    %s\n", gray("tags: "+strings.Join(task.Tags, ", ")))
			}
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().String("dataset", "", "dataset directory of task dirs")
	tasksCmd.Flags().String("tag", "", "only list tasks carrying this tag")
	_ = tasksCmd.MarkFlagRequired("dataset")
}
