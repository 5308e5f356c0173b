package main

import (
	"github.com/spf13/cobra"

	"membench/internal/agent"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agent adapters",
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptions := map[string]string{
			"oneshot":  "one completion, one command, no feedback",
			"episodic": "observe-act loop of JSON command batches",
			"toolcall": "native tool calling with terminal and note tools",
		}
		cmd.Println(headerText("Registered agents:"))
		for _, name := range agent.Names() {
			desc := descriptions[name]
			if desc == "" {
				desc = "(externally registered)"
			}
			cmd.Printf("  %s  %s\n", bold(name), gray(desc))
		}
		cmd.Println(gray("\nEach agent can run under the stateless or memory arm; see 'membench run --memory'."))
		return nil
	},
}
