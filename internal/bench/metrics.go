package bench

import (
	"sort"
	"time"
)

// ArmSummary aggregates every trial of one agent under one arm.
type ArmSummary struct {
	AgentName    string        `json:"agent_name"`
	Arm          Arm           `json:"arm"`
	Trials       int           `json:"trials"`
	Passed       int           `json:"passed"`
	PassRate     float64       `json:"pass_rate"`
	MeanScore    float64       `json:"mean_score"` // normalized score/max_score
	MeanDuration time.Duration `json:"mean_duration"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Timeouts     int           `json:"timeouts"`
	Errors       int           `json:"errors"`
}

// ArmDelta compares the memory arm against the stateless arm for one agent.
// Positive deltas favor memory.
type ArmDelta struct {
	AgentName         string  `json:"agent_name"`
	StatelessPassRate float64 `json:"stateless_pass_rate"`
	MemoryPassRate    float64 `json:"memory_pass_rate"`
	PassRateDelta     float64 `json:"pass_rate_delta"`
	TokenDelta        int     `json:"token_delta"` // memory minus stateless, total tokens
}

// Summary is the aggregate view of a run.
type Summary struct {
	TotalTrials int          `json:"total_trials"`
	Arms        []ArmSummary `json:"arms"`
	Deltas      []ArmDelta   `json:"deltas,omitempty"`
}

// Summarize aggregates trial results per (agent, arm) and computes the
// stateless-vs-memory delta for every agent that ran under both arms.
func Summarize(results []TrialResult) *Summary {
	type key struct {
		agent string
		arm   Arm
	}

	groups := map[key][]TrialResult{}
	for _, res := range results {
		k := key{agent: res.AgentName, arm: res.Arm}
		groups[k] = append(groups[k], res)
	}

	summary := &Summary{TotalTrials: len(results)}
	for k, group := range groups {
		arm := ArmSummary{AgentName: k.agent, Arm: k.arm, Trials: len(group)}
		var totalDuration time.Duration
		var totalScore float64
		for _, res := range group {
			if res.Passed {
				arm.Passed++
			}
			if res.Status == StatusTimeout {
				arm.Timeouts++
			}
			if res.Error != "" {
				arm.Errors++
			}
			if res.MaxScore > 0 {
				totalScore += res.Score / res.MaxScore
			}
			totalDuration += res.Duration
			arm.InputTokens += res.InputTokens
			arm.OutputTokens += res.OutputTokens
		}
		arm.PassRate = float64(arm.Passed) / float64(arm.Trials)
		arm.MeanScore = totalScore / float64(arm.Trials)
		arm.MeanDuration = totalDuration / time.Duration(arm.Trials)
		summary.Arms = append(summary.Arms, arm)
	}

	sort.Slice(summary.Arms, func(i, j int) bool {
		if summary.Arms[i].AgentName != summary.Arms[j].AgentName {
			return summary.Arms[i].AgentName < summary.Arms[j].AgentName
		}
		return summary.Arms[i].Arm < summary.Arms[j].Arm
	})

	byAgent := map[string]map[Arm]ArmSummary{}
	for _, arm := range summary.Arms {
		if byAgent[arm.AgentName] == nil {
			byAgent[arm.AgentName] = map[Arm]ArmSummary{}
		}
		byAgent[arm.AgentName][arm.Arm] = arm
	}

	agents := make([]string, 0, len(byAgent))
	for name := range byAgent {
		agents = append(agents, name)
	}
	sort.Strings(agents)

	for _, name := range agents {
		arms := byAgent[name]
		stateless, hasStateless := arms[ArmStateless]
		withMemory, hasMemory := arms[ArmMemory]
		if !hasStateless || !hasMemory {
			continue
		}
		summary.Deltas = append(summary.Deltas, ArmDelta{
			AgentName:         name,
			StatelessPassRate: stateless.PassRate,
			MemoryPassRate:    withMemory.PassRate,
			PassRateDelta:     withMemory.PassRate - stateless.PassRate,
			TokenDelta: (withMemory.InputTokens + withMemory.OutputTokens) -
				(stateless.InputTokens + stateless.OutputTokens),
		})
	}

	return summary
}
