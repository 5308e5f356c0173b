package bench

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"membench/internal/logging"
)

// Filter narrows and reorders a loaded dataset.
type Filter struct {
	IDs     []string // keep only these task ids; empty keeps all
	Tag     string   // keep only tasks carrying this tag; empty keeps all
	Limit   int      // cap the task count after filtering; 0 is unlimited
	Shuffle bool
	Seed    int64 // shuffle seed; 0 derives from the task count for stability in tests
}

// LoadDataset loads every task directory under root (one level deep, each
// containing a task.yaml), applies the filter, and returns tasks sorted by id
// unless shuffling was requested. Directories without a manifest are skipped;
// a manifest that fails to parse is an error.
func LoadDataset(root string, filter Filter) ([]Task, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	logger := logging.NewComponentLogger("DATASET")

	var tasks []Task
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, taskManifestName)); err != nil {
			logger.Debug("Skipping %s: no task manifest", dir)
			continue
		}
		task, err := LoadTask(dir)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks found under %s", root)
	}

	tasks = applyFilter(tasks, filter)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("filter matched no tasks under %s", root)
	}
	return tasks, nil
}

func applyFilter(tasks []Task, filter Filter) []Task {
	if len(filter.IDs) > 0 {
		wanted := make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			wanted[id] = true
		}
		kept := tasks[:0]
		for _, task := range tasks {
			if wanted[task.ID] {
				kept = append(kept, task)
			}
		}
		tasks = kept
	}

	if filter.Tag != "" {
		kept := tasks[:0]
		for _, task := range tasks {
			if task.HasTag(filter.Tag) {
				kept = append(kept, task)
			}
		}
		tasks = kept
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	if filter.Shuffle {
		seed := filter.Seed
		if seed == 0 {
			seed = int64(len(tasks))
		}
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(tasks), func(i, j int) {
			tasks[i], tasks[j] = tasks[j], tasks[i]
		})
	}

	if filter.Limit > 0 && len(tasks) > filter.Limit {
		tasks = tasks[:filter.Limit]
	}
	return tasks
}
