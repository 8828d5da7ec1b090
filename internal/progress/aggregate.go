// Package progress maintains the hierarchical progress model for tracked
// commands: weighted aggregation over step trees, completion estimation, and
// stall detection.
package progress

import (
	"time"

	"github.com/tgowda/rovertrack/internal/model"
)

// ComputeOverall aggregates a step tree into a single completion fraction.
// Each root receives weight 1/len(roots); a step with substeps distributes
// its weight evenly across them, its own progress value replaced by the
// weighted sum of its children. Only leaves contribute progress, so leaf
// weights sum to exactly 1. An empty tree is 0.
func ComputeOverall(steps []model.Step) float64 {
	if len(steps) == 0 {
		return 0
	}
	return clamp01(weightedSum(steps, 1.0))
}

func weightedSum(steps []model.Step, weight float64) float64 {
	share := weight / float64(len(steps))
	total := 0.0
	for i := range steps {
		if steps[i].IsLeaf() {
			total += clamp01(steps[i].Progress) * share
		} else {
			total += weightedSum(steps[i].Substeps, share)
		}
	}
	return total
}

// RefreshDerived rewrites every non-leaf step's progress from its substeps.
// A non-leaf's progress field is never authoritative; this keeps snapshots
// consistent for consumers that read intermediate nodes.
func RefreshDerived(steps []model.Step) {
	for i := range steps {
		if steps[i].IsLeaf() {
			continue
		}
		RefreshDerived(steps[i].Substeps)
		steps[i].Progress = clamp01(weightedSum(steps[i].Substeps, 1.0))
	}
}

// EstimateCompletion linearly extrapolates a completion time from elapsed
// time and current progress. This is not a real ETA model: it assumes the
// observed rate holds for the remainder. Returns nil outside (0,1) or when
// no time has elapsed.
func EstimateCompletion(fraction float64, startedAt, now time.Time) *time.Time {
	if fraction <= 0 || fraction >= 1 {
		return nil
	}
	elapsed := now.Sub(startedAt)
	if elapsed <= 0 {
		return nil
	}
	remaining := time.Duration(float64(elapsed)/fraction) - elapsed
	eta := now.Add(remaining)
	return &eta
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
