package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tgowda/rovertrack/internal/model"
	"go.uber.org/zap"
)

// ReplayFunc receives one snapshot per replayed entry. Returning an error
// stops the replay; entries already delivered are not retracted.
type ReplayFunc func(entry model.HistoryEntry) error

// Replayer re-emits recorded history with the original timing scaled by a
// speed multiplier. It only ever touches the copies handed to it; live
// state is never mutated by a replay.
type Replayer struct {
	mu             sync.RWMutex
	defaultSpeed   float64
	defaultSpacing time.Duration
	logger         *zap.Logger
}

func NewReplayer(defaultSpeed float64, defaultSpacing time.Duration, logger *zap.Logger) *Replayer {
	if defaultSpeed <= 0 {
		defaultSpeed = 1.0
	}
	if defaultSpacing <= 0 {
		defaultSpacing = 100 * time.Millisecond
	}
	return &Replayer{
		defaultSpeed:   defaultSpeed,
		defaultSpacing: defaultSpacing,
		logger:         logger.Named("replay"),
	}
}

// Replay delivers entries in order, waiting Δt/speed between consecutive
// entries where Δt is the real elapsed time between their triggering
// events; entries without event timestamps fall back to the default
// spacing. The wait is a select on the context, so cancellation takes
// effect between steps rather than after the full sleep.
func (r *Replayer) Replay(ctx context.Context, entries []model.HistoryEntry, speed float64, fn ReplayFunc) error {
	r.mu.RLock()
	defaultSpeed, spacing := r.defaultSpeed, r.defaultSpacing
	r.mu.RUnlock()
	if speed <= 0 {
		speed = defaultSpeed
	}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			r.logger.Warn("replay stopped by callback",
				zap.String("command_id", entry.Snapshot.CommandID),
				zap.Int("entry", i),
				zap.Error(err))
			return fmt.Errorf("replay callback at entry %d: %w", i, err)
		}
		if i == len(entries)-1 {
			break
		}

		wait := gap(entry, entries[i+1], spacing)
		wait = time.Duration(float64(wait) / speed)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func gap(cur, next model.HistoryEntry, spacing time.Duration) time.Duration {
	if cur.Event != nil && next.Event != nil &&
		!cur.Event.Timestamp.IsZero() && !next.Event.Timestamp.IsZero() {
		if d := next.Event.Timestamp.Sub(cur.Event.Timestamp); d > 0 {
			return d
		}
	}
	return spacing
}

// SetDefaults applies a runtime configuration change.
func (r *Replayer) SetDefaults(speed float64, spacing time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if speed > 0 {
		r.defaultSpeed = speed
	}
	if spacing > 0 {
		r.defaultSpacing = spacing
	}
}
