package poll

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yang-kun-long/insight-ingest/internal/stage"
)

// DefaultInterval is the fixed poll interval. No backoff: the polled jobs
// complete in seconds to low minutes.
const DefaultInterval = time.Second

// FetchFunc performs one status round trip.
type FetchFunc func(ctx context.Context) (stage.Observation, error)

// StageError is a terminal failure reported by the remote pipeline. Message
// carries the remote-provided text when present.
type StageError struct {
	Stage   stage.Stage
	Message string
}

func (e *StageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "remote processing failed (" + e.Stage.String() + ")"
}

// Poller repeatedly fetches a remote job's status until a terminal stage.
type Poller struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Run polls until the job reaches DONE (returned with a nil error) or
// FAILED/UNKNOWN (returned with a *StageError). Every observation, terminal
// or not, is passed to observe before Run acts on it; the poller assigns no
// meaning to stages beyond the three sentinels, so unrecognized tags flow
// through as intermediate observations.
func (p *Poller) Run(ctx context.Context, fetch FetchFunc, observe func(stage.Observation)) (stage.Observation, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	for {
		if err := ctx.Err(); err != nil {
			return stage.Observation{}, err
		}

		obs, err := fetch(ctx)
		if err != nil {
			return stage.Observation{}, err
		}
		if observe != nil {
			observe(obs)
		}

		switch {
		case obs.Stage == stage.StageDone:
			return obs, nil
		case obs.Stage.Failed():
			logger.Debug("remote pipeline failed",
				zap.String("stage", obs.Stage.String()),
				zap.String("message", obs.Message),
			)
			return obs, &StageError{Stage: obs.Stage, Message: obs.Message}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return stage.Observation{}, ctx.Err()
		}
	}
}
