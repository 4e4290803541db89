package jobs

import (
	"context"

	"github.com/wonny/earnsight/internal/ingest"
	"github.com/wonny/earnsight/pkg/logger"
)

// SignalRefreshJob re-decides every stored ticker so signals track
// consensus reloads and margin rule changes between document arrivals.
type SignalRefreshJob struct {
	pipeline *ingest.Pipeline
	logger   *logger.Logger
}

// NewSignalRefresh creates the job
func NewSignalRefresh(pipeline *ingest.Pipeline, log *logger.Logger) *SignalRefreshJob {
	return &SignalRefreshJob{pipeline: pipeline, logger: log}
}

func (j *SignalRefreshJob) Name() string { return "signal_refresh" }

// Schedule runs every 15 minutes
func (j *SignalRefreshJob) Schedule() string { return "0 */15 * * * *" }

func (j *SignalRefreshJob) Run(ctx context.Context) error {
	refreshed := j.pipeline.Refresh(ctx)
	j.logger.WithField("tickers", refreshed).Debug("Signal refresh sweep complete")
	return nil
}
