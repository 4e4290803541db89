package jobs

import (
	"context"

	"github.com/wonny/earnsight/internal/benchmark"
	"github.com/wonny/earnsight/pkg/logger"
)

// ConsensusReloadJob re-reads the consensus seed file so estimate
// updates land without a restart.
type ConsensusReloadJob struct {
	benchmarks *benchmark.Table
	path       string
	logger     *logger.Logger
}

// NewConsensusReload creates the job
func NewConsensusReload(benchmarks *benchmark.Table, path string, log *logger.Logger) *ConsensusReloadJob {
	return &ConsensusReloadJob{benchmarks: benchmarks, path: path, logger: log}
}

func (j *ConsensusReloadJob) Name() string { return "consensus_reload" }

// Schedule runs hourly at minute 5
func (j *ConsensusReloadJob) Schedule() string { return "0 5 * * * *" }

func (j *ConsensusReloadJob) Run(ctx context.Context) error {
	if j.path == "" {
		return nil
	}
	return j.benchmarks.LoadCSV(j.path, true)
}
