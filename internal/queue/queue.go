package queue

import (
	"fmt"

	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/pkg/logger"
)

// Open 按 queue.driver 建立连接
func Open(cfg config.QueueConfig) (Queue, error) {
	switch cfg.Driver {
	case "nats":
		return NewNATSQueue(cfg.NATS)
	case "redis":
		return NewRedisQueue(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Driver)
	}
}

func logJobFailure(driver string, job Job, d decision, err error) {
	entry := logger.WithFields(map[string]interface{}{
		"driver":   driver,
		"job_id":   job.ID,
		"network":  job.Network,
		"address":  job.Address,
		"attempt":  job.Attempt,
		"decision": d.String(),
	}).WithError(err)

	if d == decisionDrop {
		entry.Error("Job dropped")
		return
	}
	entry.Warn("Job failed, will be redelivered")
}
