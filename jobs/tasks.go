// Package jobs defines the background task types and the Asynq worker
// that processes them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarm is the task type for pre-building report caches.
	TaskReportsWarm = "reports:warm"
)

// ReportsWarmPayload bounds the reporting window that gets warmed.
type ReportsWarmPayload struct {
	WindowDays int `json:"window_days"`
}

// NewReportsWarmTask constructs an Asynq task for warming report caches.
func NewReportsWarmTask(windowDays int) (*asynq.Task, error) {
	data, err := json.Marshal(ReportsWarmPayload{WindowDays: windowDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarm, data), nil
}
