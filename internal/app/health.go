// Package app provides application use cases.
package app

import (
	"context"
	"time"
)

// HealthUsecase defines the health check use case.
type HealthUsecase interface {
	Handle(ctx context.Context) (HealthResult, error)
}

// HealthResult is what the health endpoint reports.
type HealthResult struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
}

// HealthService implements HealthUsecase. Started is optional; when
// set, the result carries the process uptime.
type HealthService struct {
	Version string
	Started time.Time
}

// Handle reports liveness. There is no deep check here: the process
// owning the log lock being up is the signal.
func (s HealthService) Handle(ctx context.Context) (HealthResult, error) {
	res := HealthResult{
		Status:  "ok",
		Version: s.Version,
	}
	if !s.Started.IsZero() {
		res.UptimeSeconds = int64(time.Since(s.Started).Seconds())
	}
	return res, nil
}
