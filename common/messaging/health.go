package messaging

import (
	"context"
	"fmt"
	"time"
)

// healthTimeout bounds a single health check.
const healthTimeout = 2 * time.Second

// HealthChecker can check the health of a messaging connection.
// CheckClientHealth prefers it over a request on HealthSubject.
type HealthChecker interface {
	// CheckHealth returns nil if the connection is healthy, error otherwise.
	CheckHealth(ctx context.Context) error
}

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool          `json:"connected" yaml:"connected"`
	Latency   time.Duration `json:"latency_ms" yaml:"latency"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// CheckClientHealth checks if a Client is healthy by verifying the connection
// and timing a round trip. Clients implementing HealthChecker are asked
// directly; others get a request on HealthSubject.
func CheckClientHealth(ctx context.Context, client Client) HealthStatus {
	status := HealthStatus{}

	if client == nil {
		status.Error = "client is nil"
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if checker, ok := client.(HealthChecker); ok {
		start := time.Now()
		err := checker.CheckHealth(ctx)
		status.Latency = time.Since(start)
		if err != nil {
			status.Connected = false
			status.Error = fmt.Sprintf("health check failed: %v", err)
		}
		return status
	}

	start := time.Now()
	_, err := client.Request(ctx, HealthSubject, []byte("ping"), healthTimeout)
	status.Latency = time.Since(start)

	// No responder is expected; only a dropped connection is a failure.
	if err != nil && !client.IsConnected() {
		status.Connected = false
		status.Error = fmt.Sprintf("health check failed: %v", err)
	}

	return status
}
