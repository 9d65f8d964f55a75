// Package messaging carries workflow events from a broker to a handler.
package messaging

import "context"

// Handler processes one message body. A returned error leaves the message
// for redelivery.
type Handler func(ctx context.Context, body []byte) error

// Consumer runs a delivery loop until ctx is done.
type Consumer interface {
	Run(ctx context.Context, handle Handler) error
	Close() error
}

// Publisher sends one message body. Key orders messages where the broker
// supports it.
type Publisher interface {
	Publish(ctx context.Context, key string, body []byte) error
	Close() error
}

// HealthChecker is implemented by consumers that can report broker
// connectivity.
type HealthChecker interface {
	IsHealthy() bool
}
