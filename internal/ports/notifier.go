package ports

import "context"

// Notifier delivers human-readable alerts to an external sink.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}
