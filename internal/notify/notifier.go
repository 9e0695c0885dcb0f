// Package notify delivers qualification alerts. Delivery is decoupled from
// the scan loop by a queue worker so a slow or failing messenger never stalls
// scanning.
package notify

import (
	"context"

	"solana-token-radar/internal/domain"
)

// Notifier delivers alerts to an external channel.
type Notifier interface {
	// SendAlert formats and delivers a token alert.
	SendAlert(ctx context.Context, a *domain.Alert) error

	// SendText delivers a plain text message.
	SendText(ctx context.Context, text string) error
}
