package port

import (
	"context"

	"github.com/rl1809/stockledger/internal/core/domain"
)

type EventPublisher interface {
	// PublishMovement delivers a committed movement to downstream consumers
	PublishMovement(ctx context.Context, event domain.MovementEvent) error
	Close() error
}
