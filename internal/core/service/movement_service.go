package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/stockledger/internal/core/domain"
	"github.com/rl1809/stockledger/internal/port"
)

const tracerName = "github.com/rl1809/stockledger/internal/core/service"

// ItemResolver maps an id or code to the current item.
type ItemResolver interface {
	Resolve(ctx context.Context, identifier string) (*domain.Item, error)
}

type MovementRequest struct {
	ItemRef   string
	Quantity  int
	Actor     domain.Actor
	Note      string
	RequestID string
}

// MovementService executes checkouts and checkins. Each one is applied by the
// ledger store as a single atomic unit; committed movements are offered to an
// optional event queue.
type MovementService struct {
	items       ItemResolver
	ledger      port.LedgerRepository
	idempotency port.IdempotencyRepository
	logger      *zap.Logger
	tracer      trace.Tracer

	mu     sync.RWMutex
	events chan domain.MovementEvent
	closed bool
}

type MovementOption func(*MovementService)

func WithIdempotency(repo port.IdempotencyRepository) MovementOption {
	return func(s *MovementService) { s.idempotency = repo }
}

func WithMovementLogger(logger *zap.Logger) MovementOption {
	return func(s *MovementService) { s.logger = logger }
}

func WithTracer(tracer trace.Tracer) MovementOption {
	return func(s *MovementService) { s.tracer = tracer }
}

// WithEventQueue enables the committed-movement queue with the given capacity.
func WithEventQueue(size int) MovementOption {
	return func(s *MovementService) {
		if size > 0 {
			s.events = make(chan domain.MovementEvent, size)
		}
	}
}

func NewMovementService(items ItemResolver, ledger port.LedgerRepository, opts ...MovementOption) *MovementService {
	s := &MovementService{
		items:  items,
		ledger: ledger,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MovementService) Checkout(ctx context.Context, req MovementRequest) (*domain.MovementResult, error) {
	return s.move(ctx, domain.KindCheckout, req)
}

func (s *MovementService) Checkin(ctx context.Context, req MovementRequest) (*domain.MovementResult, error) {
	return s.move(ctx, domain.KindCheckin, req)
}

func (s *MovementService) move(ctx context.Context, kind domain.Kind, req MovementRequest) (result *domain.MovementResult, err error) {
	ctx, span := s.tracer.Start(ctx, "movement."+string(kind), trace.WithAttributes(
		attribute.String("item.ref", req.ItemRef),
		attribute.Int("movement.quantity", req.Quantity),
		attribute.Int64("actor.id", req.Actor.ID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := validateMovement(req); err != nil {
		return nil, err
	}

	key := ""
	if req.RequestID != "" && s.idempotency != nil {
		key = "movement:" + req.RequestID
		ok, err := s.idempotency.Reserve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("request %q: %w", req.RequestID, domain.ErrDuplicateRequest)
		}
	}

	item, entry, err := s.apply(ctx, kind, req)
	// The key outlives the caller, so a disconnect must not strand it.
	keyCtx := context.WithoutCancel(ctx)
	if err != nil {
		if key != "" {
			if relErr := s.idempotency.Release(keyCtx, key); relErr != nil {
				s.logger.Warn("failed to release request key", zap.String("key", key), zap.Error(relErr))
			}
		}
		s.logRefusal(kind, req, err)
		return nil, err
	}

	if key != "" {
		if err := s.idempotency.Complete(keyCtx, key, entry.ID); err != nil {
			s.logger.Warn("failed to complete request key", zap.String("key", key), zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int64("item.id", item.ID),
		attribute.Int64("transaction.id", entry.ID),
		attribute.Int("item.quantity_available", item.QuantityAvailable),
	)
	s.logger.Info("movement committed",
		zap.String("kind", string(kind)),
		zap.Int64("item_id", item.ID),
		zap.String("code", item.Code),
		zap.Int("quantity", entry.Quantity),
		zap.Int("available", item.QuantityAvailable),
		zap.Int64("transaction_id", entry.ID),
		zap.Int64("user_id", entry.UserID),
	)

	s.publish(domain.NewMovementEvent(*item, *entry))
	return &domain.MovementResult{Item: *item, Receipt: domain.NewReceipt(*entry)}, nil
}

func (s *MovementService) apply(ctx context.Context, kind domain.Kind, req MovementRequest) (*domain.Item, *domain.Transaction, error) {
	item, err := s.items.Resolve(ctx, req.ItemRef)
	if err != nil {
		return nil, nil, err
	}

	return s.ledger.ApplyMovement(ctx, domain.Movement{
		ItemID:   item.ID,
		Kind:     kind,
		Quantity: req.Quantity,
		Actor:    req.Actor,
		Note:     req.Note,
	})
}

func validateMovement(req MovementRequest) error {
	if req.Quantity < 0 {
		return &domain.ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if req.Actor.ID <= 0 {
		return &domain.ValidationError{Field: "user_id", Message: "acting user is required"}
	}
	if utf8.RuneCountInString(req.Note) > maxNoteLength {
		return &domain.ValidationError{Field: "notes", Message: fmt.Sprintf("must be at most %d characters", maxNoteLength)}
	}
	return nil
}

func (s *MovementService) logRefusal(kind domain.Kind, req MovementRequest, err error) {
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("item_ref", req.ItemRef),
		zap.Int("quantity", req.Quantity),
		zap.Int64("user_id", req.Actor.ID),
		zap.Error(err),
	}
	if errors.Is(err, domain.ErrStorageFault) {
		s.logger.Error("movement failed", fields...)
		return
	}
	s.logger.Info("movement refused", fields...)
}

// publish offers the event without blocking; the ledger stays authoritative
// when the queue is full.
func (s *MovementService) publish(event domain.MovementEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.events == nil || s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event queue full, dropping movement event",
			zap.Int64("transaction_id", event.TransactionID),
			zap.Int64("item_id", event.ItemID),
		)
	}
}

// Events returns the committed-movement queue, or nil if it is disabled.
func (s *MovementService) Events() <-chan domain.MovementEvent {
	return s.events
}

func (s *MovementService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.events != nil {
		close(s.events)
	}
}
