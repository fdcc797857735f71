package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/stockledger/internal/core/domain"
	"github.com/rl1809/stockledger/internal/port"
)

const (
	recentActivityLimit = 10
	topActivityLimit    = 5
)

// ReportService answers read-only questions about stock and movement history.
type ReportService struct {
	items    ItemResolver
	ledger   port.LedgerRepository
	reports  port.ReportRepository
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
}

type ReportOption func(*ReportService)

func WithReportLogger(logger *zap.Logger) ReportOption {
	return func(s *ReportService) { s.logger = logger }
}

func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

// WithLocation sets the zone whose midnight starts "today".
func WithLocation(loc *time.Location) ReportOption {
	return func(s *ReportService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewReportService(items ItemResolver, ledger port.LedgerRepository, reports port.ReportRepository, opts ...ReportOption) *ReportService {
	s := &ReportService{
		items:    items,
		ledger:   ledger,
		reports:  reports,
		logger:   zap.NewNop(),
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReportService) Overview(ctx context.Context) (*domain.Overview, error) {
	var overview domain.Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		totals, err := s.reports.InventoryTotals(gctx)
		overview.Totals = totals
		return err
	})
	g.Go(func() error {
		categories, err := s.reports.CategoryBreakdown(gctx)
		overview.Categories = categories
		return err
	})
	g.Go(func() error {
		recent, _, err := s.ledger.ListTransactions(gctx, domain.TransactionQuery{Page: 1, Limit: recentActivityLimit})
		overview.RecentActivity = recent
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &overview, nil
}

func (s *ReportService) TransactionStats(ctx context.Context) (*domain.TransactionStats, error) {
	var stats domain.TransactionStats
	since := s.startOfDay()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		totals, err := s.reports.TransactionTotals(gctx, since)
		stats.Totals = totals
		return err
	})
	g.Go(func() error {
		users, err := s.reports.TopUsers(gctx, topActivityLimit)
		stats.TopUsers = users
		return err
	})
	g.Go(func() error {
		items, err := s.reports.TopItems(gctx, topActivityLimit)
		stats.TopItems = items
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *ReportService) startOfDay() time.Time {
	now := s.now().In(s.location)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

func (s *ReportService) ListTransactions(ctx context.Context, query domain.TransactionQuery) (*domain.TransactionPage, error) {
	return s.listTransactions(ctx, query, defaultListLimit)
}

// UserHistory lists the movements made by one user, newest first.
func (s *ReportService) UserHistory(ctx context.Context, userID int64, page, limit int) (*domain.TransactionPage, error) {
	if userID <= 0 {
		return nil, &domain.ValidationError{Field: "user_id", Message: "acting user is required"}
	}
	return s.listTransactions(ctx, domain.TransactionQuery{UserID: userID, Page: page, Limit: limit}, defaultHistoryLimit)
}

func (s *ReportService) listTransactions(ctx context.Context, query domain.TransactionQuery, defaultLimit int) (*domain.TransactionPage, error) {
	if query.Kind != "" && !query.Kind.Valid() {
		return nil, &domain.ValidationError{Field: "type", Message: "must be checkout or checkin"}
	}
	page, limit, err := pageBounds(query.Page, query.Limit, defaultLimit)
	if err != nil {
		return nil, err
	}
	query.Page, query.Limit = page, limit

	views, total, err := s.ledger.ListTransactions(ctx, query)
	if err != nil {
		return nil, err
	}
	return &domain.TransactionPage{Transactions: views, Pagination: domain.NewPagination(page, limit, total)}, nil
}

func (s *ReportService) ItemDetail(ctx context.Context, identifier string) (*domain.ItemDetail, error) {
	item, err := s.items.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	recent, _, err := s.ledger.ListTransactions(ctx, domain.TransactionQuery{ItemID: item.ID, Page: 1, Limit: recentActivityLimit})
	if err != nil {
		return nil, err
	}
	return &domain.ItemDetail{Item: *item, RecentTransactions: recent}, nil
}

// Reconcile replays the item's ledger from a single snapshot and compares the
// result with the stored availability.
func (s *ReportService) Reconcile(ctx context.Context, identifier string) (*domain.Reconciliation, error) {
	ref, err := s.items.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	item, entries, err := s.ledger.ItemLedger(ctx, ref.ID)
	if err != nil {
		return nil, err
	}

	r := domain.Replay(*item, entries)
	if !r.Consistent {
		s.logger.Error("ledger replay does not match stored availability",
			zap.Int64("item_id", r.ItemID),
			zap.Int("stored", r.QuantityAvailable),
			zap.Int("replayed", r.ReplayedAvailable),
		)
	}
	return &r, nil
}
