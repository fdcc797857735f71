package port

import (
	"context"
	"time"

	"github.com/rl1809/stockledger/internal/core/domain"
)

type CatalogRepository interface {
	// CreateItem inserts the item and fills in ID, CreatedAt and UpdatedAt.
	// Returns domain.ErrDuplicateCode if the code is taken.
	CreateItem(ctx context.Context, item *domain.Item) error

	// GetItem returns domain.ErrNotFound if no item has the id
	GetItem(ctx context.Context, id int64) (*domain.Item, error)

	// GetItemByCode returns domain.ErrNotFound if no item has the code
	GetItemByCode(ctx context.Context, code string) (*domain.Item, error)

	// ListItems returns one page of items, newest first, and the total match count
	ListItems(ctx context.Context, query domain.ItemQuery) ([]domain.ItemSummary, int, error)

	// UpdateItem applies the patch without touching quantity_available.
	// A quantity_total below the current availability is rejected.
	UpdateItem(ctx context.Context, id int64, patch domain.ItemPatch) (*domain.Item, error)

	// DeleteItem removes an item that no transaction references
	DeleteItem(ctx context.Context, id int64) error
}

type LedgerRepository interface {
	// ApplyMovement guards and mutates the item's availability and appends the
	// ledger entry in one storage transaction.
	ApplyMovement(ctx context.Context, m domain.Movement) (*domain.Item, *domain.Transaction, error)

	// ListTransactions returns one page of entries, newest first, and the total match count
	ListTransactions(ctx context.Context, query domain.TransactionQuery) ([]domain.TransactionView, int, error)

	// ItemLedger returns the item and all of its entries in chronological order
	// from a single consistent read.
	ItemLedger(ctx context.Context, itemID int64) (*domain.Item, []domain.Transaction, error)
}

type ReportRepository interface {
	InventoryTotals(ctx context.Context) (domain.InventoryTotals, error)
	CategoryBreakdown(ctx context.Context) ([]domain.CategoryStock, error)

	// TransactionTotals counts entries overall, by kind, and since the given instant
	TransactionTotals(ctx context.Context, since time.Time) (domain.TransactionTotals, error)
	TopUsers(ctx context.Context, limit int) ([]domain.UserActivity, error)
	TopItems(ctx context.Context, limit int) ([]domain.ItemActivity, error)
}

type DatabaseRepository interface {
	CatalogRepository
	LedgerRepository
	ReportRepository

	Ping(ctx context.Context) error
}
