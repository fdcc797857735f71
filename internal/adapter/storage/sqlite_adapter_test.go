package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/stockledger/internal/core/domain"
)

var (
	alice = domain.Actor{ID: 1, Username: "alice", Role: domain.RoleManager}
	bob   = domain.Actor{ID: 2, Username: "bob", Role: domain.RoleUser}
)

func newSQLiteStore(t *testing.T) *SQLiteAdapter {
	t.Helper()

	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"), 1)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteAdapter(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func seedItem(t *testing.T, store *SQLiteAdapter, code string, total int) *domain.Item {
	t.Helper()

	item := &domain.Item{
		Code:              code,
		Name:              "Patch cable " + code,
		Type:              domain.DefaultItemType,
		Category:          domain.DefaultItemCategory,
		Location:          "Rack A",
		Attributes:        map[string]string{"color": "blue", "length": "2m"},
		QuantityTotal:     total,
		QuantityAvailable: total,
		QuantityInitial:   total,
		CreatedBy:         alice.ID,
	}
	if err := store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("create item %s: %v", code, err)
	}
	return item
}

func move(store *SQLiteAdapter, id int64, kind domain.Kind, qty int, actor domain.Actor) (*domain.Item, *domain.Transaction, error) {
	return store.ApplyMovement(context.Background(), domain.Movement{
		ItemID:   id,
		Kind:     kind,
		Quantity: qty,
		Actor:    actor,
	})
}

func TestSQLiteCreateAndGetItem(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	item := seedItem(t, store, "INV-0000AAAA", 5)
	if item.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	if item.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be assigned")
	}

	byID, err := store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	byCode, err := store.GetItemByCode(ctx, item.Code)
	if err != nil {
		t.Fatalf("GetItemByCode failed: %v", err)
	}

	for _, got := range []*domain.Item{byID, byCode} {
		if got.ID != item.ID || got.Code != item.Code {
			t.Errorf("expected item %d/%s, got %d/%s", item.ID, item.Code, got.ID, got.Code)
		}
		if got.QuantityTotal != 5 || got.QuantityAvailable != 5 || got.QuantityInitial != 5 {
			t.Errorf("unexpected quantities: %+v", got)
		}
		if got.Attributes["color"] != "blue" || got.Attributes["length"] != "2m" {
			t.Errorf("attributes not preserved: %v", got.Attributes)
		}
		if !got.CreatedAt.Equal(item.CreatedAt) {
			t.Errorf("expected created_at %v, got %v", item.CreatedAt, got.CreatedAt)
		}
	}
}

func TestSQLiteGetItem_NotFound(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.GetItem(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetItemByCode(ctx, "INV-MISSING"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteCreateItem_DuplicateCode(t *testing.T) {
	store := newSQLiteStore(t)
	seedItem(t, store, "INV-DUP00001", 1)

	dup := &domain.Item{Code: "INV-DUP00001", Name: "other", QuantityTotal: 1, QuantityAvailable: 1, QuantityInitial: 1}
	err := store.CreateItem(context.Background(), dup)
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestSQLiteMovementScenario(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	item := seedItem(t, store, "INV-SCENARIO", 5)

	after, entry, err := move(store, item.ID, domain.KindCheckout, 3, bob)
	if err != nil {
		t.Fatalf("checkout 3 failed: %v", err)
	}
	if after.QuantityAvailable != 2 {
		t.Errorf("expected 2 available, got %d", after.QuantityAvailable)
	}
	if entry.ID == 0 || entry.Username != "bob" || entry.Kind != domain.KindCheckout {
		t.Errorf("unexpected ledger entry: %+v", entry)
	}

	_, _, err = move(store, item.ID, domain.KindCheckout, 3, bob)
	var insufficient *domain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Available != 2 {
		t.Errorf("expected available 2 in error, got %d", insufficient.Available)
	}

	after, _, err = move(store, item.ID, domain.KindCheckin, 1, bob)
	if err != nil {
		t.Fatalf("checkin 1 failed: %v", err)
	}
	if after.QuantityAvailable != 3 {
		t.Errorf("expected 3 available, got %d", after.QuantityAvailable)
	}

	if err := store.DeleteItem(ctx, item.ID); !errors.Is(err, domain.ErrReferencedByTransactions) {
		t.Errorf("expected ErrReferencedByTransactions, got %v", err)
	}

	_, entries, err := store.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemLedger failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 ledger entries (refused checkout leaves none), got %d", len(entries))
	}
}

func TestSQLiteMovementBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		checkout  int
		kind      domain.Kind
		qty       int
		wantErr   error
		wantAvail int
	}{
		{"checkout exactly available", 4, 0, domain.KindCheckout, 4, nil, 0},
		{"checkout one past available", 4, 0, domain.KindCheckout, 5, domain.ErrInsufficientStock, 4},
		{"checkin exactly checked out", 4, 3, domain.KindCheckin, 3, nil, 4},
		{"checkin one past checked out", 4, 3, domain.KindCheckin, 4, domain.ErrOverCapacity, 1},
		{"checkin on full item", 4, 0, domain.KindCheckin, 1, domain.ErrOverCapacity, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSQLiteStore(t)
			item := seedItem(t, store, "INV-BOUNDARY", tt.total)
			if tt.checkout > 0 {
				if _, _, err := move(store, item.ID, domain.KindCheckout, tt.checkout, bob); err != nil {
					t.Fatalf("setup checkout failed: %v", err)
				}
			}

			_, _, err := move(store, item.ID, tt.kind, tt.qty, bob)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			got, err := store.GetItem(context.Background(), item.ID)
			if err != nil {
				t.Fatalf("GetItem failed: %v", err)
			}
			if got.QuantityAvailable != tt.wantAvail {
				t.Errorf("expected %d available, got %d", tt.wantAvail, got.QuantityAvailable)
			}
		})
	}
}

func TestSQLiteOverCapacityReportsMax(t *testing.T) {
	store := newSQLiteStore(t)
	item := seedItem(t, store, "INV-OVERCAP1", 10)
	if _, _, err := move(store, item.ID, domain.KindCheckout, 2, bob); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	_, _, err := move(store, item.ID, domain.KindCheckin, 3, bob)
	var over *domain.OverCapacityError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverCapacityError, got %v", err)
	}
	if over.Max != 2 {
		t.Errorf("expected max 2, got %d", over.Max)
	}
}

func TestSQLiteApplyMovement_UnknownItem(t *testing.T) {
	store := newSQLiteStore(t)

	_, _, err := move(store, 999, domain.KindCheckout, 1, bob)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteConcurrentCheckout(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	stock := 10
	requests := 40
	item := seedItem(t, store, "INV-CONCURR1", stock)

	var successCount, refusedCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := move(store, item.ID, domain.KindCheckout, 1, bob)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				refusedCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(stock) {
		t.Errorf("expected %d successes, got %d", stock, successCount.Load())
	}
	if refusedCount.Load() != int32(requests-stock) {
		t.Errorf("expected %d refusals, got %d", requests-stock, refusedCount.Load())
	}

	got, entries, err := store.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemLedger failed: %v", err)
	}
	if got.QuantityAvailable != 0 {
		t.Errorf("expected 0 available, got %d", got.QuantityAvailable)
	}
	if len(entries) != stock {
		t.Errorf("expected %d ledger entries, got %d", stock, len(entries))
	}
	if r := domain.Replay(*got, entries); !r.Consistent {
		t.Errorf("ledger replay inconsistent: %+v", r)
	}
}

func TestSQLiteRoundTripAndReplay(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	item := seedItem(t, store, "INV-ROUNDTRP", 7)

	steps := []struct {
		kind domain.Kind
		qty  int
	}{
		{domain.KindCheckout, 4},
		{domain.KindCheckout, 2},
		{domain.KindCheckin, 1},
		{domain.KindCheckin, 5},
	}
	for _, s := range steps {
		if _, _, err := move(store, item.ID, s.kind, s.qty, alice); err != nil {
			t.Fatalf("%s %d failed: %v", s.kind, s.qty, err)
		}
	}

	got, entries, err := store.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemLedger failed: %v", err)
	}
	if got.QuantityAvailable != 7 {
		t.Errorf("expected availability restored to 7, got %d", got.QuantityAvailable)
	}

	r := domain.Replay(*got, entries)
	if !r.Consistent || r.ReplayedAvailable != 7 {
		t.Errorf("unexpected replay: %+v", r)
	}
	if r.Checkouts != 6 || r.Checkins != 6 {
		t.Errorf("expected 6 units each way, got %d out / %d in", r.Checkouts, r.Checkins)
	}

	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.Before(entries[i-1].CreatedAt) {
			t.Errorf("entry %d is older than its predecessor", i)
		}
	}
}

func TestSQLiteStampNeverGoesBackwards(t *testing.T) {
	store := newSQLiteStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second)}
	var i int
	store.now = func() time.Time {
		now := clock[i]
		i++
		return now
	}

	first := store.stamp()
	second := store.stamp()
	third := store.stamp()
	if !second.Equal(first) {
		t.Errorf("expected clamped stamp %v, got %v", first, second)
	}
	if !third.After(second) {
		t.Errorf("expected %v after %v", third, second)
	}
}

func TestSQLiteLedgerStampsFollowCommitOrder(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"), 4)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteAdapter(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Every stamp is later than the one before and takes a moment, so a
	// writer that stamped before taking the row lock would be overtaken.
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var calls int
	store.now = func() time.Time {
		calls++
		time.Sleep(time.Millisecond)
		return base.Add(time.Duration(calls) * time.Millisecond)
	}
	item := seedItem(t, store, "INV-STAMPORD", 20)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := move(store, item.ID, domain.KindCheckout, 1, bob); err != nil {
				t.Errorf("checkout failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, entries, err := store.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemLedger failed: %v", err)
	}
	if len(entries) != 20 {
		t.Fatalf("expected 20 ledger entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ID < entries[i-1].ID {
			t.Errorf("transaction %d is stamped after %d but was written first",
				entries[i].ID, entries[i-1].ID)
		}
		if !entries[i].CreatedAt.After(entries[i-1].CreatedAt) {
			t.Errorf("entry %d shares or precedes the stamp of its predecessor", i)
		}
	}
	if !got.UpdatedAt.Equal(entries[len(entries)-1].CreatedAt) {
		t.Errorf("expected updated_at %v, got %v", entries[len(entries)-1].CreatedAt, got.UpdatedAt)
	}
}

func TestSQLiteApplyMovement_AppendFailureRollsBack(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	item := seedItem(t, store, "INV-ROLLBACK", 5)

	_, err := store.db.ExecContext(ctx, `
		CREATE TRIGGER fail_append BEFORE INSERT ON transactions
		BEGIN
			SELECT RAISE(ABORT, 'disk gone');
		END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, _, err = move(store, item.ID, domain.KindCheckout, 2, bob)
	if !errors.Is(err, domain.ErrStorageFault) {
		t.Fatalf("expected storage fault, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Errorf("expected retryable error, got %v", err)
	}

	got, entries, err := store.ItemLedger(ctx, item.ID)
	if err != nil {
		t.Fatalf("ItemLedger failed: %v", err)
	}
	if got.QuantityAvailable != 5 {
		t.Errorf("expected availability rolled back to 5, got %d", got.QuantityAvailable)
	}
	if !got.UpdatedAt.Equal(item.UpdatedAt) {
		t.Errorf("expected updated_at rolled back to %v, got %v", item.UpdatedAt, got.UpdatedAt)
	}
	if len(entries) != 0 {
		t.Errorf("expected no ledger entries, got %d", len(entries))
	}
}

func TestSQLiteDeleteItem(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	item := seedItem(t, store, "INV-DELETEME", 3)

	if err := store.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if _, err := store.GetItem(ctx, item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected deleted item to be gone, got %v", err)
	}
	if err := store.DeleteItem(ctx, item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSQLiteUpdateItem(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	item := seedItem(t, store, "INV-UPDATE01", 5)
	if _, _, err := move(store, item.ID, domain.KindCheckout, 3, bob); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	tooSmall := 1
	_, err := store.UpdateItem(ctx, item.ID, domain.ItemPatch{QuantityTotal: &tooSmall})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for total below available, got %v", err)
	}

	name := "Renamed cable"
	total := 8
	updated, err := store.UpdateItem(ctx, item.ID, domain.ItemPatch{
		Name:          &name,
		QuantityTotal: &total,
		Attributes:    map[string]string{"color": "", "manufacturer": "Acme"},
	})
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if updated.Name != name || updated.QuantityTotal != 8 {
		t.Errorf("patch not applied: %+v", updated)
	}
	if updated.QuantityAvailable != 2 {
		t.Errorf("expected availability untouched at 2, got %d", updated.QuantityAvailable)
	}
	if _, ok := updated.Attributes["color"]; ok {
		t.Error("expected color attribute to be removed")
	}
	if updated.Attributes["manufacturer"] != "Acme" || updated.Attributes["length"] != "2m" {
		t.Errorf("unexpected attributes: %v", updated.Attributes)
	}

	if _, err := store.UpdateItem(ctx, 999, domain.ItemPatch{Name: &name}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteListItems(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	first := seedItem(t, store, "INV-LIST0001", 5)
	seedItem(t, store, "INV-LIST0002", 5)
	seedItem(t, store, "INV-OTHER001", 5)
	if _, _, err := move(store, first.ID, domain.KindCheckout, 1, bob); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if _, _, err := move(store, first.ID, domain.KindCheckout, 1, bob); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	items, total, err := store.ListItems(ctx, domain.ItemQuery{Search: "LIST", Page: 1, Limit: 1})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if total != 2 {
		t.Errorf("expected 2 matches, got %d", total)
	}
	if len(items) != 1 || items[0].Code != "INV-LIST0002" {
		t.Fatalf("expected newest match first, got %+v", items)
	}

	items, _, err = store.ListItems(ctx, domain.ItemQuery{Search: "LIST", Page: 2, Limit: 1})
	if err != nil {
		t.Fatalf("ListItems page 2 failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != first.ID {
		t.Fatalf("expected first item on page 2, got %+v", items)
	}
	if items[0].TotalCheckouts != 2 {
		t.Errorf("expected 2 checkouts, got %d", items[0].TotalCheckouts)
	}

	_, total, err = store.ListItems(ctx, domain.ItemQuery{Search: "100%", Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if total != 0 {
		t.Errorf("expected wildcard to be matched literally, got %d matches", total)
	}
}

func TestSQLiteListTransactions(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	a := seedItem(t, store, "INV-TXLIST01", 10)
	b := seedItem(t, store, "INV-TXLIST02", 10)
	move(store, a.ID, domain.KindCheckout, 2, alice)
	move(store, b.ID, domain.KindCheckout, 1, bob)
	move(store, a.ID, domain.KindCheckin, 1, bob)

	tests := []struct {
		name  string
		query domain.TransactionQuery
		want  int
	}{
		{"all", domain.TransactionQuery{Page: 1, Limit: 10}, 3},
		{"checkouts", domain.TransactionQuery{Kind: domain.KindCheckout, Page: 1, Limit: 10}, 2},
		{"by user", domain.TransactionQuery{UserID: bob.ID, Page: 1, Limit: 10}, 2},
		{"by item", domain.TransactionQuery{ItemID: a.ID, Page: 1, Limit: 10}, 2},
		{"by user and item", domain.TransactionQuery{UserID: bob.ID, ItemID: b.ID, Page: 1, Limit: 10}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, total, err := store.ListTransactions(ctx, tt.query)
			if err != nil {
				t.Fatalf("ListTransactions failed: %v", err)
			}
			if total != tt.want || len(views) != tt.want {
				t.Errorf("expected %d entries, got total %d / page %d", tt.want, total, len(views))
			}
		})
	}

	views, _, err := store.ListTransactions(ctx, domain.TransactionQuery{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if views[0].Kind != domain.KindCheckin || views[0].ItemCode != a.Code || views[0].ItemName != a.Name {
		t.Errorf("expected newest entry joined with its item, got %+v", views[0])
	}
}

func TestSQLiteReports(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	a := seedItem(t, store, "INV-REPORT01", 10)
	b := seedItem(t, store, "INV-REPORT02", 4)
	tool := &domain.Item{Code: "INV-REPORT03", Name: "Crimper", Type: "tool", Category: "tool",
		QuantityTotal: 2, QuantityAvailable: 2, QuantityInitial: 2}
	if err := store.CreateItem(ctx, tool); err != nil {
		t.Fatalf("create tool: %v", err)
	}

	move(store, a.ID, domain.KindCheckout, 3, bob)
	move(store, a.ID, domain.KindCheckout, 1, bob)
	move(store, b.ID, domain.KindCheckout, 4, alice)
	move(store, a.ID, domain.KindCheckin, 2, bob)

	totals, err := store.InventoryTotals(ctx)
	if err != nil {
		t.Fatalf("InventoryTotals failed: %v", err)
	}
	if totals != (domain.InventoryTotals{Items: 3, Available: 10, CheckedOut: 6}) {
		t.Errorf("unexpected totals: %+v", totals)
	}

	categories, err := store.CategoryBreakdown(ctx)
	if err != nil {
		t.Fatalf("CategoryBreakdown failed: %v", err)
	}
	if len(categories) != 2 || categories[0].Category != "cable" || categories[0].Items != 2 || categories[0].Available != 8 {
		t.Errorf("unexpected categories: %+v", categories)
	}

	txTotals, err := store.TransactionTotals(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("TransactionTotals failed: %v", err)
	}
	if txTotals != (domain.TransactionTotals{All: 4, Today: 4, Checkouts: 3, Checkins: 1}) {
		t.Errorf("unexpected transaction totals: %+v", txTotals)
	}
	future, err := store.TransactionTotals(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("TransactionTotals failed: %v", err)
	}
	if future.Today != 0 || future.All != 4 {
		t.Errorf("unexpected totals for future cutoff: %+v", future)
	}

	users, err := store.TopUsers(ctx, 5)
	if err != nil {
		t.Fatalf("TopUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].UserID != bob.ID || users[0].Count != 3 || users[0].Username != "bob" {
		t.Errorf("unexpected top users: %+v", users)
	}

	items, err := store.TopItems(ctx, 1)
	if err != nil {
		t.Fatalf("TopItems failed: %v", err)
	}
	if len(items) != 1 || items[0].ItemID != a.ID || items[0].Count != 3 || items[0].Name != a.Name {
		t.Errorf("unexpected top items: %+v", items)
	}
}
