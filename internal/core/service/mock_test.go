package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/stockledger/internal/core/domain"
)

// Mock store covering the catalog, ledger and report ports
type mockStore struct {
	mu      sync.Mutex
	items   map[int64]*domain.Item
	entries []domain.Transaction
	nextID  int64
	clock   time.Time

	failWith    error
	beforeApply func()
	getCalls    int
	codeCalls   int
	createErrs  []error
}

func newMockStore() *mockStore {
	return &mockStore{
		items: make(map[int64]*domain.Item),
		clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *mockStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockStore) seed(code string, total int) *domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	item := &domain.Item{
		ID:                m.nextID,
		Code:              code,
		Name:              "item " + code,
		Type:              domain.DefaultItemType,
		Category:          domain.DefaultItemCategory,
		QuantityTotal:     total,
		QuantityAvailable: total,
		QuantityInitial:   total,
		CreatedAt:         m.tick(),
	}
	m.items[item.ID] = item
	cp := *item
	return &cp
}

func (m *mockStore) CreateItem(ctx context.Context, item *domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range m.items {
		if existing.Code == item.Code {
			return fmt.Errorf("code %q: %w", item.Code, domain.ErrDuplicateCode)
		}
	}

	m.nextID++
	item.ID = m.nextID
	item.CreatedAt = m.tick()
	item.UpdatedAt = item.CreatedAt
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockStore) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	cp := *item
	return &cp, nil
}

func (m *mockStore) GetItemByCode(ctx context.Context, code string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codeCalls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, item := range m.items {
		if item.Code == code {
			cp := *item
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("item %q: %w", code, domain.ErrNotFound)
}

func (m *mockStore) ListItems(ctx context.Context, query domain.ItemQuery) ([]domain.ItemSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []domain.ItemSummary
	for _, item := range m.items {
		if query.Search == "" || strings.Contains(item.Code, query.Search) || strings.Contains(item.Name, query.Search) {
			matches = append(matches, domain.ItemSummary{Item: *item})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })
	return window(matches, query.Page, query.Limit), len(matches), nil
}

func (m *mockStore) UpdateItem(ctx context.Context, id int64, patch domain.ItemPatch) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	if patch.QuantityTotal != nil {
		if *patch.QuantityTotal < item.QuantityAvailable {
			return nil, &domain.ValidationError{Field: "quantity_total", Message: "below available"}
		}
		item.QuantityTotal = *patch.QuantityTotal
	}
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	cp := *item
	return &cp, nil
}

func (m *mockStore) DeleteItem(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	for _, e := range m.entries {
		if e.ItemID == id {
			return fmt.Errorf("item %d: %w", id, domain.ErrReferencedByTransactions)
		}
	}
	delete(m.items, id)
	return nil
}

func (m *mockStore) ApplyMovement(ctx context.Context, mv domain.Movement) (*domain.Item, *domain.Transaction, error) {
	if m.beforeApply != nil {
		m.beforeApply()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, nil, m.failWith
	}
	item, ok := m.items[mv.ItemID]
	if !ok {
		return nil, nil, fmt.Errorf("item %d: %w", mv.ItemID, domain.ErrNotFound)
	}

	switch mv.Kind {
	case domain.KindCheckout:
		if item.QuantityAvailable < mv.Quantity {
			return nil, nil, &domain.InsufficientStockError{ItemID: item.ID, Requested: mv.Quantity, Available: item.QuantityAvailable}
		}
		item.QuantityAvailable -= mv.Quantity
	case domain.KindCheckin:
		if item.CheckedOut() < mv.Quantity {
			return nil, nil, &domain.OverCapacityError{ItemID: item.ID, Requested: mv.Quantity, Max: item.CheckedOut()}
		}
		item.QuantityAvailable += mv.Quantity
	}

	entry := domain.Transaction{
		ID:        int64(len(m.entries) + 1),
		ItemID:    item.ID,
		UserID:    mv.Actor.ID,
		Username:  mv.Actor.Username,
		Kind:      mv.Kind,
		Quantity:  mv.Quantity,
		Note:      mv.Note,
		CreatedAt: m.tick(),
	}
	m.entries = append(m.entries, entry)

	cp := *item
	return &cp, &entry, nil
}

func (m *mockStore) ListTransactions(ctx context.Context, query domain.TransactionQuery) ([]domain.TransactionView, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, 0, m.failWith
	}
	var views []domain.TransactionView
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if query.Kind != "" && e.Kind != query.Kind {
			continue
		}
		if query.UserID != 0 && e.UserID != query.UserID {
			continue
		}
		if query.ItemID != 0 && e.ItemID != query.ItemID {
			continue
		}
		view := domain.TransactionView{Transaction: e}
		if item, ok := m.items[e.ItemID]; ok {
			view.ItemName, view.ItemCode = item.Name, item.Code
		}
		views = append(views, view)
	}
	return window(views, query.Page, query.Limit), len(views), nil
}

func (m *mockStore) ItemLedger(ctx context.Context, itemID int64) (*domain.Item, []domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, nil, fmt.Errorf("item %d: %w", itemID, domain.ErrNotFound)
	}
	var entries []domain.Transaction
	for _, e := range m.entries {
		if e.ItemID == itemID {
			entries = append(entries, e)
		}
	}
	cp := *item
	return &cp, entries, nil
}

func (m *mockStore) InventoryTotals(ctx context.Context) (domain.InventoryTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return domain.InventoryTotals{}, m.failWith
	}
	var totals domain.InventoryTotals
	for _, item := range m.items {
		totals.Items++
		totals.Available += item.QuantityAvailable
		totals.CheckedOut += item.CheckedOut()
	}
	return totals, nil
}

func (m *mockStore) CategoryBreakdown(ctx context.Context) ([]domain.CategoryStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byCategory := make(map[string]*domain.CategoryStock)
	for _, item := range m.items {
		c, ok := byCategory[item.Category]
		if !ok {
			c = &domain.CategoryStock{Category: item.Category}
			byCategory[item.Category] = c
		}
		c.Items++
		c.Available += item.QuantityAvailable
	}
	var out []domain.CategoryStock
	for _, c := range byCategory {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Items > out[j].Items })
	return out, nil
}

func (m *mockStore) TransactionTotals(ctx context.Context, since time.Time) (domain.TransactionTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var totals domain.TransactionTotals
	for _, e := range m.entries {
		totals.All++
		if !e.CreatedAt.Before(since) {
			totals.Today++
		}
		if e.Kind == domain.KindCheckout {
			totals.Checkouts++
		} else {
			totals.Checkins++
		}
	}
	return totals, nil
}

func (m *mockStore) TopUsers(ctx context.Context, limit int) ([]domain.UserActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[int64]*domain.UserActivity)
	for _, e := range m.entries {
		u, ok := counts[e.UserID]
		if !ok {
			u = &domain.UserActivity{UserID: e.UserID, Username: e.Username}
			counts[e.UserID] = u
		}
		u.Count++
	}
	var out []domain.UserActivity
	for _, u := range counts {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) TopItems(ctx context.Context, limit int) ([]domain.ItemActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[int64]*domain.ItemActivity)
	for _, e := range m.entries {
		a, ok := counts[e.ItemID]
		if !ok {
			a = &domain.ItemActivity{ItemID: e.ItemID}
			if item, found := m.items[e.ItemID]; found {
				a.Name = item.Name
			}
			counts[e.ItemID] = a
		}
		a.Count++
	}
	var out []domain.ItemActivity
	for _, a := range counts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) available(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].QuantityAvailable
}

func (m *mockStore) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func window[T any](all []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// Mock IdempotencyRepository
type mockIdempotency struct {
	mu         sync.Mutex
	keys       map[string]string
	released   []string
	reserveErr error
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]string)}
}

func (m *mockIdempotency) Reserve(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reserveErr != nil {
		return false, m.reserveErr
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "pending"
	return true, nil
}

func (m *mockIdempotency) Complete(ctx context.Context, key string, transactionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := m.keys[key]; ok {
		m.keys[key] = fmt.Sprint(transactionID)
	}
	return nil
}

func (m *mockIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	m.released = append(m.released, key)
	if m.keys[key] == "pending" {
		delete(m.keys, key)
	}
	return nil
}
