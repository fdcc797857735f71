package storage

import (
	"context"
	"time"

	"github.com/rl1809/stockledger/internal/core/domain"
)

func (s *sqlStore) InventoryTotals(ctx context.Context) (domain.InventoryTotals, error) {
	var totals domain.InventoryTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(quantity_available), 0),
			COALESCE(SUM(quantity_total - quantity_available), 0)
		FROM items`,
	).Scan(&totals.Items, &totals.Available, &totals.CheckedOut)
	if err != nil {
		return totals, domain.NewStorageError("inventory totals", err)
	}
	return totals, nil
}

func (s *sqlStore) CategoryBreakdown(ctx context.Context) ([]domain.CategoryStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS n, COALESCE(SUM(quantity_available), 0)
		FROM items
		GROUP BY category
		ORDER BY n DESC, category ASC`)
	if err != nil {
		return nil, domain.NewStorageError("category breakdown", err)
	}
	defer rows.Close()

	categories := make([]domain.CategoryStock, 0)
	for rows.Next() {
		var c domain.CategoryStock
		if err := rows.Scan(&c.Category, &c.Items, &c.Available); err != nil {
			return nil, domain.NewStorageError("scan category", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("category breakdown", err)
	}
	return categories, nil
}

func (s *sqlStore) TransactionTotals(ctx context.Context, since time.Time) (domain.TransactionTotals, error) {
	var totals domain.TransactionTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'checkout' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'checkin' THEN 1 ELSE 0 END), 0)
		FROM transactions`,
		since.UnixNano(),
	).Scan(&totals.All, &totals.Today, &totals.Checkouts, &totals.Checkins)
	if err != nil {
		return totals, domain.NewStorageError("transaction totals", err)
	}
	return totals, nil
}

func (s *sqlStore) TopUsers(ctx context.Context, limit int) ([]domain.UserActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, MAX(username), COUNT(*) AS n
		FROM transactions
		GROUP BY user_id
		ORDER BY n DESC, user_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, domain.NewStorageError("top users", err)
	}
	defer rows.Close()

	users := make([]domain.UserActivity, 0, limit)
	for rows.Next() {
		var u domain.UserActivity
		if err := rows.Scan(&u.UserID, &u.Username, &u.Count); err != nil {
			return nil, domain.NewStorageError("scan user activity", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("top users", err)
	}
	return users, nil
}

func (s *sqlStore) TopItems(ctx context.Context, limit int) ([]domain.ItemActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.item_id, COALESCE(MAX(i.name), ''), COUNT(*) AS n
		FROM transactions t
		LEFT JOIN items i ON i.id = t.item_id
		GROUP BY t.item_id
		ORDER BY n DESC, t.item_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, domain.NewStorageError("top items", err)
	}
	defer rows.Close()

	items := make([]domain.ItemActivity, 0, limit)
	for rows.Next() {
		var a domain.ItemActivity
		if err := rows.Scan(&a.ItemID, &a.Name, &a.Count); err != nil {
			return nil, domain.NewStorageError("scan item activity", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("top items", err)
	}
	return items, nil
}
