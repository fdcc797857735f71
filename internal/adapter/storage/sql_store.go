package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/stockledger/internal/core/domain"
)

const itemColumns = `i.id, i.code, i.name, i.type, i.category, i.location, i.description, i.attributes,
	i.quantity_total, i.quantity_available, i.quantity_initial, i.created_by, i.created_at, i.updated_at`

const transactionColumns = `t.id, t.item_id, t.user_id, t.username, t.kind, t.quantity, t.note, t.created_at`

type dialect struct {
	name         string
	schema       []string
	forUpdate    string
	isDuplicate  func(error) bool
	isForeignKey func(error) bool
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// sqlStore holds the catalog and the ledger in one relational database. Every
// quantity change goes through a guarded UPDATE in the same transaction as
// the ledger INSERT.
type sqlStore struct {
	db      *sql.DB
	dialect dialect

	clockMu sync.Mutex
	now     func() time.Time
	last    time.Time
}

func newSQLStore(db *sql.DB, d dialect) *sqlStore {
	return &sqlStore{db: db, dialect: d, now: time.Now}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *sqlStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return domain.NewStorageError("ping", s.db.PingContext(ctx))
}

// stamp returns the current time, never earlier than a previous stamp.
func (s *sqlStore) stamp() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := s.now().UTC()
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}

func (s *sqlStore) CreateItem(ctx context.Context, item *domain.Item) error {
	attrs, err := encodeAttributes(item.Attributes)
	if err != nil {
		return err
	}

	now := s.stamp()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO items (code, name, type, category, location, description, attributes,
			quantity_total, quantity_available, quantity_initial, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Code, item.Name, item.Type, item.Category, item.Location, item.Description, attrs,
		item.QuantityTotal, item.QuantityAvailable, item.QuantityInitial, item.CreatedBy,
		now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("code %q: %w", item.Code, domain.ErrDuplicateCode)
		}
		return domain.NewStorageError("insert item", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.NewStorageError("insert item", err)
	}

	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (s *sqlStore) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return s.getItem(ctx, s.db, id, false)
}

func (s *sqlStore) GetItemByCode(ctx context.Context, code string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items i WHERE i.code = ?`, code)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %q: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewStorageError("query item", err)
	}
	return item, nil
}

func (s *sqlStore) getItem(ctx context.Context, q queryer, id int64, lock bool) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.id = ?`
	if lock {
		query += s.dialect.forUpdate
	}

	item, err := scanItem(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewStorageError("query item", err)
	}
	return item, nil
}

func (s *sqlStore) ListItems(ctx context.Context, query domain.ItemQuery) ([]domain.ItemSummary, int, error) {
	var where string
	var args []any
	if query.Search != "" {
		pattern := "%" + escapeLike(query.Search) + "%"
		where = ` WHERE (i.name LIKE ? ESCAPE '!' OR i.code LIKE ? ESCAPE '!' OR i.location LIKE ? ESCAPE '!' OR i.category LIKE ? ESCAPE '!')`
		args = []any{pattern, pattern, pattern, pattern}
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items i`+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewStorageError("count items", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`,
			(SELECT COUNT(*) FROM transactions t WHERE t.item_id = i.id AND t.kind = 'checkout')
		FROM items i`+where+`
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ? OFFSET ?`,
		append(args, query.Limit, offset(query.Page, query.Limit))...,
	)
	if err != nil {
		return nil, 0, domain.NewStorageError("list items", err)
	}
	defer rows.Close()

	items := make([]domain.ItemSummary, 0)
	for rows.Next() {
		var summary domain.ItemSummary
		var attrs string
		var created, updated int64
		err := rows.Scan(
			&summary.ID, &summary.Code, &summary.Name, &summary.Type, &summary.Category,
			&summary.Location, &summary.Description, &attrs, &summary.QuantityTotal,
			&summary.QuantityAvailable, &summary.QuantityInitial, &summary.CreatedBy,
			&created, &updated, &summary.TotalCheckouts,
		)
		if err != nil {
			return nil, 0, domain.NewStorageError("scan item", err)
		}
		if summary.Attributes, err = decodeAttributes(attrs); err != nil {
			return nil, 0, err
		}
		summary.CreatedAt = fromNanos(created)
		summary.UpdatedAt = fromNanos(updated)
		items = append(items, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.NewStorageError("list items", err)
	}

	return items, total, nil
}

func (s *sqlStore) UpdateItem(ctx context.Context, id int64, patch domain.ItemPatch) (*domain.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewStorageError("begin update", err)
	}
	defer tx.Rollback()

	sets := []string{"updated_at = ?"}
	args := []any{s.stamp().UnixNano()}
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"name", patch.Name},
		{"type", patch.Type},
		{"category", patch.Category},
		{"location", patch.Location},
		{"description", patch.Description},
	} {
		if f.value != nil {
			sets = append(sets, f.column+" = ?")
			args = append(args, *f.value)
		}
	}

	if len(patch.Attributes) > 0 {
		current, err := s.getItem(ctx, tx, id, true)
		if err != nil {
			return nil, err
		}
		encoded, err := encodeAttributes(mergeAttributes(current.Attributes, patch.Attributes))
		if err != nil {
			return nil, err
		}
		sets = append(sets, "attributes = ?")
		args = append(args, encoded)
	}

	guard := ""
	if patch.QuantityTotal != nil {
		sets = append(sets, "quantity_total = ?")
		args = append(args, *patch.QuantityTotal)
		guard = " AND quantity_available <= ?"
	}
	args = append(args, id)
	if patch.QuantityTotal != nil {
		args = append(args, *patch.QuantityTotal)
	}

	result, err := tx.ExecContext(ctx, `UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`+guard, args...)
	if err != nil {
		return nil, domain.NewStorageError("update item", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, domain.NewStorageError("update item", err)
	}
	if rows == 0 {
		// MySQL reports zero rows for a matched but unchanged row, so only a
		// violated guard is an error here.
		item, err := s.getItem(ctx, tx, id, false)
		if err != nil {
			return nil, err
		}
		if patch.QuantityTotal != nil && *patch.QuantityTotal < item.QuantityAvailable {
			return nil, &domain.ValidationError{
				Field:   "quantity_total",
				Message: fmt.Sprintf("must be at least the available quantity %d", item.QuantityAvailable),
			}
		}
	}

	item, err := s.getItem(ctx, tx, id, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.NewStorageError("commit update", err)
	}
	return item, nil
}

func (s *sqlStore) DeleteItem(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM items
		WHERE id = ? AND NOT EXISTS (SELECT 1 FROM transactions WHERE item_id = ?)`,
		id, id,
	)
	if err != nil {
		if s.dialect.isForeignKey(err) {
			return fmt.Errorf("item %d: %w", id, domain.ErrReferencedByTransactions)
		}
		return domain.NewStorageError("delete item", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewStorageError("delete item", err)
	}
	if rows == 0 {
		if _, err := s.GetItem(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("item %d: %w", id, domain.ErrReferencedByTransactions)
	}
	return nil
}

func (s *sqlStore) ApplyMovement(ctx context.Context, m domain.Movement) (*domain.Item, *domain.Transaction, error) {
	var guard string
	switch m.Kind {
	case domain.KindCheckout:
		guard = `UPDATE items SET quantity_available = quantity_available - ?
			WHERE id = ? AND quantity_available >= ?`
	case domain.KindCheckin:
		guard = `UPDATE items SET quantity_available = quantity_available + ?
			WHERE id = ? AND quantity_total - quantity_available >= ?`
	default:
		return nil, nil, &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown movement kind %q", m.Kind)}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, domain.NewStorageError("begin movement", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, guard, m.Quantity, m.ItemID, m.Quantity)
	if err != nil {
		return nil, nil, domain.NewStorageError("update availability", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, nil, domain.NewStorageError("update availability", err)
	}
	if rows == 0 {
		item, err := s.getItem(ctx, tx, m.ItemID, true)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, refusal(m, item)
	}

	// The row lock is held from here to commit, so stamps follow ledger order.
	now := s.stamp()
	if _, err := tx.ExecContext(ctx, `UPDATE items SET updated_at = ? WHERE id = ?`, now.UnixNano(), m.ItemID); err != nil {
		return nil, nil, domain.NewStorageError("update availability", err)
	}

	entry := domain.Transaction{
		ItemID:    m.ItemID,
		UserID:    m.Actor.ID,
		Username:  m.Actor.Username,
		Kind:      m.Kind,
		Quantity:  m.Quantity,
		Note:      m.Note,
		CreatedAt: now,
	}
	result, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (item_id, user_id, username, kind, quantity, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ItemID, entry.UserID, entry.Username, string(entry.Kind), entry.Quantity, entry.Note,
		now.UnixNano(),
	)
	if err != nil {
		return nil, nil, domain.NewStorageError("append transaction", err)
	}
	if entry.ID, err = result.LastInsertId(); err != nil {
		return nil, nil, domain.NewStorageError("append transaction", err)
	}

	item, err := s.getItem(ctx, tx, m.ItemID, false)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, domain.NewStorageError("commit movement", err)
	}
	return item, &entry, nil
}

func refusal(m domain.Movement, item *domain.Item) error {
	if m.Kind == domain.KindCheckout {
		return &domain.InsufficientStockError{ItemID: item.ID, Requested: m.Quantity, Available: item.QuantityAvailable}
	}
	return &domain.OverCapacityError{ItemID: item.ID, Requested: m.Quantity, Max: item.CheckedOut()}
}

func (s *sqlStore) ListTransactions(ctx context.Context, query domain.TransactionQuery) ([]domain.TransactionView, int, error) {
	var conds []string
	var args []any
	if query.Kind != "" {
		conds = append(conds, "t.kind = ?")
		args = append(args, string(query.Kind))
	}
	if query.UserID != 0 {
		conds = append(conds, "t.user_id = ?")
		args = append(args, query.UserID)
	}
	if query.ItemID != 0 {
		conds = append(conds, "t.item_id = ?")
		args = append(args, query.ItemID)
	}

	var where string
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, domain.NewStorageError("count transactions", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`, COALESCE(i.name, ''), COALESCE(i.code, '')
		FROM transactions t
		LEFT JOIN items i ON i.id = t.item_id`+where+`
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ? OFFSET ?`,
		append(args, query.Limit, offset(query.Page, query.Limit))...,
	)
	if err != nil {
		return nil, 0, domain.NewStorageError("list transactions", err)
	}
	defer rows.Close()

	views := make([]domain.TransactionView, 0)
	for rows.Next() {
		var v domain.TransactionView
		var kind string
		var created int64
		err := rows.Scan(&v.ID, &v.ItemID, &v.UserID, &v.Username, &kind, &v.Quantity, &v.Note,
			&created, &v.ItemName, &v.ItemCode)
		if err != nil {
			return nil, 0, domain.NewStorageError("scan transaction", err)
		}
		v.Kind = domain.Kind(kind)
		v.CreatedAt = fromNanos(created)
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.NewStorageError("list transactions", err)
	}

	return views, total, nil
}

func (s *sqlStore) ItemLedger(ctx context.Context, itemID int64) (*domain.Item, []domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, domain.NewStorageError("begin ledger read", err)
	}
	defer tx.Rollback()

	item, err := s.getItem(ctx, tx, itemID, false)
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.item_id = ?
		ORDER BY t.created_at ASC, t.id ASC`, itemID)
	if err != nil {
		return nil, nil, domain.NewStorageError("query ledger", err)
	}
	defer rows.Close()

	entries := make([]domain.Transaction, 0)
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, domain.NewStorageError("scan transaction", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, domain.NewStorageError("query ledger", err)
	}

	return item, entries, nil
}

func scanItem(row scanner) (*domain.Item, error) {
	var item domain.Item
	var attrs string
	var created, updated int64
	err := row.Scan(
		&item.ID, &item.Code, &item.Name, &item.Type, &item.Category, &item.Location,
		&item.Description, &attrs, &item.QuantityTotal, &item.QuantityAvailable,
		&item.QuantityInitial, &item.CreatedBy, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	if item.Attributes, err = decodeAttributes(attrs); err != nil {
		return nil, err
	}
	item.CreatedAt = fromNanos(created)
	item.UpdatedAt = fromNanos(updated)
	return &item, nil
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var entry domain.Transaction
	var kind string
	var created int64
	err := row.Scan(&entry.ID, &entry.ItemID, &entry.UserID, &entry.Username, &kind,
		&entry.Quantity, &entry.Note, &created)
	if err != nil {
		return nil, err
	}
	entry.Kind = domain.Kind(kind)
	entry.CreatedAt = fromNanos(created)
	return &entry, nil
}

func encodeAttributes(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

func decodeAttributes(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	if s == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(s), &attrs); err != nil {
		return nil, domain.NewStorageError("decode attributes", err)
	}
	return attrs, nil
}

func mergeAttributes(current, patch map[string]string) map[string]string {
	merged := make(map[string]string, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func offset(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
