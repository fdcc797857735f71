package domain

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindCheckout Kind = "checkout"
	KindCheckin  Kind = "checkin"
)

func (k Kind) Valid() bool {
	return k == KindCheckout || k == KindCheckin
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown movement kind %q", s)}
	}
	return k, nil
}

// Transaction is one immutable ledger entry.
type Transaction struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Kind      Kind      `json:"type"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// Delta is the signed effect of the entry on quantity_available.
func (t Transaction) Delta() int {
	if t.Kind == KindCheckout {
		return -t.Quantity
	}
	return t.Quantity
}

// TransactionView is a ledger entry joined with its item for listings.
type TransactionView struct {
	Transaction
	ItemName string `json:"item_name"`
	ItemCode string `json:"qr_code"`
}

// Movement is a validated request handed to the store for atomic application.
type Movement struct {
	ItemID   int64
	Kind     Kind
	Quantity int
	Actor    Actor
	Note     string
}

type Receipt struct {
	TransactionID int64     `json:"transaction_id"`
	Kind          Kind      `json:"type"`
	Quantity      int       `json:"quantity"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"user"`
	Note          string    `json:"notes,omitempty"`
}

func NewReceipt(tx Transaction) Receipt {
	return Receipt{
		TransactionID: tx.ID,
		Kind:          tx.Kind,
		Quantity:      tx.Quantity,
		Timestamp:     tx.CreatedAt,
		UserID:        tx.UserID,
		Username:      tx.Username,
		Note:          tx.Note,
	}
}

type MovementResult struct {
	Item    Item    `json:"item"`
	Receipt Receipt `json:"transaction"`
}

// MovementEvent is published after a movement commits.
type MovementEvent struct {
	TransactionID     int64     `json:"transaction_id"`
	ItemID            int64     `json:"item_id"`
	ItemCode          string    `json:"item_code"`
	Kind              Kind      `json:"type"`
	Quantity          int       `json:"quantity"`
	QuantityAvailable int       `json:"quantity_available"`
	QuantityTotal     int       `json:"quantity_total"`
	UserID            int64     `json:"user_id"`
	Username          string    `json:"username"`
	OccurredAt        time.Time `json:"occurred_at"`
}

func NewMovementEvent(item Item, tx Transaction) MovementEvent {
	return MovementEvent{
		TransactionID:     tx.ID,
		ItemID:            item.ID,
		ItemCode:          item.Code,
		Kind:              tx.Kind,
		Quantity:          tx.Quantity,
		QuantityAvailable: item.QuantityAvailable,
		QuantityTotal:     item.QuantityTotal,
		UserID:            tx.UserID,
		Username:          tx.Username,
		OccurredAt:        tx.CreatedAt,
	}
}

type TransactionQuery struct {
	Kind   Kind
	UserID int64
	ItemID int64
	Page   int
	Limit  int
}

type TransactionPage struct {
	Transactions []TransactionView `json:"transactions"`
	Pagination   Pagination        `json:"pagination"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}
