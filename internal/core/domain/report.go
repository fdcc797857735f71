package domain

type InventoryTotals struct {
	Items      int `json:"items"`
	Available  int `json:"available"`
	CheckedOut int `json:"checked_out"`
}

type CategoryStock struct {
	Category  string `json:"category"`
	Items     int    `json:"count"`
	Available int    `json:"available"`
}

type Overview struct {
	Totals         InventoryTotals   `json:"totals"`
	Categories     []CategoryStock   `json:"categories"`
	RecentActivity []TransactionView `json:"recent_activity"`
}

type TransactionTotals struct {
	All       int `json:"all_transactions"`
	Today     int `json:"today_transactions"`
	Checkouts int `json:"checkouts"`
	Checkins  int `json:"checkins"`
}

type UserActivity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Count    int    `json:"transaction_count"`
}

type ItemActivity struct {
	ItemID int64  `json:"item_id"`
	Name   string `json:"name"`
	Count  int    `json:"transaction_count"`
}

type TransactionStats struct {
	Totals   TransactionTotals `json:"totals"`
	TopUsers []UserActivity    `json:"top_users"`
	TopItems []ItemActivity    `json:"top_items"`
}

type ItemDetail struct {
	Item
	RecentTransactions []TransactionView `json:"recent_transactions"`
}

// Reconciliation is the result of replaying an item's ledger from its
// initial total.
type Reconciliation struct {
	ItemID            int64 `json:"item_id"`
	QuantityInitial   int   `json:"quantity_initial"`
	QuantityTotal     int   `json:"quantity_total"`
	QuantityAvailable int   `json:"quantity_available"`
	Checkouts         int   `json:"checked_out_units"`
	Checkins          int   `json:"checked_in_units"`
	Entries           int   `json:"entries"`
	ReplayedAvailable int   `json:"replayed_available"`
	Consistent        bool  `json:"consistent"`
}

// Replay applies the entries, in order, to item's initial total.
func Replay(item Item, entries []Transaction) Reconciliation {
	r := Reconciliation{
		ItemID:            item.ID,
		QuantityInitial:   item.QuantityInitial,
		QuantityTotal:     item.QuantityTotal,
		QuantityAvailable: item.QuantityAvailable,
		Entries:           len(entries),
		ReplayedAvailable: item.QuantityInitial,
	}
	for _, tx := range entries {
		if tx.Kind == KindCheckout {
			r.Checkouts += tx.Quantity
		} else {
			r.Checkins += tx.Quantity
		}
		r.ReplayedAvailable += tx.Delta()
	}
	r.Consistent = r.ReplayedAvailable == item.QuantityAvailable
	return r
}
