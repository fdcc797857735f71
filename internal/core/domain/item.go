package domain

import "time"

const (
	DefaultItemType     = "rj45"
	DefaultItemCategory = "cable"
)

type Item struct {
	ID                int64             `json:"id"`
	Code              string            `json:"code"`
	Name              string            `json:"name"`
	Type              string            `json:"type"`
	Category          string            `json:"category"`
	Location          string            `json:"location,omitempty"`
	Description       string            `json:"description,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	QuantityTotal     int               `json:"quantity_total"`
	QuantityAvailable int               `json:"quantity_available"`
	QuantityInitial   int               `json:"quantity_initial"`
	CreatedBy         int64             `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CheckedOut is the number of units currently out of stock.
func (i Item) CheckedOut() int {
	return i.QuantityTotal - i.QuantityAvailable
}

// ItemSpec is the input for creating an item. Code is optional; an empty code
// is generated by the catalog.
type ItemSpec struct {
	Code          string            `json:"code,omitempty" validate:"omitempty,max=64,printascii"`
	Name          string            `json:"name" validate:"required,max=200"`
	Type          string            `json:"type,omitempty" validate:"max=50"`
	Category      string            `json:"category,omitempty" validate:"max=50"`
	Location      string            `json:"location,omitempty" validate:"max=200"`
	Description   string            `json:"description,omitempty" validate:"max=2000"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	QuantityTotal int               `json:"quantity_total" validate:"gte=1"`
}

// ItemPatch carries the fields of an update. Nil fields are left untouched.
// An attribute with an empty value is removed.
type ItemPatch struct {
	Name          *string           `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Type          *string           `json:"type,omitempty" validate:"omitempty,max=50"`
	Category      *string           `json:"category,omitempty" validate:"omitempty,max=50"`
	Location      *string           `json:"location,omitempty" validate:"omitempty,max=200"`
	Description   *string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	QuantityTotal *int              `json:"quantity_total,omitempty" validate:"omitempty,gte=1"`
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Type == nil && p.Category == nil && p.Location == nil &&
		p.Description == nil && len(p.Attributes) == 0 && p.QuantityTotal == nil
}

type ItemQuery struct {
	Search string
	Page   int
	Limit  int
}

type ItemSummary struct {
	Item
	TotalCheckouts int `json:"total_checkouts"`
}

type ItemPage struct {
	Items      []ItemSummary `json:"items"`
	Pagination Pagination    `json:"pagination"`
}
