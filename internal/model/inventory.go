package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ItemCategory groups inventory items by how they move through the hotel.
type ItemCategory string

const (
	CategoryLinen   ItemCategory = "Linen"
	CategoryAsset   ItemCategory = "Asset"
	CategoryAmenity ItemCategory = "Amenity"
	CategoryMinibar ItemCategory = "Minibar"
	CategoryService ItemCategory = "Service"
)

// InventoryItem tracks three disjoint counters. Their sum is the number of
// units owned, except transiently inside a multi-step operation.
type InventoryItem struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	Name          string          `gorm:"size:256;not null" json:"name"`
	Category      ItemCategory    `gorm:"size:32;not null" json:"category"`
	Unit          string          `gorm:"size:32" json:"unit"`
	CleanStock    int             `gorm:"not null" json:"clean_stock"`
	InCirculation int             `gorm:"not null" json:"in_circulation"`
	LaundryStock  int             `gorm:"not null" json:"laundry_stock"`
	Price         decimal.Decimal `gorm:"type:decimal(20,2)" json:"price"` // Zero for amenities
	CostPrice     decimal.Decimal `gorm:"type:decimal(20,2)" json:"cost_price"`
	DefaultQty    int             `json:"default_qty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Total returns the number of units currently accounted for.
func (i InventoryItem) Total() int { return i.CleanStock + i.InCirculation + i.LaundryStock }

// Circulates reports whether the item is reusable and returns via laundry.
func (i InventoryItem) Circulates() bool {
	return i.Category == CategoryLinen || i.Category == CategoryAsset
}

// TransactionType labels an inventory movement.
type TransactionType string

const (
	TxMinibarSold TransactionType = "MINIBAR_SOLD"
	TxAmenityUsed TransactionType = "AMENITY_USED"
	TxOut         TransactionType = "OUT"
	TxReturn      TransactionType = "RETURN"
	TxLaundered   TransactionType = "LAUNDERED"
)

// InventoryTransaction is an append-only log entry.
type InventoryTransaction struct {
	ID           string          `gorm:"primaryKey;size:64" json:"id"`
	ItemID       string          `gorm:"size:64;not null;index" json:"item_id"`
	ItemName     string          `gorm:"size:256" json:"item_name"`
	Type         TransactionType `gorm:"size:32;not null" json:"type"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,2)" json:"unit_cost"`
	TotalValue   decimal.Decimal `gorm:"type:decimal(20,2)" json:"total_value"`
	FacilityName string          `gorm:"size:128" json:"facility_name"`
	RoomCode     string          `gorm:"size:32" json:"room_code"`
	StaffID      string          `gorm:"size:128" json:"staff_id"`
	Note         string          `gorm:"type:text" json:"note"`
	CreatedAt    time.Time       `gorm:"not null;index" json:"created_at"`
}

// RecipeLine is one expected item in a prepared room.
type RecipeLine struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// RoomRecipe lists what a room of a given type is stocked with.
type RoomRecipe struct {
	RoomType    string                          `gorm:"primaryKey;size:64" json:"room_type"`
	Description string                          `gorm:"size:256" json:"description"`
	Items       datatypes.JSONSlice[RecipeLine] `json:"items"`
}
