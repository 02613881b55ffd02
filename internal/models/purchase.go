// internal/models/purchase.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase is the aggregate root for one checkout attempt. Amounts are
// decimal currency values; the invariant TotalAmount == SubtotalAmount +
// PlatformFeeAmount holds from creation. StripeFeeAmount is informational,
// backfilled after settlement, and never changes what the buyer was charged.
type Purchase struct {
	BaseModel
	BuyerID           uuid.UUID      `json:"buyer_id" gorm:"type:uuid;not null;index"`
	Status            PurchaseStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	SubtotalAmount    float64        `json:"subtotal_amount" gorm:"type:decimal(10,2);not null"`
	PlatformFeeAmount float64        `json:"platform_fee_amount" gorm:"type:decimal(10,2);not null"`
	StripeFeeAmount   float64        `json:"stripe_fee_amount" gorm:"type:decimal(10,2);default:0"`
	TotalAmount       float64        `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	Currency          string         `json:"currency" gorm:"size:3;not null"`
	PaymentReference  string         `json:"payment_reference,omitempty" gorm:"size:255;index"`
	PaidAt            *time.Time     `json:"paid_at"`
	RefundedAt        *time.Time     `json:"refunded_at"`
	RefundReason      string         `json:"refund_reason,omitempty" gorm:"type:text"`

	// Relationships
	Buyer    User           `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Items    []PurchaseItem `json:"items,omitempty" gorm:"foreignKey:PurchaseID"`
	Licenses []License      `json:"licenses,omitempty" gorm:"foreignKey:PurchaseID"`
}

// PurchaseItem is the priced snapshot of one block in a purchase, fixed at
// creation. UnitPrice is deliberately not re-read from the catalog later.
type PurchaseItem struct {
	BaseModel
	PurchaseID  uuid.UUID   `json:"purchase_id" gorm:"type:uuid;not null;index"`
	BlockID     uuid.UUID   `json:"block_id" gorm:"type:uuid;not null;index"`
	UnitPrice   float64     `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	LicenseType LicenseType `json:"license_type" gorm:"type:varchar(20);not null"`
	Quantity    int         `json:"quantity" gorm:"default:1"`

	// Relationships
	Block Block `json:"block,omitempty" gorm:"foreignKey:BlockID"`
}
