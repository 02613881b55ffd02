// internal/models/payout.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Payout records one fund transfer from the platform to a creator for a
// settled purchase. TransferReference is the gateway's opaque transfer id;
// the purchase id doubles as the gateway-side grouping key for idempotency.
type Payout struct {
	BaseModel
	CreatorID         uuid.UUID  `json:"creator_id" gorm:"type:uuid;not null;index"`
	PurchaseID        uuid.UUID  `json:"purchase_id" gorm:"type:uuid;not null;index"`
	Amount            float64    `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency          string     `json:"currency" gorm:"size:3;not null"`
	TransferReference string     `json:"transfer_reference" gorm:"size:255;uniqueIndex"`
	PeriodStart       time.Time  `json:"period_start"`
	PeriodEnd         time.Time  `json:"period_end"`
	PaidAt            *time.Time `json:"paid_at"`

	// Relationships
	Creator  User     `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Purchase Purchase `json:"purchase,omitempty" gorm:"foreignKey:PurchaseID"`
}
