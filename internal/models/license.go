// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// License is the buyer's granted right to use one block, minted exactly once
// per (purchase, block) pair when the purchase reaches paid. TransactionHash
// is a random proof token, never reused.
type License struct {
	BaseModel
	PurchaseID      uuid.UUID      `json:"purchase_id" gorm:"type:uuid;not null;index:idx_licenses_purchase_block,unique,composite:purchase_block"`
	BlockID         uuid.UUID      `json:"block_id" gorm:"type:uuid;not null;index:idx_licenses_purchase_block,unique,composite:purchase_block"`
	BuyerID         uuid.UUID      `json:"buyer_id" gorm:"type:uuid;not null;index"`
	Type            LicenseType    `json:"type" gorm:"type:varchar(20);not null"`
	Status          LicenseStatus  `json:"status" gorm:"type:varchar(20);default:'active';index"`
	DeliveryStatus  DeliveryStatus `json:"delivery_status" gorm:"type:varchar(20);default:'not_ready'"`
	DeliveryReadyAt *time.Time     `json:"delivery_ready_at"`
	TransactionHash string         `json:"transaction_hash" gorm:"size:64;uniqueIndex;not null"`
	RevokedAt       *time.Time     `json:"revoked_at"`

	// Relationships
	Purchase Purchase `json:"purchase,omitempty" gorm:"foreignKey:PurchaseID"`
	Block    Block    `json:"block,omitempty" gorm:"foreignKey:BlockID"`
	Buyer    User     `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
}
