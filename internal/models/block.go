// internal/models/block.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Block is one published UI component listing. Price and PlatformFeeBps are
// read at checkout time and snapshotted onto the purchase; later price edits
// never affect existing purchases.
type Block struct {
	BaseModel
	CreatorID      uuid.UUID      `json:"creator_id" gorm:"type:uuid;not null;index"`
	Title          string         `json:"title" gorm:"size:255;not null"`
	Description    string         `json:"description" gorm:"type:text"`
	Category       string         `json:"category" gorm:"size:100;index"`
	Framework      string         `json:"framework" gorm:"size:50;index"`
	Price          float64        `json:"price" gorm:"type:decimal(10,2);not null"`
	Currency       string         `json:"currency" gorm:"size:3;not null;default:'usd'"`
	PlatformFeeBps int            `json:"platform_fee_bps" gorm:"default:1500"`
	Status         BlockStatus    `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	BundleKey      string         `json:"-" gorm:"size:512"`
	PreviewImages  pq.StringArray `json:"preview_images" gorm:"type:text[]"`
	Tags           pq.StringArray `json:"tags" gorm:"type:text[]"`
	ViewCount      int64          `json:"view_count" gorm:"default:0"`
	SoldCount      int64          `json:"sold_count" gorm:"default:0"`

	// Relationships
	Creator  User      `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Licenses []License `json:"licenses,omitempty" gorm:"foreignKey:BlockID"`
}
