// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeBuyer   UserType = "buyer"
	UserTypeCreator UserType = "creator"
	UserTypeAdmin   UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

// StripeAccountStatus tracks a creator's connected account onboarding.
// Transfers require StripeAccountEnabled.
type StripeAccountStatus string

const (
	StripeAccountPending  StripeAccountStatus = "pending"
	StripeAccountEnabled  StripeAccountStatus = "enabled"
	StripeAccountDisabled StripeAccountStatus = "disabled"
)

type BlockStatus string

const (
	BlockStatusDraft     BlockStatus = "draft"
	BlockStatusPublished BlockStatus = "published"
	BlockStatusSuspended BlockStatus = "suspended"
)

type LicenseType string

const (
	LicenseTypePersonal   LicenseType = "personal"
	LicenseTypeCommercial LicenseType = "commercial"
	LicenseTypeExtended   LicenseType = "extended"
)

func (t LicenseType) Valid() bool {
	switch t {
	case LicenseTypePersonal, LicenseTypeCommercial, LicenseTypeExtended:
		return true
	}
	return false
}

type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusPaid     PurchaseStatus = "paid"
	PurchaseStatusRefunded PurchaseStatus = "refunded"
	PurchaseStatusFailed   PurchaseStatus = "failed"
)

// CanTransition is the single place that knows the purchase lifecycle:
// pending -> paid | failed, paid -> refunded. Everything else is invalid,
// including self-transitions; a paid -> paid attempt is the redelivery case
// and callers short-circuit it instead of transitioning.
func (s PurchaseStatus) CanTransition(to PurchaseStatus) bool {
	switch s {
	case PurchaseStatusPending:
		return to == PurchaseStatusPaid || to == PurchaseStatusFailed
	case PurchaseStatusPaid:
		return to == PurchaseStatusRefunded
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusRefunded || s == PurchaseStatusFailed
}

type LicenseStatus string

const (
	LicenseStatusActive  LicenseStatus = "active"
	LicenseStatusRevoked LicenseStatus = "revoked"
)

func (s LicenseStatus) CanTransition(to LicenseStatus) bool {
	return s == LicenseStatusActive && to == LicenseStatusRevoked
}

type DeliveryStatus string

const (
	DeliveryStatusNotReady DeliveryStatus = "not_ready"
	DeliveryStatusReady    DeliveryStatus = "ready"
	DeliveryStatusRevoked  DeliveryStatus = "revoked"
)
