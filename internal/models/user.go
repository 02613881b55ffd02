// internal/models/user.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username            string              `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email               string              `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash        string              `json:"-" gorm:"size:255;not null"`
	UserType            UserType            `json:"user_type" gorm:"type:varchar(20);not null"`
	Status              UserStatus          `json:"status" gorm:"type:varchar(20);default:'active'"`
	StripeAccountID     string              `json:"-" gorm:"size:255"`
	StripeAccountStatus StripeAccountStatus `json:"stripe_account_status" gorm:"type:varchar(20);default:'pending'"`
	ProfileData         JSONB               `json:"profile_data" gorm:"type:jsonb"`
	EmailVerifiedAt     *time.Time          `json:"email_verified_at"`
	LastLoginAt         *time.Time          `json:"last_login_at"`

	// Relationships
	Blocks    []Block    `json:"blocks,omitempty" gorm:"foreignKey:CreatorID"`
	Purchases []Purchase `json:"purchases,omitempty" gorm:"foreignKey:BuyerID"`
	Licenses  []License  `json:"licenses,omitempty" gorm:"foreignKey:BuyerID"`
	Payouts   []Payout   `json:"payouts,omitempty" gorm:"foreignKey:CreatorID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

// PayoutEligible reports whether transfers may be sent to this creator.
func (u *User) PayoutEligible() bool {
	return u.StripeAccountStatus == StripeAccountEnabled && u.StripeAccountID != ""
}
