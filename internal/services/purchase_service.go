// internal/services/purchase_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blockmart/blockmart-backend/internal/config"
	"github.com/blockmart/blockmart-backend/internal/models"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

var (
	ErrNoBlocksFound          = errors.New("no purchasable blocks found for the given ids")
	ErrPurchaseNotFound       = errors.New("purchase not found")
	ErrNotPurchaseOwner       = errors.New("purchase belongs to another buyer")
	ErrInvalidStateTransition = errors.New("invalid purchase state transition")
	ErrInvalidLicenseType     = errors.New("invalid license type")
)

type PurchaseService struct {
	db             *gorm.DB
	config         *config.Config
	gateway        PaymentGateway
	licenseService *LicenseService
}

type CheckoutRequest struct {
	BlockIDs    []uuid.UUID        `json:"block_ids" validate:"required,min=1"`
	LicenseType models.LicenseType `json:"license_type" validate:"required"`
}

type CheckoutResult struct {
	Purchase    *models.Purchase `json:"purchase"`
	CheckoutURL string           `json:"checkout_url"`
}

func NewPurchaseService(db *gorm.DB, config *config.Config, gateway PaymentGateway, licenseService *LicenseService) *PurchaseService {
	return &PurchaseService{
		db:             db,
		config:         config,
		gateway:        gateway,
		licenseService: licenseService,
	}
}

// CreateCheckout prices the cart at current catalog prices, persists a
// pending purchase with snapshot line items, and opens a hosted checkout
// session for it. The snapshot prices are what fulfillment and refunds use;
// later catalog edits do not reach existing purchases.
func (s *PurchaseService) CreateCheckout(buyerID uuid.UUID, req *CheckoutRequest) (*CheckoutResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if !req.LicenseType.Valid() {
		return nil, ErrInvalidLicenseType
	}

	var blocks []models.Block
	if err := s.db.Where("id IN ? AND status = ?", req.BlockIDs, models.BlockStatusPublished).
		Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if len(blocks) == 0 {
		return nil, ErrNoBlocksFound
	}

	quotes := make([]BlockQuote, 0, len(blocks))
	for _, b := range blocks {
		quotes = append(quotes, BlockQuote{BlockID: b.ID, Price: b.Price, Currency: b.Currency})
	}

	pricing, err := PriceCheckout(quotes, s.config.Payment.CheckoutFeeBps)
	if err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		BuyerID:           buyerID,
		Status:            models.PurchaseStatusPending,
		SubtotalAmount:    pricing.Subtotal,
		PlatformFeeAmount: pricing.PlatformFee,
		TotalAmount:       pricing.Total,
		Currency:          pricing.Currency,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return fmt.Errorf("failed to create purchase: %w", err)
		}

		for _, b := range blocks {
			item := models.PurchaseItem{
				PurchaseID:  purchase.ID,
				BlockID:     b.ID,
				UnitPrice:   b.Price,
				LicenseType: req.LicenseType,
				Quantity:    1,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create purchase item: %w", err)
			}
			purchase.Items = append(purchase.Items, item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	session, err := s.createCheckoutSession(purchase, blocks)
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{Purchase: purchase, CheckoutURL: session.URL}, nil
}

func (s *PurchaseService) createCheckoutSession(purchase *models.Purchase, blocks []models.Block) (*CheckoutSession, error) {
	req := CheckoutSessionRequest{
		PurchaseID: purchase.ID.String(),
		BuyerID:    purchase.BuyerID.String(),
		SuccessURL: s.config.Frontend.BaseURL + "/checkout/success?purchase=" + purchase.ID.String(),
		CancelURL:  s.config.Frontend.BaseURL + "/checkout/cancelled",
	}

	for _, b := range blocks {
		cents, err := utils.ToMinorUnits(b.Price)
		if err != nil {
			return nil, err
		}
		req.Lines = append(req.Lines, CheckoutLine{
			Name:        b.Title,
			AmountMinor: cents,
			Currency:    purchase.Currency,
			Quantity:    1,
		})
	}

	feeCents, err := utils.ToMinorUnits(purchase.PlatformFeeAmount)
	if err != nil {
		return nil, err
	}
	if feeCents > 0 {
		req.Lines = append(req.Lines, CheckoutLine{
			Name:        "Platform fee",
			AmountMinor: feeCents,
			Currency:    purchase.Currency,
			Quantity:    1,
		})
	}

	return s.gateway.CreateCheckoutSession(req)
}

// FulfillPurchase is the single entry point for a confirmed payment event.
// It is safe to call any number of times, sequentially or concurrently, for
// the same purchase: the FOR UPDATE lock plus the status-guarded update make
// exactly one caller perform the pending -> paid transition and mint
// licenses; every other caller observes the already-paid record and returns
// it untouched.
func (s *PurchaseService) FulfillPurchase(purchaseID uuid.UUID, paymentRef string) (*models.Purchase, error) {
	var result *models.Purchase

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var purchase models.Purchase
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&purchase, purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if purchase.Status == models.PurchaseStatusPaid {
			// Redelivered confirmation. Licenses already exist; return the
			// record as-is without re-minting.
			if err := tx.Where("purchase_id = ?", purchase.ID).
				Find(&purchase.Licenses).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			result = &purchase
			return nil
		}

		if !purchase.Status.CanTransition(models.PurchaseStatusPaid) {
			return ErrInvalidStateTransition
		}

		now := time.Now()
		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND status = ?", purchase.ID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{
				"status":            models.PurchaseStatusPaid,
				"paid_at":           now,
				"payment_reference": paymentRef,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update purchase: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race after the read: the winner committed the
			// transition and minted the licenses, so this delivery resolves
			// the same way as a redelivered confirmation.
			if err := tx.Preload("Items").First(&purchase, purchase.ID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if purchase.Status != models.PurchaseStatusPaid {
				return ErrInvalidStateTransition
			}
			if err := tx.Where("purchase_id = ?", purchase.ID).
				Find(&purchase.Licenses).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			result = &purchase
			return nil
		}

		licenses, err := s.licenseService.mintForPurchase(tx, &purchase, now)
		if err != nil {
			return err
		}

		purchase.Status = models.PurchaseStatusPaid
		purchase.PaidAt = &now
		purchase.PaymentReference = paymentRef
		purchase.Licenses = licenses
		result = &purchase
		return nil
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// FailPurchase marks an abandoned or declined payment. Redelivery of the
// failure event is treated as success.
func (s *PurchaseService) FailPurchase(purchaseID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var purchase models.Purchase
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&purchase, purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		if purchase.Status == models.PurchaseStatusFailed {
			return nil
		}

		if !purchase.Status.CanTransition(models.PurchaseStatusFailed) {
			return ErrInvalidStateTransition
		}

		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND status = ?", purchase.ID, models.PurchaseStatusPending).
			Update("status", models.PurchaseStatusFailed)
		if res.Error != nil {
			return fmt.Errorf("failed to update purchase: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Raced with another transition; idempotent only if the row is
			// already failed.
			if err := tx.First(&purchase, purchase.ID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if purchase.Status != models.PurchaseStatusFailed {
				return ErrInvalidStateTransition
			}
		}

		return nil
	})
}

// RefundPurchase reverses a paid purchase: refunds the buyer through the
// gateway, transitions paid -> refunded, and revokes the minted licenses.
func (s *PurchaseService) RefundPurchase(purchaseID uuid.UUID, reason string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := s.db.First(&purchase, purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !purchase.Status.CanTransition(models.PurchaseStatusRefunded) {
		return nil, ErrInvalidStateTransition
	}

	if purchase.PaymentReference != "" {
		totalMinor, err := utils.ToMinorUnits(purchase.TotalAmount)
		if err != nil {
			return nil, err
		}
		if _, err := s.gateway.RefundPayment(purchase.PaymentReference, totalMinor); err != nil {
			return nil, err
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND status = ?", purchase.ID, models.PurchaseStatusPaid).
			Updates(map[string]interface{}{
				"status":        models.PurchaseStatusRefunded,
				"refunded_at":   now,
				"refund_reason": reason,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update purchase: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidStateTransition
		}

		return s.licenseService.revokeForPurchase(tx, purchase.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.db.Preload("Items").Preload("Licenses").First(&purchase, purchase.ID)
	return &purchase, nil
}

// RecordProcessingFee backfills the gateway's processing fee once the payment
// has settled. Informational; the amount charged to the buyer is unchanged.
func (s *PurchaseService) RecordProcessingFee(purchaseID uuid.UUID) error {
	var purchase models.Purchase
	if err := s.db.First(&purchase, purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPurchaseNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if purchase.PaymentReference == "" {
		return nil
	}

	feeMinor, err := s.gateway.GetProcessingFee(purchase.PaymentReference)
	if err != nil {
		return err
	}

	if err := s.db.Model(&purchase).
		Update("stripe_fee_amount", utils.FromMinorUnits(feeMinor)).Error; err != nil {
		return fmt.Errorf("failed to record processing fee: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"purchase_id": purchaseID,
		"stripe_fee":  utils.FromMinorUnits(feeMinor),
	}).Info("Recorded gateway processing fee")

	return nil
}

// GetPurchase returns a purchase with items and licenses; only the buyer or
// an admin may read it.
func (s *PurchaseService) GetPurchase(purchaseID, requesterID uuid.UUID, requesterType models.UserType) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := s.db.Preload("Items").Preload("Items.Block").Preload("Licenses").
		First(&purchase, purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if purchase.BuyerID != requesterID && requesterType != models.UserTypeAdmin {
		return nil, ErrNotPurchaseOwner
	}

	return &purchase, nil
}

func (s *PurchaseService) GetBuyerPurchases(buyerID uuid.UUID, params utils.PaginationParams) ([]models.Purchase, int64, error) {
	query := s.db.Model(&models.Purchase{}).
		Where("buyer_id = ?", buyerID).
		Preload("Items").Preload("Items.Block")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count purchases: %w", err)
	}

	allowedSortFields := []string{"created_at", "total_amount", "status", "paid_at"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var purchases []models.Purchase
	if err := query.Find(&purchases).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch purchases: %w", err)
	}

	return purchases, total, nil
}
