// internal/services/payout_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/models"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

var (
	ErrPurchaseNotPaid         = errors.New("purchase is not paid")
	ErrMissingPaymentReference = errors.New("purchase has no payment reference")
	ErrCreatorPayoutIneligible = errors.New("creator is not eligible for payouts")
	ErrInvalidPlatformFee      = errors.New("computed platform fee is negative")
)

type PayoutService struct {
	db      *gorm.DB
	gateway TransferGateway
}

func NewPayoutService(db *gorm.DB, gateway TransferGateway) *PayoutService {
	return &PayoutService{
		db:      db,
		gateway: gateway,
	}
}

// creatorPayout is one creator's aggregated net amount for a purchase.
type creatorPayout struct {
	CreatorID   uuid.UUID
	Destination string
	AmountMinor int64
	Currency    string
}

// PayoutCreatorsForPurchase settles a paid purchase with its creators. The
// whole operation is retryable end-to-end: the plan is re-derived from the
// purchase each run, and any creator already reconciled against the gateway
// is skipped, so a crash mid-loop never double-pays on the next attempt.
func (s *PayoutService) PayoutCreatorsForPurchase(purchaseID uuid.UUID) ([]models.Payout, error) {
	var purchase models.Purchase
	if err := s.db.Preload("Items").Preload("Items.Block").Preload("Items.Block.Creator").
		First(&purchase, purchaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	payouts, err := s.settle(&purchase)

	// Persist whatever settled before any failure; the transfer already
	// happened at the gateway and must be on our books.
	for i := range payouts {
		if dbErr := s.db.Create(&payouts[i]).Error; dbErr != nil {
			logrus.WithError(dbErr).WithFields(logrus.Fields{
				"purchase_id": purchase.ID,
				"creator_id":  payouts[i].CreatorID,
				"transfer":    payouts[i].TransferReference,
			}).Error("Transfer issued but payout record not persisted; manual reconciliation required")
		}
	}

	if err != nil {
		return payouts, err
	}

	return payouts, nil
}

// settle runs the gateway side of a payout: reconcile the plan against
// transfers already tagged with the purchase's group key, then issue the
// remainder. It touches no persistent state of its own.
func (s *PayoutService) settle(purchase *models.Purchase) ([]models.Payout, error) {
	plan, err := buildPayoutPlan(purchase)
	if err != nil {
		return nil, err
	}

	existing, err := s.gateway.ListTransfersByGroupKey(purchase.ID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile existing transfers: %w", err)
	}

	due := reconcilePayouts(plan, existing)
	for _, cp := range plan {
		if _, stillDue := due[cp.CreatorID]; !stillDue {
			logrus.WithFields(logrus.Fields{
				"purchase_id": purchase.ID,
				"creator_id":  cp.CreatorID,
			}).Info("Skipping creator payout; matching transfer already recorded")
		}
	}

	var payouts []models.Payout
	now := time.Now()

	for _, cp := range plan {
		if _, stillDue := due[cp.CreatorID]; !stillDue {
			continue
		}

		record, err := s.gateway.CreateTransfer(TransferRequest{
			AmountMinor: cp.AmountMinor,
			Currency:    cp.Currency,
			Destination: cp.Destination,
			GroupKey:    purchase.ID.String(),
			Metadata: map[string]string{
				"purchase_id": purchase.ID.String(),
				"creator_id":  cp.CreatorID.String(),
				"buyer_id":    purchase.BuyerID.String(),
			},
		})
		if err != nil {
			// Already-issued transfers stay settled; the retry will skip
			// them during reconciliation and resume here.
			return payouts, fmt.Errorf("failed to transfer to creator %s: %w", cp.CreatorID, err)
		}

		payouts = append(payouts, models.Payout{
			CreatorID:         cp.CreatorID,
			PurchaseID:        purchase.ID,
			Amount:            utils.FromMinorUnits(cp.AmountMinor),
			Currency:          cp.Currency,
			TransferReference: record.ID,
			PeriodStart:       *purchase.PaidAt,
			PeriodEnd:         *purchase.PaidAt,
			PaidAt:            &now,
		})
	}

	return payouts, nil
}

// buildPayoutPlan validates the purchase and aggregates net amounts per
// creator, in first-seen order. Eligibility is all-or-nothing: one
// ineligible creator aborts the whole batch, so a purchase never ends up
// partially settled across creators. Creators are paid the full list price
// per line item; the per-block fee bps is validated but not deducted, which
// keeps the ledger compatible with previously recorded payouts.
func buildPayoutPlan(purchase *models.Purchase) ([]creatorPayout, error) {
	if purchase.Status != models.PurchaseStatusPaid {
		return nil, ErrPurchaseNotPaid
	}
	if purchase.PaymentReference == "" {
		return nil, ErrMissingPaymentReference
	}
	if purchase.PaidAt == nil {
		return nil, ErrMissingPaymentReference
	}

	for _, item := range purchase.Items {
		if !item.Block.Creator.PayoutEligible() {
			return nil, fmt.Errorf("%w: creator %s", ErrCreatorPayoutIneligible, item.Block.CreatorID)
		}
	}

	var order []uuid.UUID
	amounts := make(map[uuid.UUID]*creatorPayout)

	for _, item := range purchase.Items {
		creator := item.Block.Creator

		priceMinor, err := utils.ToMinorUnits(item.Block.Price)
		if err != nil {
			return nil, err
		}

		// Validation only; not subtracted from the creator's cut.
		if utils.CalcFeeMinorUnits(priceMinor, int64(item.Block.PlatformFeeBps)) < 0 {
			return nil, fmt.Errorf("%w: block %s", ErrInvalidPlatformFee, item.BlockID)
		}

		cp, ok := amounts[creator.ID]
		if !ok {
			cp = &creatorPayout{
				CreatorID:   creator.ID,
				Destination: creator.StripeAccountID,
				Currency:    purchase.Currency,
			}
			amounts[creator.ID] = cp
			order = append(order, creator.ID)
		}
		cp.AmountMinor += priceMinor
	}

	plan := make([]creatorPayout, 0, len(order))
	for _, id := range order {
		plan = append(plan, *amounts[id])
	}

	return plan, nil
}

// reconcilePayouts drops every planned payout that already has a transfer
// with the same destination, amount, and currency inside this purchase's
// group-key scope. The group key is the primary idempotency boundary; the
// amount match is the secondary safety check within it.
func reconcilePayouts(plan []creatorPayout, existing []TransferRecord) map[uuid.UUID]creatorPayout {
	due := make(map[uuid.UUID]creatorPayout, len(plan))

	for _, cp := range plan {
		settled := false
		for _, t := range existing {
			if t.Destination == cp.Destination && t.AmountMinor == cp.AmountMinor && t.Currency == cp.Currency {
				settled = true
				break
			}
		}
		if !settled {
			due[cp.CreatorID] = cp
		}
	}

	return due
}
