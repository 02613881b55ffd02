// internal/services/license_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/models"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

var (
	ErrLicenseNotFound       = errors.New("license not found")
	ErrLicenseNotDeliverable = errors.New("license is not active and ready for delivery")
)

type LicenseService struct {
	db      *gorm.DB
	storage *StorageService
}

func NewLicenseService(db *gorm.DB, storage *StorageService) *LicenseService {
	return &LicenseService{
		db:      db,
		storage: storage,
	}
}

// mintForPurchase creates exactly one license per line item and bumps each
// block's sold count. It runs inside the fulfillment transaction; the caller
// has already won the pending -> paid transition, which is what makes a
// second mint for the same purchase impossible.
func (s *LicenseService) mintForPurchase(tx *gorm.DB, purchase *models.Purchase, now time.Time) ([]models.License, error) {
	licenses := make([]models.License, 0, len(purchase.Items))

	for _, item := range purchase.Items {
		hash, err := utils.GenerateTransactionHash()
		if err != nil {
			return nil, fmt.Errorf("failed to generate transaction hash: %w", err)
		}

		license := models.License{
			PurchaseID:      purchase.ID,
			BlockID:         item.BlockID,
			BuyerID:         purchase.BuyerID,
			Type:            item.LicenseType,
			Status:          models.LicenseStatusActive,
			DeliveryStatus:  models.DeliveryStatusReady,
			DeliveryReadyAt: &now,
			TransactionHash: hash,
		}

		if err := tx.Create(&license).Error; err != nil {
			return nil, fmt.Errorf("failed to create license: %w", err)
		}

		// Atomic increment; concurrent fulfillments of other purchases may
		// touch the same block row.
		if err := tx.Model(&models.Block{}).Where("id = ?", item.BlockID).
			UpdateColumn("sold_count", gorm.Expr("sold_count + ?", item.Quantity)).Error; err != nil {
			return nil, fmt.Errorf("failed to update sold count: %w", err)
		}

		licenses = append(licenses, license)
	}

	return licenses, nil
}

// revokeForPurchase flips every license of a refunded purchase to revoked.
func (s *LicenseService) revokeForPurchase(tx *gorm.DB, purchaseID uuid.UUID, now time.Time) error {
	res := tx.Model(&models.License{}).
		Where("purchase_id = ? AND status = ?", purchaseID, models.LicenseStatusActive).
		Updates(map[string]interface{}{
			"status":          models.LicenseStatusRevoked,
			"delivery_status": models.DeliveryStatusRevoked,
			"revoked_at":      now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to revoke licenses: %w", res.Error)
	}

	return nil
}

func (s *LicenseService) GetBuyerLicenses(buyerID uuid.UUID, params utils.PaginationParams) ([]models.License, int64, error) {
	query := s.db.Model(&models.License{}).
		Where("buyer_id = ?", buyerID).
		Preload("Block").Preload("Purchase")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "status", "type"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

// GetDownloadURL returns a short-lived presigned URL for the block bundle
// behind an active, delivery-ready license owned by the requester.
func (s *LicenseService) GetDownloadURL(licenseID, buyerID uuid.UUID) (string, error) {
	var license models.License
	if err := s.db.Preload("Block").First(&license, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrLicenseNotFound
		}
		return "", fmt.Errorf("database error: %w", err)
	}

	if license.BuyerID != buyerID {
		return "", ErrLicenseNotFound
	}

	if license.Status != models.LicenseStatusActive || license.DeliveryStatus != models.DeliveryStatusReady {
		return "", ErrLicenseNotDeliverable
	}

	if license.Block.BundleKey == "" {
		return "", ErrLicenseNotDeliverable
	}

	return s.storage.GeneratePresignedURL(license.Block.BundleKey, 15*time.Minute)
}
