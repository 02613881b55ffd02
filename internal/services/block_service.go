// internal/services/block_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/models"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrNotBlockOwner = errors.New("block belongs to another creator")
)

type BlockService struct {
	db      *gorm.DB
	storage *StorageService
}

type CreateBlockRequest struct {
	Title          string   `json:"title" validate:"required,min=3,max=255"`
	Description    string   `json:"description" validate:"required,min=10"`
	Category       string   `json:"category" validate:"required"`
	Framework      string   `json:"framework,omitempty"`
	Price          float64  `json:"price" validate:"required,min=0.01"`
	Currency       string   `json:"currency,omitempty" validate:"omitempty,currency"`
	PlatformFeeBps int      `json:"platform_fee_bps,omitempty" validate:"omitempty,min=0,max=10000"`
	PreviewImages  []string `json:"preview_images,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

type UpdateBlockRequest struct {
	Title         string             `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Description   string             `json:"description,omitempty" validate:"omitempty,min=10"`
	Category      string             `json:"category,omitempty"`
	Price         float64            `json:"price,omitempty" validate:"omitempty,min=0.01"`
	PreviewImages []string           `json:"preview_images,omitempty"`
	Tags          []string           `json:"tags,omitempty"`
	Status        models.BlockStatus `json:"status,omitempty"`
}

func NewBlockService(db *gorm.DB, storage *StorageService) *BlockService {
	return &BlockService{
		db:      db,
		storage: storage,
	}
}

func (s *BlockService) CreateBlock(creatorID uuid.UUID, req *CreateBlockRequest) (*models.Block, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var creator models.User
	if err := s.db.First(&creator, creatorID).Error; err != nil {
		return nil, fmt.Errorf("creator not found: %w", err)
	}

	if creator.Status != models.UserStatusActive {
		return nil, errors.New("creator account is not active")
	}

	if creator.UserType != models.UserTypeCreator && creator.UserType != models.UserTypeAdmin {
		return nil, errors.New("only creators can publish blocks")
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	feeBps := req.PlatformFeeBps
	if feeBps == 0 {
		feeBps = 1500
	}

	block := &models.Block{
		CreatorID:      creatorID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Framework:      req.Framework,
		Price:          req.Price,
		Currency:       currency,
		PlatformFeeBps: feeBps,
		PreviewImages:  req.PreviewImages,
		Tags:           req.Tags,
		Status:         models.BlockStatusDraft,
	}

	if err := s.db.Create(block).Error; err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}

	s.db.Preload("Creator").First(block, block.ID)
	return block, nil
}

func (s *BlockService) GetBlock(id uuid.UUID, viewerID *uuid.UUID) (*models.Block, error) {
	var block models.Block
	if err := s.db.Preload("Creator").First(&block, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if block.Status != models.BlockStatusPublished {
		if viewerID == nil || *viewerID != block.CreatorID {
			return nil, ErrBlockNotFound
		}
	}

	if viewerID == nil || *viewerID != block.CreatorID {
		go s.incrementViewCount(id)
	}

	return &block, nil
}

func (s *BlockService) UpdateBlock(id, creatorID uuid.UUID, req *UpdateBlockRequest) (*models.Block, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var block models.Block
	if err := s.db.First(&block, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if block.CreatorID != creatorID {
		return nil, ErrNotBlockOwner
	}

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if req.Price > 0 {
		updates["price"] = req.Price
	}
	if req.PreviewImages != nil {
		updates["preview_images"] = req.PreviewImages
	}
	if req.Tags != nil {
		updates["tags"] = req.Tags
	}
	if req.Status != "" {
		if req.Status == models.BlockStatusPublished && block.BundleKey == "" {
			return nil, errors.New("block cannot be published without an uploaded bundle")
		}
		updates["status"] = req.Status
	}

	if err := s.db.Model(&block).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update block: %w", err)
	}

	s.db.Preload("Creator").First(&block, id)
	return &block, nil
}

func (s *BlockService) SearchBlocks(params utils.PaginationParams) ([]models.Block, int64, error) {
	query := s.db.Model(&models.Block{}).
		Where("status = ?", models.BlockStatusPublished).
		Preload("Creator")

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}

	if params.Framework != "" {
		query = query.Where("framework = ?", params.Framework)
	}

	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count blocks: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "title", "price", "sold_count"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var blocks []models.Block
	if err := query.Find(&blocks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch blocks: %w", err)
	}

	return blocks, total, nil
}

func (s *BlockService) GetCreatorBlocks(creatorID uuid.UUID, params utils.PaginationParams) ([]models.Block, int64, error) {
	query := s.db.Model(&models.Block{}).Where("creator_id = ?", creatorID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count creator blocks: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "title", "status", "sold_count"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var blocks []models.Block
	if err := query.Find(&blocks).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch creator blocks: %w", err)
	}

	return blocks, total, nil
}

// AttachBundle records the storage key of the creator's uploaded bundle.
func (s *BlockService) AttachBundle(id, creatorID uuid.UUID, bundleKey string) error {
	var block models.Block
	if err := s.db.First(&block, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBlockNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if block.CreatorID != creatorID {
		return ErrNotBlockOwner
	}

	if err := s.db.Model(&block).Update("bundle_key", bundleKey).Error; err != nil {
		return fmt.Errorf("failed to attach bundle: %w", err)
	}

	return nil
}

func (s *BlockService) incrementViewCount(blockID uuid.UUID) {
	s.db.Model(&models.Block{}).Where("id = ?", blockID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1"))
}
