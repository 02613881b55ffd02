// internal/handlers/admin.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/models"
	"github.com/blockmart/blockmart-backend/internal/services"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

type AdminHandler struct {
	db              *gorm.DB
	purchaseService *services.PurchaseService
	payoutService   *services.PayoutService
}

func NewAdminHandler(db *gorm.DB, purchaseService *services.PurchaseService, payoutService *services.PayoutService) *AdminHandler {
	return &AdminHandler{
		db:              db,
		purchaseService: purchaseService,
		payoutService:   payoutService,
	}
}

// POST /admin/purchases/:id/refund
func (h *AdminHandler) ProcessRefund(c *gin.Context) {
	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid purchase ID", nil)
		return
	}

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	purchase, err := h.purchaseService.RefundPurchase(purchaseID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPurchaseNotFound):
			utils.NotFoundResponse(c, "purchase")
		case errors.Is(err, services.ErrInvalidStateTransition):
			utils.ConflictResponse(c, "only paid purchases can be refunded")
		default:
			utils.InternalErrorResponse(c, "failed to process refund")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"purchase": purchase})
}

// POST /admin/purchases/:id/payout
//
// Operator retry for a purchase whose creator payouts did not all settle.
// The payout service reconciles against the gateway first, so retrying a
// fully settled purchase issues nothing.
func (h *AdminHandler) RetryPayout(c *gin.Context) {
	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid purchase ID", nil)
		return
	}

	payouts, err := h.payoutService.PayoutCreatorsForPurchase(purchaseID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPurchaseNotFound):
			utils.NotFoundResponse(c, "purchase")
		case errors.Is(err, services.ErrPurchaseNotPaid):
			utils.ConflictResponse(c, "purchase is not paid")
		case errors.Is(err, services.ErrMissingPaymentReference):
			utils.ConflictResponse(c, "purchase has no payment reference")
		case errors.Is(err, services.ErrCreatorPayoutIneligible):
			utils.ConflictResponse(c, err.Error())
		default:
			// Partial settlement: report what did settle alongside the error.
			utils.ErrorResponse(c, 502, "PAYOUT_INCOMPLETE", err.Error(), gin.H{"settled": payouts})
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"payouts": payouts})
}

// GET /admin/payouts
func (h *AdminHandler) GetPayouts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	query := h.db.Model(&models.Payout{}).Preload("Creator")

	if creatorIDStr := c.Query("creator_id"); creatorIDStr != "" {
		if creatorID, err := uuid.Parse(creatorIDStr); err == nil {
			query = query.Where("creator_id = ?", creatorID)
		}
	}

	if purchaseIDStr := c.Query("purchase_id"); purchaseIDStr != "" {
		if purchaseID, err := uuid.Parse(purchaseIDStr); err == nil {
			query = query.Where("purchase_id = ?", purchaseID)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalErrorResponse(c, "failed to count payouts")
		return
	}

	var payouts []models.Payout
	query = utils.ApplyPagination(query, params)
	query = utils.ApplySort(query, params, []string{"created_at", "amount", "paid_at"})
	if err := query.Find(&payouts).Error; err != nil {
		utils.InternalErrorResponse(c, "failed to list payouts")
		return
	}

	result := utils.CreatePaginationResult(payouts, total, params)
	utils.PaginatedResponse(c, result)
}

// PUT /admin/blocks/:id/status
func (h *AdminHandler) UpdateBlockStatus(c *gin.Context) {
	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid block ID", nil)
		return
	}

	var req struct {
		Status models.BlockStatus `json:"status" validate:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	if req.Status != models.BlockStatusPublished && req.Status != models.BlockStatusSuspended {
		utils.BadRequestResponse(c, "status must be published or suspended", nil)
		return
	}

	result := h.db.Model(&models.Block{}).Where("id = ?", blockID).Update("status", req.Status)
	if result.Error != nil {
		utils.InternalErrorResponse(c, "failed to update block status")
		return
	}
	if result.RowsAffected == 0 {
		utils.NotFoundResponse(c, "block")
		return
	}

	utils.SuccessResponse(c, gin.H{"status": req.Status})
}
