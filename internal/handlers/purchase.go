// internal/handlers/purchase.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/internal/models"
	"github.com/blockmart/blockmart-backend/internal/services"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

type PurchaseHandler struct {
	purchaseService *services.PurchaseService
	licenseService  *services.LicenseService
}

func NewPurchaseHandler(purchaseService *services.PurchaseService, licenseService *services.LicenseService) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseService: purchaseService,
		licenseService:  licenseService,
	}
}

// POST /checkout
func (h *PurchaseHandler) CreateCheckout(c *gin.Context) {
	buyerID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.purchaseService.CreateCheckout(buyerID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoBlocksFound):
			utils.NotFoundResponse(c, "blocks")
		case errors.Is(err, services.ErrEmptyCart),
			errors.Is(err, services.ErrCurrencyMismatch),
			errors.Is(err, services.ErrInvalidLicenseType):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			utils.InternalErrorResponse(c, "failed to create checkout")
		}
		return
	}

	utils.CreatedResponse(c, gin.H{
		"purchase":     result.Purchase,
		"checkout_url": result.CheckoutURL,
	})
}

// GET /purchases/:id
func (h *PurchaseHandler) GetPurchase(c *gin.Context) {
	requesterID, ok := requireUserID(c)
	if !ok {
		return
	}

	purchaseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid purchase ID", nil)
		return
	}

	requesterType := models.UserTypeBuyer
	if typeStr, ok := utils.GetUserTypeFromContext(c); ok {
		requesterType = models.UserType(typeStr)
	}

	purchase, err := h.purchaseService.GetPurchase(purchaseID, requesterID, requesterType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPurchaseNotFound):
			utils.NotFoundResponse(c, "purchase")
		case errors.Is(err, services.ErrNotPurchaseOwner):
			utils.ForbiddenResponse(c, "you do not own this purchase")
		default:
			utils.InternalErrorResponse(c, "failed to get purchase")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"purchase": purchase})
}

// GET /me/purchases
func (h *PurchaseHandler) GetMyPurchases(c *gin.Context) {
	buyerID, ok := requireUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	purchases, total, err := h.purchaseService.GetBuyerPurchases(buyerID, params)
	if err != nil {
		utils.InternalErrorResponse(c, "failed to get purchases")
		return
	}

	result := utils.CreatePaginationResult(purchases, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /me/licenses
func (h *PurchaseHandler) GetMyLicenses(c *gin.Context) {
	buyerID, ok := requireUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	licenses, total, err := h.licenseService.GetBuyerLicenses(buyerID, params)
	if err != nil {
		utils.InternalErrorResponse(c, "failed to get licenses")
		return
	}

	result := utils.CreatePaginationResult(licenses, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /me/licenses/:id/download
func (h *PurchaseHandler) GetLicenseDownload(c *gin.Context) {
	buyerID, ok := requireUserID(c)
	if !ok {
		return
	}

	licenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid license ID", nil)
		return
	}

	url, err := h.licenseService.GetDownloadURL(licenseID, buyerID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLicenseNotFound):
			utils.NotFoundResponse(c, "license")
		case errors.Is(err, services.ErrLicenseNotDeliverable):
			utils.ConflictResponse(c, "license is not deliverable")
		default:
			utils.InternalErrorResponse(c, "failed to generate download URL")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"download_url": url})
}
