// internal/handlers/block.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/blockmart/blockmart-backend/internal/services"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

type BlockHandler struct {
	blockService   *services.BlockService
	storageService *services.StorageService
}

func NewBlockHandler(blockService *services.BlockService, storageService *services.StorageService) *BlockHandler {
	return &BlockHandler{
		blockService:   blockService,
		storageService: storageService,
	}
}

// GET /blocks
func (h *BlockHandler) SearchBlocks(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	blocks, total, err := h.blockService.SearchBlocks(params)
	if err != nil {
		utils.InternalErrorResponse(c, "failed to search blocks")
		return
	}

	result := utils.CreatePaginationResult(blocks, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /blocks/:id
func (h *BlockHandler) GetBlock(c *gin.Context) {
	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid block ID", nil)
		return
	}

	var viewerID *uuid.UUID
	if userIDStr, ok := utils.GetUserIDFromContext(c); ok {
		if id, err := uuid.Parse(userIDStr); err == nil {
			viewerID = &id
		}
	}

	block, err := h.blockService.GetBlock(blockID, viewerID)
	if err != nil {
		if errors.Is(err, services.ErrBlockNotFound) {
			utils.NotFoundResponse(c, "block")
			return
		}
		utils.InternalErrorResponse(c, "failed to get block")
		return
	}

	utils.SuccessResponse(c, gin.H{"block": block})
}

// POST /blocks
func (h *BlockHandler) CreateBlock(c *gin.Context) {
	creatorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	block, err := h.blockService.CreateBlock(creatorID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"block": block})
}

// PUT /blocks/:id
func (h *BlockHandler) UpdateBlock(c *gin.Context) {
	creatorID, ok := requireUserID(c)
	if !ok {
		return
	}

	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid block ID", nil)
		return
	}

	var req services.UpdateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "invalid request body", err.Error())
		return
	}

	block, err := h.blockService.UpdateBlock(blockID, creatorID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBlockNotFound):
			utils.NotFoundResponse(c, "block")
		case errors.Is(err, services.ErrNotBlockOwner):
			utils.ForbiddenResponse(c, "you do not own this block")
		default:
			utils.BadRequestResponse(c, err.Error(), nil)
		}
		return
	}

	utils.SuccessResponse(c, gin.H{"block": block})
}

// GET /me/blocks
func (h *BlockHandler) GetMyBlocks(c *gin.Context) {
	creatorID, ok := requireUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	blocks, total, err := h.blockService.GetCreatorBlocks(creatorID, params)
	if err != nil {
		utils.InternalErrorResponse(c, "failed to get blocks")
		return
	}

	result := utils.CreatePaginationResult(blocks, total, params)
	utils.PaginatedResponse(c, result)
}

// POST /blocks/:id/bundle
func (h *BlockHandler) UploadBundle(c *gin.Context) {
	creatorID, ok := requireUserID(c)
	if !ok {
		return
	}

	blockID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "invalid block ID", nil)
		return
	}

	file, header, err := c.Request.FormFile("bundle")
	if err != nil {
		utils.BadRequestResponse(c, "no bundle file uploaded", nil)
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadBundle(file, header, blockID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	if err := h.blockService.AttachBundle(blockID, creatorID, result.Key); err != nil {
		switch {
		case errors.Is(err, services.ErrBlockNotFound):
			utils.NotFoundResponse(c, "block")
		case errors.Is(err, services.ErrNotBlockOwner):
			utils.ForbiddenResponse(c, "you do not own this block")
		default:
			utils.InternalErrorResponse(c, "failed to attach bundle")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"bundle_key": result.Key,
		"size":       result.Size,
	})
}

func requireUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "authentication required")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "invalid user context")
		return uuid.Nil, false
	}

	return userID, true
}
