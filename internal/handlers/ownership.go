// internal/handlers/ownership.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/machinesoul11/yg-backend-sub001/internal/services"
	"github.com/machinesoul11/yg-backend-sub001/internal/utils"
)

type OwnershipHandler struct {
	ownership *services.OwnershipService
}

func NewOwnershipHandler(ownership *services.OwnershipService) *OwnershipHandler {
	return &OwnershipHandler{ownership: ownership}
}

// GetOwners handles GET /v1/assets/:id/owners. An optional `at` query
// parameter (RFC3339) reads the ledger at a point in time.
func (h *OwnershipHandler) GetOwners(c *gin.Context) {
	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid asset ID", nil)
		return
	}

	at := time.Now()
	if v := c.Query("at"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid 'at' timestamp, expected RFC3339", nil)
			return
		}
		at = parsed
	}

	owners, err := h.ownership.GetOwners(nil, assetID, at)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, owners)
}
