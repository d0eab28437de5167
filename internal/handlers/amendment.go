// internal/handlers/amendment.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/machinesoul11/yg-backend-sub001/internal/services"
	"github.com/machinesoul11/yg-backend-sub001/internal/utils"
)

type AmendmentHandler struct {
	amendments *services.AmendmentService
}

func NewAmendmentHandler(amendments *services.AmendmentService) *AmendmentHandler {
	return &AmendmentHandler{amendments: amendments}
}

// ProposeAmendment handles POST /v1/licenses/:id/amendments
func (h *AmendmentHandler) ProposeAmendment(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.ProposeAmendmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	amendment, err := h.amendments.ProposeAmendment(licenseID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, amendment)
}

// RecordApproval handles POST /v1/amendments/:id/approvals
func (h *AmendmentHandler) RecordApproval(c *gin.Context) {
	actorID, amendmentID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.AmendmentDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	amendment, err := h.amendments.RecordApproval(amendmentID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, amendment)
}

// GetAmendment handles GET /v1/amendments/:id
func (h *AmendmentHandler) GetAmendment(c *gin.Context) {
	_, amendmentID, ok := actorAndID(c)
	if !ok {
		return
	}

	amendment, err := h.amendments.GetAmendment(amendmentID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, amendment)
}

// ListAmendments handles GET /v1/licenses/:id/amendments
func (h *AmendmentHandler) ListAmendments(c *gin.Context) {
	_, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	amendments, err := h.amendments.ListAmendments(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, amendments)
}
