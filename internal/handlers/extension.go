// internal/handlers/extension.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/machinesoul11/yg-backend-sub001/internal/services"
	"github.com/machinesoul11/yg-backend-sub001/internal/utils"
)

type ExtensionHandler struct {
	extensions *services.ExtensionService
}

func NewExtensionHandler(extensions *services.ExtensionService) *ExtensionHandler {
	return &ExtensionHandler{extensions: extensions}
}

// RequestExtension handles POST /v1/licenses/:id/extensions
func (h *ExtensionHandler) RequestExtension(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.RequestExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	extension, err := h.extensions.RequestExtension(licenseID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, extension)
}

// RecordApproval handles POST /v1/extensions/:id/approvals
func (h *ExtensionHandler) RecordApproval(c *gin.Context) {
	actorID, extensionID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.ExtensionDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	extension, err := h.extensions.RecordApproval(extensionID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, extension)
}

// ListExtensions handles GET /v1/licenses/:id/extensions
func (h *ExtensionHandler) ListExtensions(c *gin.Context) {
	_, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	extensions, err := h.extensions.ListExtensions(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, extensions)
}
