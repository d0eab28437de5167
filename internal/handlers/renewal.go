// internal/handlers/renewal.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/services"
	"github.com/machinesoul11/yg-backend-sub001/internal/utils"
)

type RenewalHandler struct {
	renewals *services.RenewalService
}

func NewRenewalHandler(renewals *services.RenewalService) *RenewalHandler {
	return &RenewalHandler{renewals: renewals}
}

// CheckEligibility handles GET /v1/licenses/:id/renewal/eligibility
func (h *RenewalHandler) CheckEligibility(c *gin.Context) {
	_, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	result, err := h.renewals.CheckEligibility(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GenerateOffer handles POST /v1/licenses/:id/renewal/offer
func (h *RenewalHandler) GenerateOffer(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.GenerateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	offer, err := h.renewals.GenerateOffer(licenseID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, offer)
}

// PreviewPricing handles POST /v1/licenses/:id/renewal/preview
func (h *RenewalHandler) PreviewPricing(c *gin.Context) {
	_, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.GenerateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	breakdown, err := h.renewals.PreviewPricing(licenseID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, breakdown)
}

type offerActionRequest struct {
	OfferID *uuid.UUID `json:"offer_id,omitempty"`
}

// AcceptOffer handles POST /v1/licenses/:id/renewal/accept. The body may
// name an offer explicitly; otherwise the license's open offer is used.
func (h *RenewalHandler) AcceptOffer(c *gin.Context) {
	actorID, _, offerID, ok := h.resolveOffer(c)
	if !ok {
		return
	}

	child, err := h.renewals.AcceptOffer(offerID, actorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, child)
}

// DeclineOffer handles POST /v1/licenses/:id/renewal/decline
func (h *RenewalHandler) DeclineOffer(c *gin.Context) {
	actorID, _, offerID, ok := h.resolveOffer(c)
	if !ok {
		return
	}

	offer, err := h.renewals.DeclineOffer(offerID, actorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, offer)
}

// ListOffers handles GET /v1/licenses/:id/renewal/offers
func (h *RenewalHandler) ListOffers(c *gin.Context) {
	_, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	offers, err := h.renewals.ListOffers(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, offers)
}

func (h *RenewalHandler) resolveOffer(c *gin.Context) (uuid.UUID, uuid.UUID, uuid.UUID, bool) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}

	var req offerActionRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.OfferID != nil {
		// An explicitly named offer must belong to the license in the path.
		offer, err := h.renewals.GetOffer(*req.OfferID)
		if err != nil {
			utils.RespondError(c, err)
			return uuid.Nil, uuid.Nil, uuid.Nil, false
		}
		if offer.LicenseID != licenseID {
			utils.RespondError(c, apperrors.NotFound("renewal offer", *req.OfferID))
			return uuid.Nil, uuid.Nil, uuid.Nil, false
		}
		return actorID, licenseID, offer.ID, true
	}

	offer, err := h.renewals.OpenOffer(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return uuid.Nil, uuid.Nil, uuid.Nil, false
	}
	return actorID, licenseID, offer.ID, true
}
