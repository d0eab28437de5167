// internal/handlers/license.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/machinesoul11/yg-backend-sub001/internal/models"
	"github.com/machinesoul11/yg-backend-sub001/internal/services"
	"github.com/machinesoul11/yg-backend-sub001/internal/utils"
)

type LicenseHandler struct {
	licenses  *services.LicenseService
	conflicts *services.ConflictService
	billing   *services.BillingService
}

func NewLicenseHandler(licenses *services.LicenseService, conflicts *services.ConflictService, billing *services.BillingService) *LicenseHandler {
	return &LicenseHandler{
		licenses:  licenses,
		conflicts: conflicts,
		billing:   billing,
	}
}

// CreateLicense handles POST /v1/licenses
func (h *LicenseHandler) CreateLicense(c *gin.Context) {
	actorID, ok := utils.ActorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenses.CreateLicense(actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, license)
}

// SubmitLicense handles POST /v1/licenses/:id/submit
func (h *LicenseHandler) SubmitLicense(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	license, err := h.licenses.SubmitLicense(licenseID, actorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// RecordApproval handles POST /v1/licenses/:id/approvals
func (h *LicenseHandler) RecordApproval(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.LicenseDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenses.RecordLicenseApproval(licenseID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// CaptureSignature handles POST /v1/licenses/:id/signature
func (h *LicenseHandler) CaptureSignature(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.SignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenses.CaptureSignature(licenseID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// TerminateLicense handles PUT /v1/licenses/:id/terminate
func (h *LicenseHandler) TerminateLicense(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req services.TerminateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenses.TerminateLicense(licenseID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

type disputeRequest struct {
	Reason    string `json:"reason" binding:"required"`
	Terminate bool   `json:"terminate,omitempty"`
}

// DisputeLicense handles PUT /v1/licenses/:id/dispute
func (h *LicenseHandler) DisputeLicense(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenses.DisputeLicense(licenseID, actorID, req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// ResolveDispute handles PUT /v1/licenses/:id/resolve-dispute
func (h *LicenseHandler) ResolveDispute(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenses.ResolveDispute(licenseID, actorID, req.Terminate, req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// SuspendLicense handles PUT /v1/licenses/:id/suspend
func (h *LicenseHandler) SuspendLicense(c *gin.Context) {
	h.adminAction(c, h.licenses.SuspendLicense)
}

// ReinstateLicense handles PUT /v1/licenses/:id/reinstate
func (h *LicenseHandler) ReinstateLicense(c *gin.Context) {
	h.adminAction(c, h.licenses.ReinstateLicense)
}

func (h *LicenseHandler) adminAction(c *gin.Context, op func(uuid.UUID, uuid.UUID, string) (*models.License, error)) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := op(licenseID, actorID, req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// GetLicense handles GET /v1/licenses/:id
func (h *LicenseHandler) GetLicense(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	license, err := h.licenses.GetLicense(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// GetAgreement handles GET /v1/licenses/:id/agreement
func (h *LicenseHandler) GetAgreement(c *gin.Context) {
	actorID, licenseID, ok := actorAndID(c)
	if !ok {
		return
	}

	url, err := h.licenses.AgreementURL(licenseID, actorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement_url": url})
}

// SearchLicenses handles GET /v1/licenses
func (h *LicenseHandler) SearchLicenses(c *gin.Context) {
	params := services.LicenseSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if v := c.Query("asset_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid asset_id filter", nil)
			return
		}
		params.AssetID = &id
	}
	if v := c.Query("brand_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid brand_id filter", nil)
			return
		}
		params.BrandID = &id
	}
	if v := c.Query("status"); v != "" {
		status := models.LicenseStatus(v)
		params.Status = &status
	}
	if v := c.Query("license_type"); v != "" {
		licenseType := models.LicenseType(v)
		params.LicenseType = &licenseType
	}

	licenses, total, err := h.licenses.SearchLicenses(params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, licenses, utils.CreatePaginationResult(total, params.PaginationParams))
}

// GetStatusHistory handles GET /v1/licenses/:id/history
func (h *LicenseHandler) GetStatusHistory(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	history, err := h.licenses.GetStatusHistory(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, history)
}

// GetStats handles GET /v1/licenses/stats
func (h *LicenseHandler) GetStats(c *gin.Context) {
	stats, err := h.licenses.GetStats()
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

type checkConflictsRequest struct {
	AssetID          uuid.UUID             `json:"asset_id" binding:"required"`
	LicenseType      models.LicenseType    `json:"license_type" binding:"required"`
	StartDate        time.Time             `json:"start_date" binding:"required"`
	EndDate          time.Time             `json:"end_date" binding:"required"`
	Scope            services.ScopeRequest `json:"scope"`
	ExcludeLicenseID *uuid.UUID            `json:"exclude_license_id,omitempty"`
}

// CheckConflicts handles POST /v1/licenses/check-conflicts; a read-only
// preview of what would block a proposal.
func (h *LicenseHandler) CheckConflicts(c *gin.Context) {
	actorID, ok := utils.ActorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req checkConflictsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.conflicts.CheckConflicts(nil, services.ConflictProbe{
		AssetID:     req.AssetID,
		BrandID:     actorID,
		LicenseType: req.LicenseType,
		Scope: models.LicenseScope{
			MediaChannels:       models.StringList(req.Scope.MediaChannels),
			Placements:          models.StringList(req.Scope.Placements),
			Territories:         models.StringList(req.Scope.Territories),
			ExclusivityCategory: req.Scope.ExclusivityCategory,
			BlockedCompetitors:  models.StringList(req.Scope.BlockedCompetitors),
		},
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		ExcludeLicenseID: req.ExcludeLicenseID,
	}, false)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GetTransactions handles GET /v1/licenses/:id/transactions
func (h *LicenseHandler) GetTransactions(c *gin.Context) {
	licenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid license ID", nil)
		return
	}

	transactions, err := h.billing.LicenseTransactions(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, transactions)
}

// actorAndID extracts the authenticated actor and the :id path parameter.
func actorAndID(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	actorID, ok := utils.ActorID(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, uuid.Nil, false
	}

	resourceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid resource ID", nil)
		return uuid.Nil, uuid.Nil, false
	}

	return actorID, resourceID, true
}
