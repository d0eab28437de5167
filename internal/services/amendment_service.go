// internal/services/amendment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
	"github.com/machinesoul11/yg-backend-sub001/internal/utils"
)

// AmendmentService manages proposed in-flight changes to active licenses.
// An amendment holds before/after snapshots of the touched fields and is
// merged into the license only when every required approver accepts before
// the deadline.
type AmendmentService struct {
	db        *gorm.DB
	cfg       *config.Config
	ownership *OwnershipService
	conflicts *ConflictService
	licenses  *LicenseService
	events    *EventService
	billing   *BillingService
}

type ProposeAmendmentRequest struct {
	AmendmentType models.AmendmentType   `json:"amendment_type" validate:"required,oneof=financial scope dates other"`
	Changes       map[string]interface{} `json:"changes" validate:"required,min=1"`
	Justification string                 `json:"justification" validate:"required,min=10"`
	DeadlineDays  int                    `json:"deadline_days" validate:"omitempty,min=1"`
}

type AmendmentDecisionRequest struct {
	Decision models.ApprovalDecision `json:"decision" validate:"required,oneof=approved rejected"`
	Comments string                  `json:"comments,omitempty"`
}

// amendableFields maps each change key to the amendment types allowed to
// touch it. Anything outside this map is rejected at propose time.
var amendableFields = map[string][]models.AmendmentType{
	"fee_amount":           {models.AmendmentTypeFinancial},
	"rev_share_bps":        {models.AmendmentTypeFinancial},
	"billing_frequency":    {models.AmendmentTypeFinancial},
	"start_date":           {models.AmendmentTypeDates},
	"end_date":             {models.AmendmentTypeDates},
	"media_channels":       {models.AmendmentTypeScope},
	"placements":           {models.AmendmentTypeScope},
	"territories":          {models.AmendmentTypeScope},
	"exclusivity_category": {models.AmendmentTypeScope},
	"blocked_competitors":  {models.AmendmentTypeScope},
	"permitted_edits":      {models.AmendmentTypeScope, models.AmendmentTypeOther},
	"cutdowns_allowed":     {models.AmendmentTypeScope, models.AmendmentTypeOther},
}

func NewAmendmentService(db *gorm.DB, cfg *config.Config, ownership *OwnershipService, conflicts *ConflictService, licenses *LicenseService, events *EventService, billing *BillingService) *AmendmentService {
	return &AmendmentService{
		db:        db,
		cfg:       cfg,
		ownership: ownership,
		conflicts: conflicts,
		licenses:  licenses,
		events:    events,
		billing:   billing,
	}
}

// ProposeAmendment opens a new amendment round on an active license. A still
// pending amendment on the same license is superseded, so at most one
// proposal is live at a time.
func (s *AmendmentService) ProposeAmendment(licenseID, actorID uuid.UUID, req *ProposeAmendmentRequest) (*models.Amendment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid amendment proposal: %v", err)
	}
	if err := validateChanges(req.AmendmentType, req.Changes); err != nil {
		return nil, err
	}

	deadlineDays := req.DeadlineDays
	if deadlineDays == 0 {
		deadlineDays = s.cfg.Engine.AmendmentDeadlineMaxDays
	}
	if deadlineDays > s.cfg.Engine.AmendmentDeadlineMaxDays {
		return nil, apperrors.Validation("approval deadline cannot exceed %d days", s.cfg.Engine.AmendmentDeadlineMaxDays)
	}

	var amendment *models.Amendment
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		license, err := s.licenses.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if license.Status != models.LicenseStatusActive && license.Status != models.LicenseStatusExpiringSoon {
			return apperrors.Validation("amendments can only be proposed on active licenses")
		}
		if err := s.licenses.authorizeParty(tx, license, actorID); err != nil {
			return err
		}

		// A newer proposal replaces any still-open one.
		if err := tx.Model(&models.Amendment{}).
			Where("license_id = ? AND status = ?", license.ID, models.AmendmentStatusProposed).
			Update("status", models.AmendmentStatusSuperseded).Error; err != nil {
			return fmt.Errorf("failed to supersede prior amendments: %w", err)
		}

		var lastNumber int
		if err := tx.Model(&models.Amendment{}).
			Where("license_id = ?", license.ID).
			Select("COALESCE(MAX(amendment_number), 0)").
			Scan(&lastNumber).Error; err != nil {
			return fmt.Errorf("failed to number amendment: %w", err)
		}

		before := snapshotFields(license, req.Changes)
		amendment = &models.Amendment{
			LicenseID:        license.ID,
			AmendmentNumber:  lastNumber + 1,
			AmendmentType:    req.AmendmentType,
			BeforeValues:     before,
			AfterValues:      models.JSONB(req.Changes),
			Justification:    req.Justification,
			Status:           models.AmendmentStatusProposed,
			ApprovalDeadline: time.Now().AddDate(0, 0, deadlineDays),
			ProposedBy:       actorID,
		}
		if err := tx.Create(amendment).Error; err != nil {
			return fmt.Errorf("failed to create amendment: %w", err)
		}

		return s.createApprovalRound(tx, license, models.ApprovalSubjectAmendment, amendment.ID, actorID)
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventAmendmentProposed, licenseID, &amendment.ID, map[string]interface{}{
		"amendment_number": amendment.AmendmentNumber,
		"amendment_type":   string(amendment.AmendmentType),
	})

	return amendment, nil
}

// RecordApproval stores one counter-party's decision. One rejection rejects
// the whole amendment; the final approval applies AfterValues onto the
// license inside the same transaction. A deadline that passed before this
// call expires the amendment lazily.
func (s *AmendmentService) RecordApproval(amendmentID, approverID uuid.UUID, req *AmendmentDecisionRequest) (*models.Amendment, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid approval decision: %v", err)
	}

	var amendment *models.Amendment
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		amendment, err = s.lockAmendment(tx, amendmentID)
		if err != nil {
			return err
		}

		license, err := s.licenses.lockLicense(tx, amendment.LicenseID)
		if err != nil {
			return err
		}

		if amendment.Status != models.AmendmentStatusProposed {
			return apperrors.Validation("amendment is already %s", amendment.Status)
		}

		now := time.Now()
		if amendment.DeadlinePassed(now) {
			return s.resolve(tx, amendment, models.AmendmentStatusRejected, now)
		}

		// The license may have left the amendable states since the round
		// opened (terminated, suspended, expired). The proposal dies with it
		// rather than mutating a closed license.
		if license.Status != models.LicenseStatusActive && license.Status != models.LicenseStatusExpiringSoon {
			return s.resolve(tx, amendment, models.AmendmentStatusRejected, now)
		}

		var approval models.Approval
		if err := tx.Where("subject_type = ? AND subject_id = ? AND approver_id = ?",
			models.ApprovalSubjectAmendment, amendment.ID, approverID).
			First(&approval).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Forbidden("actor is not a required approver for this amendment")
			}
			return fmt.Errorf("database error: %w", err)
		}
		if approval.Decision != models.ApprovalDecisionPending {
			return apperrors.Validation("approval already recorded")
		}

		approval.Decision = req.Decision
		approval.Comments = req.Comments
		approval.DecidedAt = &now
		if err := tx.Save(&approval).Error; err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}

		if req.Decision == models.ApprovalDecisionRejected {
			return s.resolve(tx, amendment, models.AmendmentStatusRejected, now)
		}

		remaining, err := pendingApprovals(tx, models.ApprovalSubjectAmendment, amendment.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		if err := s.apply(tx, amendment, license, &approverID); err != nil {
			return err
		}
		return s.resolve(tx, amendment, models.AmendmentStatusApproved, now)
	})
	if err != nil {
		return nil, err
	}

	if amendment.Status != models.AmendmentStatusProposed {
		s.events.Emit(EventAmendmentResolved, amendment.LicenseID, &amendment.ID, map[string]interface{}{
			"status": string(amendment.Status),
		})
	}

	return amendment, nil
}

// GetAmendment applies lazy deadline expiry on read.
func (s *AmendmentService) GetAmendment(amendmentID uuid.UUID) (*models.Amendment, error) {
	var amendment *models.Amendment
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		amendment, err = s.lockAmendment(tx, amendmentID)
		if err != nil {
			return err
		}
		now := time.Now()
		if amendment.Status == models.AmendmentStatusProposed && amendment.DeadlinePassed(now) {
			return s.resolve(tx, amendment, models.AmendmentStatusRejected, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amendment, nil
}

func (s *AmendmentService) ListAmendments(licenseID uuid.UUID) ([]models.Amendment, error) {
	var amendments []models.Amendment
	if err := s.db.Where("license_id = ?", licenseID).
		Order("amendment_number ASC").
		Find(&amendments).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch amendments: %w", err)
	}
	return amendments, nil
}

// ExpireOverdue rejects every proposed amendment whose deadline has passed.
// Used by the sweep; each amendment resolves in its own transaction.
func (s *AmendmentService) ExpireOverdue(now time.Time, batchSize int) (int, error) {
	var ids []uuid.UUID
	if err := s.db.Model(&models.Amendment{}).
		Where("status = ? AND approval_deadline < ?", models.AmendmentStatusProposed, now).
		Limit(batchSize).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find overdue amendments: %w", err)
	}

	expired := 0
	for _, id := range ids {
		err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
			amendment, err := s.lockAmendment(tx, id)
			if err != nil {
				return err
			}
			if amendment.Status != models.AmendmentStatusProposed || !amendment.DeadlinePassed(now) {
				return nil
			}
			return s.resolve(tx, amendment, models.AmendmentStatusRejected, now)
		})
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// apply merges AfterValues onto the license field by field. A DATES change
// shifts the occupied interval, so the conflict detector re-runs over the new
// interval before anything commits.
func (s *AmendmentService) apply(tx *gorm.DB, amendment *models.Amendment, license *models.License, actorID *uuid.UUID) error {
	priorFee := license.FeeAmount

	for field, value := range amendment.AfterValues {
		if err := applyField(license, field, value); err != nil {
			return err
		}
	}
	if !license.EndDate.After(license.StartDate) {
		return apperrors.Validation("amended end date must be strictly after start date")
	}

	if amendment.AmendmentType == models.AmendmentTypeDates || amendment.AmendmentType == models.AmendmentTypeScope {
		result, err := s.conflicts.CheckConflicts(tx, ConflictProbe{
			AssetID:          license.AssetID,
			BrandID:          license.BrandID,
			LicenseType:      license.LicenseType,
			Scope:            license.Scope,
			StartDate:        license.StartDate,
			EndDate:          license.EndDate,
			ExcludeLicenseID: &license.ID,
		}, true)
		if err != nil {
			return err
		}
		if result.Blocked() {
			return apperrors.ConflictDetected(result.HardBlocking())
		}
	}

	license.AmendmentCount++
	if err := tx.Save(license).Error; err != nil {
		return fmt.Errorf("failed to apply amendment: %w", err)
	}

	// A fee increase issues a billing intent for the delta.
	if delta := license.FeeAmount - priorFee; delta > 0 {
		if _, err := s.billing.EmitIntent(tx, license, models.TransactionTypeAmendmentFee, delta, models.JSONB{
			"amendment_id":     amendment.ID.String(),
			"amendment_number": amendment.AmendmentNumber,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *AmendmentService) resolve(tx *gorm.DB, amendment *models.Amendment, status models.AmendmentStatus, now time.Time) error {
	amendment.Status = status
	amendment.ResolvedAt = &now
	if err := tx.Save(amendment).Error; err != nil {
		return fmt.Errorf("failed to resolve amendment: %w", err)
	}
	return nil
}

// createApprovalRound writes one pending approval per counter-party: the
// brand plus every owner with a non-zero share. The proposer's own approval
// is recorded as approved immediately.
func (s *AmendmentService) createApprovalRound(tx *gorm.DB, license *models.License, subject models.ApprovalSubject, subjectID, proposerID uuid.UUID) error {
	now := time.Now()

	ownerIDs, err := s.ownership.RequiredApprovers(tx, license.AssetID, now)
	if err != nil {
		return err
	}

	type party struct {
		id   uuid.UUID
		role models.UserType
	}
	parties := []party{{license.BrandID, models.UserTypeBrand}}
	for _, ownerID := range ownerIDs {
		parties = append(parties, party{ownerID, models.UserTypeCreator})
	}

	for _, p := range parties {
		approval := &models.Approval{
			SubjectType: subject,
			SubjectID:   subjectID,
			LicenseID:   license.ID,
			ApproverID:  p.id,
			Role:        p.role,
			Decision:    models.ApprovalDecisionPending,
		}
		if p.id == proposerID {
			approval.Decision = models.ApprovalDecisionApproved
			approval.DecidedAt = &now
		}
		if err := tx.Create(approval).Error; err != nil {
			return fmt.Errorf("failed to create approval record: %w", err)
		}
	}
	return nil
}

func (s *AmendmentService) lockAmendment(tx *gorm.DB, amendmentID uuid.UUID) (*models.Amendment, error) {
	var amendment models.Amendment
	if err := forUpdate(tx).
		First(&amendment, "id = ?", amendmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("amendment", amendmentID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &amendment, nil
}

func validateChanges(amendmentType models.AmendmentType, changes map[string]interface{}) error {
	for field := range changes {
		allowed, known := amendableFields[field]
		if !known {
			return apperrors.Validation("field %q cannot be amended", field)
		}
		ok := false
		for _, t := range allowed {
			if t == amendmentType {
				ok = true
				break
			}
		}
		if !ok {
			return apperrors.Validation("field %q does not belong to a %s amendment", field, amendmentType)
		}
	}
	return nil
}

func snapshotFields(license *models.License, changes map[string]interface{}) models.JSONB {
	before := models.JSONB{}
	for field := range changes {
		switch field {
		case "fee_amount":
			before[field] = license.FeeAmount
		case "rev_share_bps":
			before[field] = license.RevShareBps
		case "billing_frequency":
			before[field] = license.BillingFrequency
		case "start_date":
			before[field] = license.StartDate.Format(time.RFC3339)
		case "end_date":
			before[field] = license.EndDate.Format(time.RFC3339)
		case "media_channels":
			before[field] = []string(license.Scope.MediaChannels)
		case "placements":
			before[field] = []string(license.Scope.Placements)
		case "territories":
			before[field] = []string(license.Scope.Territories)
		case "exclusivity_category":
			before[field] = license.Scope.ExclusivityCategory
		case "blocked_competitors":
			before[field] = []string(license.Scope.BlockedCompetitors)
		case "permitted_edits":
			before[field] = []string(license.Scope.PermittedEdits)
		case "cutdowns_allowed":
			before[field] = license.Scope.CutdownsAllowed
		}
	}
	return before
}

func applyField(license *models.License, field string, value interface{}) error {
	switch field {
	case "fee_amount":
		v, err := asInt64(value)
		if err != nil || v <= 0 {
			return apperrors.Validation("fee_amount must be a positive integer")
		}
		license.FeeAmount = v
	case "rev_share_bps":
		v, err := asInt64(value)
		if err != nil || v < 0 || v > models.ShareScale {
			return apperrors.Validation("rev_share_bps must be between 0 and %d", models.ShareScale)
		}
		license.RevShareBps = int(v)
	case "billing_frequency":
		v, ok := value.(string)
		if !ok {
			return apperrors.Validation("billing_frequency must be a string")
		}
		license.BillingFrequency = v
	case "start_date":
		t, err := asTime(value)
		if err != nil {
			return apperrors.Validation("start_date must be an RFC3339 timestamp")
		}
		license.StartDate = t
	case "end_date":
		t, err := asTime(value)
		if err != nil {
			return apperrors.Validation("end_date must be an RFC3339 timestamp")
		}
		license.EndDate = t
	case "media_channels":
		license.Scope.MediaChannels = asStringList(value)
	case "placements":
		license.Scope.Placements = asStringList(value)
	case "territories":
		license.Scope.Territories = asStringList(value)
	case "exclusivity_category":
		v, ok := value.(string)
		if !ok {
			return apperrors.Validation("exclusivity_category must be a string")
		}
		license.Scope.ExclusivityCategory = v
	case "blocked_competitors":
		license.Scope.BlockedCompetitors = asStringList(value)
	case "permitted_edits":
		license.Scope.PermittedEdits = asStringList(value)
	case "cutdowns_allowed":
		v, ok := value.(bool)
		if !ok {
			return apperrors.Validation("cutdowns_allowed must be a boolean")
		}
		license.Scope.CutdownsAllowed = v
	}
	return nil
}

func asInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("not a number: %T", value)
	}
}

func asTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339, v)
	default:
		return time.Time{}, fmt.Errorf("not a timestamp: %T", value)
	}
}

func asStringList(value interface{}) models.StringList {
	switch v := value.(type) {
	case []string:
		return models.StringList(v)
	case models.StringList:
		return v
	case []interface{}:
		out := make(models.StringList, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
