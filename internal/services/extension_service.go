// internal/services/extension_service.go
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

// ExtensionService handles requests to push a license's end date forward.
// Extensions below the auto-approve threshold skip the approval round and
// commit directly after a clean conflict check over the widened interval.
type ExtensionService struct {
	db        *gorm.DB
	cfg       *config.Config
	ownership *OwnershipService
	conflicts *ConflictService
	licenses  *LicenseService
	pricing   *PricingEngine
	events    *EventService
	billing   *BillingService
}

type RequestExtensionRequest struct {
	ExtensionDays int    `json:"extension_days" validate:"required,min=1"`
	Justification string `json:"justification" validate:"required,min=10"`
}

type ExtensionDecisionRequest struct {
	Decision models.ApprovalDecision `json:"decision" validate:"required,oneof=approved rejected"`
	Comments string                  `json:"comments,omitempty"`
}

func NewExtensionService(db *gorm.DB, cfg *config.Config, ownership *OwnershipService, conflicts *ConflictService, licenses *LicenseService, pricing *PricingEngine, events *EventService, billing *BillingService) *ExtensionService {
	return &ExtensionService{
		db:        db,
		cfg:       cfg,
		ownership: ownership,
		conflicts: conflicts,
		licenses:  licenses,
		pricing:   pricing,
		events:    events,
		billing:   billing,
	}
}

// RequestExtension creates the extension and, when it is short enough to
// auto-approve, commits it in the same transaction.
func (s *ExtensionService) RequestExtension(licenseID, actorID uuid.UUID, req *RequestExtensionRequest) (*models.Extension, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid extension request: %v", err)
	}
	if req.ExtensionDays > s.cfg.Engine.MaxExtensionDays {
		return nil, apperrors.Validation("extension cannot exceed %d days", s.cfg.Engine.MaxExtensionDays)
	}

	var extension *models.Extension
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		license, err := s.licenses.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if license.Status != models.LicenseStatusActive && license.Status != models.LicenseStatusExpiringSoon {
			return apperrors.Validation("only active licenses can be extended")
		}
		if err := s.licenses.authorizeParty(tx, license, actorID); err != nil {
			return err
		}

		var open int64
		if err := tx.Model(&models.Extension{}).
			Where("license_id = ? AND status = ?", license.ID, models.ExtensionStatusPending).
			Count(&open).Error; err != nil {
			return fmt.Errorf("failed to check pending extensions: %w", err)
		}
		if open > 0 {
			return apperrors.Validation("license already has a pending extension")
		}

		autoApprove := req.ExtensionDays < s.cfg.Engine.AutoApproveExtensionDays
		additionalFee := ProRataFee(license.FeeAmount, license.DurationDays(), req.ExtensionDays)

		extension = &models.Extension{
			LicenseID:        license.ID,
			ExtensionDays:    req.ExtensionDays,
			Justification:    req.Justification,
			AdditionalFee:    additionalFee,
			ApprovalRequired: !autoApprove,
			Status:           models.ExtensionStatusPending,
			ApprovalDeadline: time.Now().AddDate(0, 0, s.cfg.Engine.AmendmentDeadlineMaxDays),
			RequestedBy:      actorID,
			NewEndDate:       license.EndDate.AddDate(0, 0, req.ExtensionDays),
		}
		if err := tx.Create(extension).Error; err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}

		if autoApprove {
			return s.commit(tx, extension, license, actorID)
		}

		// Owners review extensions; the requesting brand does not vote on
		// its own request.
		approvers, err := s.ownership.RequiredApprovers(tx, license.AssetID, time.Now())
		if err != nil {
			return err
		}
		for _, approverID := range approvers {
			if approverID == actorID {
				continue
			}
			approval := &models.Approval{
				SubjectType: models.ApprovalSubjectExtension,
				SubjectID:   extension.ID,
				LicenseID:   license.ID,
				ApproverID:  approverID,
				Role:        models.UserTypeCreator,
				Decision:    models.ApprovalDecisionPending,
			}
			if err := tx.Create(approval).Error; err != nil {
				return fmt.Errorf("failed to create approval record: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventExtensionRequested, licenseID, &extension.ID, map[string]interface{}{
		"extension_days": extension.ExtensionDays,
		"auto_approved":  !extension.ApprovalRequired,
	})

	return extension, nil
}

// RecordApproval stores an owner's decision on a pending extension. The final
// approval widens the license interval after a clean conflict check.
func (s *ExtensionService) RecordApproval(extensionID, approverID uuid.UUID, req *ExtensionDecisionRequest) (*models.Extension, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid approval decision: %v", err)
	}

	var extension *models.Extension
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		extension, err = s.lockExtension(tx, extensionID)
		if err != nil {
			return err
		}
		if extension.Status != models.ExtensionStatusPending {
			return apperrors.Validation("extension is already %s", extension.Status)
		}

		license, err := s.licenses.lockLicense(tx, extension.LicenseID)
		if err != nil {
			return err
		}

		now := time.Now()
		if now.After(extension.ApprovalDeadline) {
			return s.resolve(tx, extension, models.ExtensionStatusExpired, approverID, now)
		}

		// A license that left the extendable states while the round was open
		// can no longer have its end date pushed.
		if license.Status != models.LicenseStatusActive && license.Status != models.LicenseStatusExpiringSoon {
			return s.resolve(tx, extension, models.ExtensionStatusRejected, approverID, now)
		}

		var approval models.Approval
		if err := tx.Where("subject_type = ? AND subject_id = ? AND approver_id = ?",
			models.ApprovalSubjectExtension, extension.ID, approverID).
			First(&approval).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Forbidden("actor is not a required approver for this extension")
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
			return s.resolve(tx, extension, models.ExtensionStatusRejected, approverID, now)
		}

		remaining, err := pendingApprovals(tx, models.ApprovalSubjectExtension, extension.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		return s.commit(tx, extension, license, approverID)
	})
	if err != nil {
		return nil, err
	}

	if extension.Status != models.ExtensionStatusPending {
		s.events.Emit(EventExtensionResolved, extension.LicenseID, &extension.ID, map[string]interface{}{
			"status": string(extension.Status),
		})
	}

	return extension, nil
}

func (s *ExtensionService) GetExtension(extensionID uuid.UUID) (*models.Extension, error) {
	var extension models.Extension
	if err := s.db.First(&extension, "id = ?", extensionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("extension", extensionID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &extension, nil
}

func (s *ExtensionService) ListExtensions(licenseID uuid.UUID) ([]models.Extension, error) {
	var extensions []models.Extension
	if err := s.db.Where("license_id = ?", licenseID).
		Order("created_at ASC").
		Find(&extensions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch extensions: %w", err)
	}
	return extensions, nil
}

// ExpireOverdue marks pending extensions past their deadline as expired.
func (s *ExtensionService) ExpireOverdue(now time.Time, batchSize int) (int, error) {
	var ids []uuid.UUID
	if err := s.db.Model(&models.Extension{}).
		Where("status = ? AND approval_required = ? AND approval_deadline < ?",
			models.ExtensionStatusPending, true, now).
		Limit(batchSize).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find overdue extensions: %w", err)
	}

	expired := 0
	for _, id := range ids {
		err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
			extension, err := s.lockExtension(tx, id)
			if err != nil {
				return err
			}
			if extension.Status != models.ExtensionStatusPending || !now.After(extension.ApprovalDeadline) {
				return nil
			}
			return s.resolve(tx, extension, models.ExtensionStatusExpired, uuid.Nil, now)
		})
		if err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// commit widens the license interval. Runs the conflict detector over the new
// interval first; a pro-rata billing intent is issued for the extra days.
func (s *ExtensionService) commit(tx *gorm.DB, extension *models.Extension, license *models.License, actorID uuid.UUID) error {
	result, err := s.conflicts.CheckConflicts(tx, ConflictProbe{
		AssetID:          license.AssetID,
		BrandID:          license.BrandID,
		LicenseType:      license.LicenseType,
		Scope:            license.Scope,
		StartDate:        license.StartDate,
		EndDate:          extension.NewEndDate,
		ExcludeLicenseID: &license.ID,
	}, true)
	if err != nil {
		return err
	}
	if result.Blocked() {
		return apperrors.ConflictDetected(result.HardBlocking())
	}

	license.EndDate = extension.NewEndDate
	license.ExtensionCount++
	if err := tx.Save(license).Error; err != nil {
		return fmt.Errorf("failed to extend license: %w", err)
	}

	if extension.AdditionalFee > 0 {
		if _, err := s.billing.EmitIntent(tx, license, models.TransactionTypeExtensionFee, extension.AdditionalFee, models.JSONB{
			"extension_id":   extension.ID.String(),
			"extension_days": extension.ExtensionDays,
		}); err != nil {
			return err
		}
	}

	return s.resolve(tx, extension, models.ExtensionStatusApproved, actorID, time.Now())
}

func (s *ExtensionService) resolve(tx *gorm.DB, extension *models.Extension, status models.ExtensionStatus, actorID uuid.UUID, now time.Time) error {
	extension.Status = status
	extension.DecidedAt = &now
	if actorID != uuid.Nil {
		extension.DecidedBy = &actorID
	}
	if err := tx.Save(extension).Error; err != nil {
		return fmt.Errorf("failed to resolve extension: %w", err)
	}
	return nil
}

func (s *ExtensionService) lockExtension(tx *gorm.DB, extensionID uuid.UUID) (*models.Extension, error) {
	var extension models.Extension
	if err := forUpdate(tx).
		First(&extension, "id = ?", extensionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("extension", extensionID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &extension, nil
}
