// internal/services/event_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

// Domain event types consumed by the notification collaborator.
const (
	EventLicenseProposed       = "license_proposed"
	EventLicenseActivated      = "license_activated"
	EventLicenseTerminated     = "license_terminated"
	EventLicenseDisputed       = "license_disputed"
	EventLicenseExpired        = "license_expired"
	EventAmendmentProposed     = "amendment_proposed"
	EventAmendmentResolved     = "amendment_resolved"
	EventExtensionRequested    = "extension_requested"
	EventExtensionResolved     = "extension_resolved"
	EventRenewalOfferGenerated = "renewal_offer_generated"
	EventRenewalOfferAccepted  = "renewal_offer_accepted"
	EventBillingIntentIssued   = "billing_intent_issued"
)

// DomainEvent is the wire shape published to the notification channel.
type DomainEvent struct {
	Type       string                 `json:"type"`
	LicenseID  uuid.UUID              `json:"license_id"`
	ResourceID *uuid.UUID             `json:"resource_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	EmittedAt  time.Time              `json:"emitted_at"`
}

// EventService emits domain events fire-and-forget: a redis publish for the
// notification collaborator plus a notification row for the admin surface.
// Emission failure is logged and never propagates into the license
// transaction that produced the event.
type EventService struct {
	db      *gorm.DB
	redis   *redis.Client
	channel string
}

func NewEventService(db *gorm.DB, cfg *config.Config) *EventService {
	var client *redis.Client
	if cfg != nil {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	channel := "license.events"
	if cfg != nil && cfg.Redis.EventChannel != "" {
		channel = cfg.Redis.EventChannel
	}
	return &EventService{db: db, redis: client, channel: channel}
}

// Emit dispatches the event asynchronously. Callers fire it after their
// transaction commits.
func (s *EventService) Emit(eventType string, licenseID uuid.UUID, resourceID *uuid.UUID, payload map[string]interface{}) {
	event := DomainEvent{
		Type:       eventType,
		LicenseID:  licenseID,
		ResourceID: resourceID,
		Payload:    payload,
		EmittedAt:  time.Now().UTC(),
	}

	go s.deliver(event)
}

func (s *EventService) deliver(event DomainEvent) {
	if s.redis != nil {
		data, err := json.Marshal(event)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.redis.Publish(ctx, s.channel, data).Err(); err != nil {
				logrus.WithError(err).WithField("event", event.Type).Warn("failed to publish domain event")
			}
		}
	}

	if s.db != nil {
		notification := &models.Notification{
			Type:                event.Type,
			Title:               eventTitle(event.Type),
			Message:             fmt.Sprintf("License %s: %s", event.LicenseID, eventTitle(event.Type)),
			Priority:            eventPriority(event.Type),
			RelatedResourceType: "license",
			RelatedResourceID:   &event.LicenseID,
			Payload:             models.JSONB(event.Payload),
		}
		if err := s.db.Create(notification).Error; err != nil {
			logrus.WithError(err).WithField("event", event.Type).Warn("failed to persist notification")
		}
	}
}

func eventTitle(eventType string) string {
	switch eventType {
	case EventLicenseProposed:
		return "License proposed"
	case EventLicenseActivated:
		return "License activated"
	case EventLicenseTerminated:
		return "License terminated"
	case EventLicenseDisputed:
		return "License disputed"
	case EventLicenseExpired:
		return "License expired"
	case EventAmendmentProposed:
		return "Amendment proposed"
	case EventAmendmentResolved:
		return "Amendment resolved"
	case EventExtensionRequested:
		return "Extension requested"
	case EventExtensionResolved:
		return "Extension resolved"
	case EventRenewalOfferGenerated:
		return "Renewal offer generated"
	case EventRenewalOfferAccepted:
		return "Renewal offer accepted"
	case EventBillingIntentIssued:
		return "Billing intent issued"
	default:
		return eventType
	}
}

func eventPriority(eventType string) string {
	switch eventType {
	case EventLicenseTerminated, EventLicenseDisputed:
		return "high"
	default:
		return "medium"
	}
}
