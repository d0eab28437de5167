// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"
	KeyAccessDenied     = "auth.access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"
	KeyValidationFailed  = "validation.failed"

	// Licenses
	KeyLicenseCreated     = "license.created"
	KeyLicenseSubmitted   = "license.submitted"
	KeyLicenseApproved    = "license.approved"
	KeyLicenseSigned      = "license.signed"
	KeyLicenseActivated   = "license.activated"
	KeyLicenseTerminated  = "license.terminated"
	KeyLicenseDisputed    = "license.disputed"
	KeyLicenseResolved    = "license.dispute_resolved"
	KeyLicenseSuspended   = "license.suspended"
	KeyLicenseReinstated  = "license.reinstated"
	KeyLicenseNotFound    = "license.not_found"
	KeyLicenseConflict    = "license.conflict_detected"
	KeyLicenseBadInterval = "license.bad_interval"

	// Amendments
	KeyAmendmentProposed = "amendment.proposed"
	KeyAmendmentApproved = "amendment.approved"
	KeyAmendmentRejected = "amendment.rejected"
	KeyAmendmentNotFound = "amendment.not_found"
	KeyAmendmentExpired  = "amendment.deadline_expired"

	// Extensions
	KeyExtensionRequested = "extension.requested"
	KeyExtensionApproved  = "extension.approved"
	KeyExtensionRejected  = "extension.rejected"
	KeyExtensionNotFound  = "extension.not_found"

	// Renewals
	KeyRenewalEligible   = "renewal.eligible"
	KeyRenewalIneligible = "renewal.ineligible"
	KeyRenewalOfferMade  = "renewal.offer_generated"
	KeyRenewalAccepted   = "renewal.offer_accepted"
	KeyRenewalDeclined   = "renewal.offer_declined"
	KeyRenewalExpired    = "renewal.offer_expired"

	// Ownership
	KeyOwnershipNotFound = "ownership.not_found"
	KeyOwnershipDisputed = "ownership.disputed"
)
