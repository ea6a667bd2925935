// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAccountInactive  = errors.New("account is inactive")

	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignAccessDenied     = errors.New("campaign access denied")
	ErrCampaignNameRequired     = errors.New("campaign name is required")
	ErrCampaignMessageRequired  = errors.New("campaign message is required")
	ErrCampaignContactsRequired = errors.New("campaign needs at least one contact")
	ErrContactsNotFound         = errors.New("some contacts were not found")
	ErrMediaTypeRequired        = errors.New("media type is required when media url is set")
	ErrInvalidStatusTransition  = errors.New("campaign status transition not allowed")
	ErrCampaignNotDeletable     = errors.New("running campaigns cannot be deleted")
	ErrCampaignNotRetryable     = errors.New("only non-running campaigns can retry failed sends")
	ErrScheduleTimeInPast       = errors.New("schedule time must be in the future")
	ErrAntiBanConfigInvalid     = errors.New("anti-ban configuration is invalid")

	// Delivery-related errors
	ErrRecipientNotFound        = errors.New("recipient not found for tracking id")
	ErrRecipientNotDeliverable  = errors.New("recipient is not in a deliverable state")
	ErrDeliveryAlreadyConfirmed = errors.New("delivery already confirmed")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsCampaignNotDeletable(err error) bool {
	return errors.Is(err, ErrCampaignNotDeletable)
}

func IsRecipientNotFound(err error) bool {
	return errors.Is(err, ErrRecipientNotFound)
}

func IsDeliveryAlreadyConfirmed(err error) bool {
	return errors.Is(err, ErrDeliveryAlreadyConfirmed)
}
