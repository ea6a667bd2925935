package handlers

import (
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/velozap/disparador/app/dto"
	businessflow "github.com/velozap/disparador/business_flow"
)

// DeliveryHandlerInterface defines the contract for delivery receipt handlers
type DeliveryHandlerInterface interface {
	DeliveryReceipt(c fiber.Ctx) error
}

// DeliveryHandler handles delivery confirmation callbacks from the automation
// platform
type DeliveryHandler struct {
	deliveryFlow businessflow.DeliveryFlow
	validator    *validator.Validate
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(deliveryFlow businessflow.DeliveryFlow) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryFlow: deliveryFlow,
		validator:    validator.New(),
	}
}

func (h *DeliveryHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// DeliveryReceipt marks one sent message as delivered by tracking ID
func (h *DeliveryHandler) DeliveryReceipt(c fiber.Ctx) error {
	var req dto.DeliveryReceiptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.deliveryFlow.HandleDeliveryReceipt(createRequestContextWithTimeout(c, "/api/v1/delivery/receipt", 10*time.Second), &req, metadata)
	if err != nil {
		if businessflow.IsRecipientNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No recipient matches the tracking ID", "RECIPIENT_NOT_FOUND", nil)
		}

		log.Println("Delivery confirmation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Delivery confirmation failed", "DELIVERY_CONFIRMATION_FAILED", nil)
	}

	return c.Status(fiber.StatusOK).JSON(dto.APIResponse{
		Success: true,
		Message: result.Message,
		Data:    result,
	})
}
