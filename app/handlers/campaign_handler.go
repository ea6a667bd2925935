package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/velozap/disparador/app/dto"
	businessflow "github.com/velozap/disparador/business_flow"
	"github.com/velozap/disparador/utils"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	StartCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
	RetryFailed(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCampaign handles the campaign creation process
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	req.CustomerID = customerID

	result, err := h.campaignFlow.CreateCampaign(h.createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if be, ok := err.(*businessflow.BusinessError); ok && be.Code != "CAMPAIGN_CREATION_FAILED" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
		}

		log.Println("Campaign creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// ListCampaigns returns the customer's campaigns with pagination
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := dto.ListCampaignsRequest{
		CustomerID: customerID,
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.ListCampaigns(h.createRequestContext(c, "/api/v1/campaigns"), &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}

		log.Println("Campaign listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign listing failed", "CAMPAIGN_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign returns the full campaign detail with per-recipient rows
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	req, errResp := h.campaignActionRequest(c)
	if errResp != nil {
		return errResp(c)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.GetCampaign(h.createRequestContext(c, "/api/v1/campaigns/"+req.UUID), &dto.GetCampaignRequest{
		UUID:       req.UUID,
		CustomerID: req.CustomerID,
	}, metadata)
	if err != nil {
		return h.campaignErrorResponse(c, err, "Campaign retrieval failed", "CAMPAIGN_GET_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// StartCampaign begins or resumes the campaign send loop
func (h *CampaignHandler) StartCampaign(c fiber.Ctx) error {
	req, errResp := h.campaignActionRequest(c)
	if errResp != nil {
		return errResp(c)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.StartCampaign(h.createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/start"), &dto.StartCampaignRequest{
		UUID:       req.UUID,
		CustomerID: req.CustomerID,
	}, metadata)
	if err != nil {
		if businessflow.IsInvalidStatusTransition(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be started in its current status", "CAMPAIGN_START_NOT_ALLOWED", nil)
		}
		return h.campaignErrorResponse(c, err, "Campaign start failed", "CAMPAIGN_START_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign started", result)
}

// PauseCampaign requests the running loop to stop at the next recipient
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	req, errResp := h.campaignActionRequest(c)
	if errResp != nil {
		return errResp(c)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.PauseCampaign(h.createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/pause"), &dto.PauseCampaignRequest{
		UUID:       req.UUID,
		CustomerID: req.CustomerID,
	}, metadata)
	if err != nil {
		if businessflow.IsInvalidStatusTransition(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be paused in its current status", "CAMPAIGN_PAUSE_NOT_ALLOWED", nil)
		}
		return h.campaignErrorResponse(c, err, "Campaign pause failed", "CAMPAIGN_PAUSE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign pause requested", result)
}

// DeleteCampaign removes a non-running campaign
func (h *CampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	req, errResp := h.campaignActionRequest(c)
	if errResp != nil {
		return errResp(c)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.DeleteCampaign(h.createRequestContext(c, "/api/v1/campaigns/"+req.UUID), &dto.DeleteCampaignRequest{
		UUID:       req.UUID,
		CustomerID: req.CustomerID,
	}, metadata)
	if err != nil {
		if businessflow.IsCampaignNotDeletable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Running campaigns cannot be deleted", "CAMPAIGN_DELETE_NOT_ALLOWED", nil)
		}
		return h.campaignErrorResponse(c, err, "Campaign deletion failed", "CAMPAIGN_DELETE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign deleted successfully", result)
}

// RetryFailed re-queues the campaign's failed recipients
func (h *CampaignHandler) RetryFailed(c fiber.Ctx) error {
	req, errResp := h.campaignActionRequest(c)
	if errResp != nil {
		return errResp(c)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.campaignFlow.RetryFailed(h.createRequestContext(c, "/api/v1/campaigns/"+req.UUID+"/retry"), &dto.RetryFailedRequest{
		UUID:       req.UUID,
		CustomerID: req.CustomerID,
	}, metadata)
	if err != nil {
		return h.campaignErrorResponse(c, err, "Failed recipient retry failed", "CAMPAIGN_RETRY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Failed recipients re-queued", result)
}

// campaignActionRequest extracts the UUID path parameter and the
// authenticated customer ID shared by the per-campaign endpoints
func (h *CampaignHandler) campaignActionRequest(c fiber.Ctx) (*dto.GetCampaignRequest, func(fiber.Ctx) error) {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return nil, func(c fiber.Ctx) error {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
		}
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return nil, func(c fiber.Ctx) error {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
		}
	}

	return &dto.GetCampaignRequest{UUID: campaignUUID, CustomerID: customerID}, nil
}

// campaignErrorResponse maps the shared campaign lookup errors to HTTP codes
func (h *CampaignHandler) campaignErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	if businessflow.IsCustomerNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
	}
	if businessflow.IsAccountInactive(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
	}
	if businessflow.IsCampaignNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	}
	if businessflow.IsCampaignAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
	}

	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

func queryInt(c fiber.Ctx, key string, defaultValue int) int {
	if value := c.Query(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// createRequestContext creates a context with default timeout and request-scoped values
func (h *CampaignHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFunc, cancel)

	return ctx
}
