package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/velozap/disparador/app/dto"
	"github.com/velozap/disparador/repository"
	"github.com/velozap/disparador/utils"
)

// IdentityMiddleware resolves the acting customer from the identity header
// set by the upstream gateway. Authentication itself happens at the edge;
// this service trusts the gateway and only maps the customer UUID to a row.
type IdentityMiddleware struct {
	customerRepo repository.CustomerRepository
}

// NewIdentityMiddleware creates a new identity middleware
func NewIdentityMiddleware(customerRepo repository.CustomerRepository) *IdentityMiddleware {
	return &IdentityMiddleware{
		customerRepo: customerRepo,
	}
}

// Resolve is the middleware function that maps X-Customer-UUID to the
// customer record and stores the ID in request locals
func (m *IdentityMiddleware) Resolve() fiber.Handler {
	return func(c fiber.Ctx) error {
		customerUUID := c.Get("X-Customer-UUID")
		if customerUUID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Customer identity header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_CUSTOMER_IDENTITY",
				},
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		customer, err := m.customerRepo.ByUUID(ctx, customerUUID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Failed to resolve customer identity",
				Error: dto.ErrorDetail{
					Code: "IDENTITY_LOOKUP_FAILED",
				},
			})
		}
		if customer == nil || !utils.IsTrue(customer.IsActive) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Customer not found or inactive",
				Error: dto.ErrorDetail{
					Code: "CUSTOMER_NOT_FOUND",
				},
			})
		}

		c.Locals("customer_id", customer.ID)
		return c.Next()
	}
}
