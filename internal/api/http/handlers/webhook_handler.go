package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/supportops/owner-relay/internal/idempotency"
	"github.com/supportops/owner-relay/internal/service"
)

// WebhookHandler receives inbound case events.
type WebhookHandler struct {
	service *service.WebhookService
}

// NewWebhookHandler constructs handler.
func NewWebhookHandler(webhookService *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: webhookService}
}

// Receive handles POST {WEBHOOK_PATH}.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	result, err := h.service.Process(c.UserContext(), c.Body(), c.Get(idempotency.HeaderName))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(result)
}
