package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	returnsapp "github.com/marketplace/returns/internal/application/returns"
	"github.com/marketplace/returns/internal/infrastructure/courier"
	"github.com/marketplace/returns/internal/infrastructure/logger"
	"github.com/marketplace/returns/internal/interfaces/http/dto"
)

const maxWebhookPayloadSize = 64 * 1024

// CourierWebhookHandler receives scan updates pushed by the courier partner
type CourierWebhookHandler struct {
	BaseHandler
	machine *returnsapp.ReturnStateMachine
	partner string
	secret  []byte
}

// NewCourierWebhookHandler creates a handler that verifies bodies against secret.
// An empty secret rejects every delivery.
func NewCourierWebhookHandler(machine *returnsapp.ReturnStateMachine, partner, secret string) *CourierWebhookHandler {
	return &CourierWebhookHandler{
		machine: machine,
		partner: partner,
		secret:  []byte(secret),
	}
}

// HandleScan godoc
//
//	@ID				courierScanWebhook
//	@Summary		Apply a courier scan
//	@Description	Apply one scan pushed by the courier partner. The body must be signed with the shared webhook secret.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			X-Courier-Signature	header		string							true	"Hex HMAC-SHA256 of the raw body"
//	@Param			request				body		returnsapp.CourierScanRequest	true	"Courier scan"
//	@Success		200					{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400					{object}	dto.Response
//	@Failure		401					{object}	dto.Response
//	@Failure		404					{object}	dto.Response
//	@Failure		409					{object}	dto.Response
//	@Failure		413					{object}	dto.Response
//	@Failure		500					{object}	dto.Response
//	@Router			/webhooks/courier [post]
func (h *CourierWebhookHandler) HandleScan(c *gin.Context) {
	// the signature covers the raw bytes, so read them before binding
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Failed to read request body")
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Payload too large")
		return
	}

	if err := courier.VerifySignature(h.secret, payload, c.GetHeader(courier.SignatureHeader)); err != nil {
		logger.L(c.Request.Context()).Warn("Courier webhook signature rejected",
			zap.String("partner", h.partner),
			zap.String("client_ip", c.ClientIP()),
		)
		h.Unauthorized(c, dto.ErrCodeInvalidSignature, "Webhook signature verification failed")
		return
	}

	var req returnsapp.CourierScanRequest
	if err := binding.JSON.BindBody(payload, &req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.machine.ApplyCourierScan(c.Request.Context(), h.partner, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
