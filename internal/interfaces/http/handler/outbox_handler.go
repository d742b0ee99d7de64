package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/marketplace/returns/internal/application/outbox"
)

// OutboxHandler serves the operator endpoints for undeliverable notifications
type OutboxHandler struct {
	BaseHandler
	deliveries *outbox.DeliveryService
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(deliveries *outbox.DeliveryService) *OutboxHandler {
	return &OutboxHandler{deliveries: deliveries}
}

// ListDeadLetters godoc
//
//	@ID				listOutboxDeadLetters
//	@Summary		List dead letter notifications
//	@Description	Retrieve a page of outbox entries that exhausted their delivery attempts
//	@Tags			outbox
//	@Produce		json
//	@Param			page		query		int	false	"Page number"	default(1)
//	@Param			page_size	query		int	false	"Page size"		default(20)	maximum(100)
//	@Success		200			{object}	dto.Response{data=[]outbox.EntryResponse}
//	@Failure		400			{object}	dto.Response
//	@Failure		401			{object}	dto.Response
//	@Failure		403			{object}	dto.Response
//	@Failure		500			{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/admin/outbox/dead-letters [get]
func (h *OutboxHandler) ListDeadLetters(c *gin.Context) {
	var filter outbox.DeadLetterFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	entries, total, err := h.deliveries.ListDeadLetters(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := filter.Paging()
	h.SuccessWithMeta(c, entries, total, page, pageSize)
}

// GetEntry godoc
//
//	@ID				getOutboxEntry
//	@Summary		Get an outbox entry
//	@Description	Retrieve one outbox entry with its delivery state
//	@Tags			outbox
//	@Produce		json
//	@Param			id	path		string	true	"Outbox entry ID"	format(uuid)
//	@Success		200	{object}	dto.Response{data=outbox.EntryResponse}
//	@Failure		400	{object}	dto.Response
//	@Failure		401	{object}	dto.Response
//	@Failure		403	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/admin/outbox/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp, err := h.deliveries.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Retry godoc
//
//	@ID				retryOutboxEntry
//	@Summary		Retry a dead letter
//	@Description	Requeue one dead letter entry for delivery
//	@Tags			outbox
//	@Produce		json
//	@Param			id	path		string	true	"Outbox entry ID"	format(uuid)
//	@Success		200	{object}	dto.Response{data=outbox.EntryResponse}
//	@Failure		400	{object}	dto.Response
//	@Failure		401	{object}	dto.Response
//	@Failure		403	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Failure		409	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/admin/outbox/{id}/retry [post]
func (h *OutboxHandler) Retry(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp, err := h.deliveries.Retry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RetryAll godoc
//
//	@ID				retryAllOutboxDeadLetters
//	@Summary		Retry all dead letters
//	@Description	Requeue every dead letter entry for delivery
//	@Tags			outbox
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=outbox.RetryAllResponse}
//	@Failure		401	{object}	dto.Response
//	@Failure		403	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/admin/outbox/dead-letters/retry [post]
func (h *OutboxHandler) RetryAll(c *gin.Context) {
	resp, err := h.deliveries.RetryAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Stats godoc
//
//	@ID				getOutboxStats
//	@Summary		Get outbox statistics
//	@Description	Count outbox entries per delivery status
//	@Tags			outbox
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=outbox.StatsResponse}
//	@Failure		401	{object}	dto.Response
//	@Failure		403	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/admin/outbox/stats [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	resp, err := h.deliveries.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
