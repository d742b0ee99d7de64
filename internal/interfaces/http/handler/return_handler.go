package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	returnsapp "github.com/marketplace/returns/internal/application/returns"
	"github.com/marketplace/returns/internal/domain/tracking"
)

// ReturnHandler serves the vendor-facing return order endpoints
type ReturnHandler struct {
	BaseHandler
	machine *returnsapp.ReturnStateMachine
	queries *returnsapp.ReturnQueryService
}

// NewReturnHandler creates a new ReturnHandler
func NewReturnHandler(machine *returnsapp.ReturnStateMachine, queries *returnsapp.ReturnQueryService) *ReturnHandler {
	return &ReturnHandler{
		machine: machine,
		queries: queries,
	}
}

// transitionFunc runs one lifecycle operation for the caller
type transitionFunc func(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor) (*returnsapp.ReturnOrderResponse, error)

// transition handles the shared shape of POST /returns/:id/<operation>
func (h *ReturnHandler) transition(c *gin.Context, run transitionFunc) {
	vendorID, actor, err := caller(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	returnID, err := pathID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := run(c.Request.Context(), vendorID, returnID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// withBody binds the JSON body into req before running op
func withBody[T any](h *ReturnHandler, c *gin.Context, op func(context.Context, uuid.UUID, uuid.UUID, tracking.Actor, T) (*returnsapp.ReturnOrderResponse, error)) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	h.transition(c, func(ctx context.Context, vendorID, returnID uuid.UUID, actor tracking.Actor) (*returnsapp.ReturnOrderResponse, error) {
		return op(ctx, vendorID, returnID, actor, req)
	})
}

// Create godoc
//
//	@ID				createReturn
//	@Summary		Open a return
//	@Description	Open a return for a delivered order item of the caller's vendor
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string							false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string							false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string							false	"Actor ID when header auth is allowed"
//	@Param			request			body		returnsapp.CreateReturnRequest	true	"Return creation request"
//	@Success		201				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		422				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns [post]
func (h *ReturnHandler) Create(c *gin.Context) {
	vendorID, actor, err := caller(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req returnsapp.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.machine.Create(c.Request.Context(), vendorID, actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetByID godoc
//
//	@ID				getReturn
//	@Summary		Get a return
//	@Description	Retrieve one return order of the caller's vendor
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string	false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string	false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string	false	"Actor ID when header auth is allowed"
//	@Param			id				path		string	true	"Return order ID"							format(uuid)
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id} [get]
func (h *ReturnHandler) GetByID(c *gin.Context) {
	vendorID, _, err := caller(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	returnID, err := pathID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := h.queries.GetByID(c.Request.Context(), vendorID, returnID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List godoc
//
//	@ID				listReturns
//	@Summary		List returns
//	@Description	Retrieve a filtered, paginated page of the vendor's returns
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string		false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string		false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string		false	"Actor ID when header auth is allowed"
//	@Param			search			query		string		false	"Return number, order ID or product name"
//	@Param			status			query		string		false	"Return status"
//	@Param			statuses		query		[]string	false	"Multiple return statuses"
//	@Param			bucket			query		string		false	"Status bucket"								Enums(awaiting_approval, in_progress, completed, closed_without_refund)
//	@Param			return_type		query		string		false	"Return type"								Enums(refund, replacement, exchange)
//	@Param			reason			query		string		false	"Return reason"
//	@Param			order_id		query		string		false	"Order ID"									format(uuid)
//	@Param			customer_id		query		string		false	"Customer ID"								format(uuid)
//	@Param			start_date		query		string		false	"Created on or after"						format(date)
//	@Param			end_date		query		string		false	"Created on or before"						format(date)
//	@Param			page			query		int			false	"Page number"								default(1)
//	@Param			page_size		query		int			false	"Page size"									default(20)			maximum(100)
//	@Param			order_by		query		string		false	"Order by field"							default(created_at)
//	@Param			order_dir		query		string		false	"Order direction"							Enums(asc, desc)	default(desc)
//	@Success		200				{object}	dto.Response{data=[]returnsapp.ReturnListItemResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns [get]
func (h *ReturnHandler) List(c *gin.Context) {
	vendorID, _, err := caller(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var filter returnsapp.ReturnListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	items, total, err := h.queries.List(c.Request.Context(), vendorID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := filter.Paging()
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// Timeline godoc
//
//	@ID				getReturnTimeline
//	@Summary		Get a return timeline
//	@Description	Retrieve the tracking history of a return, oldest first
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string	false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string	false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string	false	"Actor ID when header auth is allowed"
//	@Param			id				path		string	true	"Return order ID"							format(uuid)
//	@Success		200				{object}	dto.Response{data=returnsapp.TimelineResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/timeline [get]
func (h *ReturnHandler) Timeline(c *gin.Context) {
	vendorID, _, err := caller(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	returnID, err := pathID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := h.queries.Timeline(c.Request.Context(), vendorID, returnID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Statistics godoc
//
//	@ID				getReturnStatistics
//	@Summary		Get return statistics
//	@Description	Retrieve the vendor's return counts and refund amounts
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string	false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string	false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string	false	"Actor ID when header auth is allowed"
//	@Success		200				{object}	dto.Response{data=returnsapp.StatisticsResponse}
//	@Failure		401				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/statistics [get]
func (h *ReturnHandler) Statistics(c *gin.Context) {
	vendorID, _, err := caller(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp, err := h.queries.Statistics(c.Request.Context(), vendorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Submit godoc
//
//	@ID				submitReturn
//	@Summary		Submit a draft return
//	@Description	Move a draft return to pending approval
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string	false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string	false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string	false	"Actor ID when header auth is allowed"
//	@Param			id				path		string	true	"Return order ID"							format(uuid)
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/submit [post]
func (h *ReturnHandler) Submit(c *gin.Context) {
	h.transition(c, h.machine.Submit)
}

// Approve godoc
//
//	@ID				approveReturn
//	@Summary		Approve a return
//	@Description	Accept a return pending approval
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string	false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string	false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string	false	"Actor ID when header auth is allowed"
//	@Param			id				path		string	true	"Return order ID"							format(uuid)
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/approve [post]
func (h *ReturnHandler) Approve(c *gin.Context) {
	h.transition(c, h.machine.Approve)
}

// Reject godoc
//
//	@ID				rejectReturn
//	@Summary		Reject a return
//	@Description	Decline a return pending approval
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string							false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string							false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string							false	"Actor ID when header auth is allowed"
//	@Param			id				path		string							true	"Return order ID"							format(uuid)
//	@Param			request			body		returnsapp.RejectReturnRequest	true	"Rejection reason"
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/reject [post]
func (h *ReturnHandler) Reject(c *gin.Context) {
	withBody(h, c, h.machine.Reject)
}

// SchedulePickup godoc
//
//	@ID				scheduleReturnPickup
//	@Summary		Schedule the reverse pickup
//	@Description	Book the reverse pickup with the courier partner, falling back to a manual pickup
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string								false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string								false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string								false	"Actor ID when header auth is allowed"
//	@Param			id				path		string								true	"Return order ID"							format(uuid)
//	@Param			request			body		returnsapp.SchedulePickupRequest	true	"Pickup date"
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/schedule-pickup [post]
func (h *ReturnHandler) SchedulePickup(c *gin.Context) {
	withBody(h, c, h.machine.SchedulePickup)
}

// UpdatePickupProgress godoc
//
//	@ID				updateReturnPickupStatus
//	@Summary		Update pickup progress
//	@Description	Record courier progress reported by the vendor
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string								false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string								false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string								false	"Actor ID when header auth is allowed"
//	@Param			id				path		string								true	"Return order ID"							format(uuid)
//	@Param			request			body		returnsapp.PickupProgressRequest	true	"Pickup progress"
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/pickup-status [post]
func (h *ReturnHandler) UpdatePickupProgress(c *gin.Context) {
	withBody(h, c, h.machine.UpdatePickupProgress)
}

// MarkReceived godoc
//
//	@ID				markReturnReceived
//	@Summary		Mark a return received
//	@Description	Confirm the returned package reached the vendor
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string	false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string	false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string	false	"Actor ID when header auth is allowed"
//	@Param			id				path		string	true	"Return order ID"							format(uuid)
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/mark-received [post]
func (h *ReturnHandler) MarkReceived(c *gin.Context) {
	h.transition(c, h.machine.MarkReceived)
}

// StartInspection godoc
//
//	@ID				startReturnInspection
//	@Summary		Start inspection
//	@Description	Open the inspection of a received package
//	@Tags			returns
//	@Produce		json
//	@Param			X-Vendor-ID		header		string	false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string	false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string	false	"Actor ID when header auth is allowed"
//	@Param			id				path		string	true	"Return order ID"							format(uuid)
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/start-inspection [post]
func (h *ReturnHandler) StartInspection(c *gin.Context) {
	h.transition(c, h.machine.StartInspection)
}

// CompleteInspection godoc
//
//	@ID				completeReturnInspection
//	@Summary		Complete inspection
//	@Description	Record the inspection verdict
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string									false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string									false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string									false	"Actor ID when header auth is allowed"
//	@Param			id				path		string									true	"Return order ID"							format(uuid)
//	@Param			request			body		returnsapp.CompleteInspectionRequest	true	"Inspection verdict"
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/complete-inspection [post]
func (h *ReturnHandler) CompleteInspection(c *gin.Context) {
	withBody(h, c, h.machine.CompleteInspection)
}

// InitiateRefund godoc
//
//	@ID				initiateReturnRefund
//	@Summary		Initiate the refund
//	@Description	Start the refund of a return that passed inspection
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string								false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string								false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string								false	"Actor ID when header auth is allowed"
//	@Param			id				path		string								true	"Return order ID"							format(uuid)
//	@Param			request			body		returnsapp.InitiateRefundRequest	true	"Refund method"
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/initiate-refund [post]
func (h *ReturnHandler) InitiateRefund(c *gin.Context) {
	withBody(h, c, h.machine.InitiateRefund)
}

// CompleteRefund godoc
//
//	@ID				completeReturnRefund
//	@Summary		Complete the refund
//	@Description	Confirm the money movement of an initiated refund. Admin and system actors only.
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string								false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string								false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string								false	"Actor ID when header auth is allowed"
//	@Param			id				path		string								true	"Return order ID"							format(uuid)
//	@Param			request			body		returnsapp.CompleteRefundRequest	true	"Refund transaction"
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		403				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/complete-refund [post]
func (h *ReturnHandler) CompleteRefund(c *gin.Context) {
	withBody(h, c, h.machine.CompleteRefund)
}

// Close godoc
//
//	@ID				closeReturn
//	@Summary		Close a return
//	@Description	Settle a return without a refund confirmation
//	@Tags			returns
//	@Accept			json
//	@Produce		json
//	@Param			X-Vendor-ID		header		string							false	"Vendor scope when header auth is allowed"	format(uuid)
//	@Param			X-Actor-Type	header		string							false	"Actor type when header auth is allowed"	Enums(customer, vendor, admin, system)
//	@Param			X-Actor-ID		header		string							false	"Actor ID when header auth is allowed"
//	@Param			id				path		string							true	"Return order ID"							format(uuid)
//	@Param			request			body		returnsapp.CloseReturnRequest	false	"Closing note"
//	@Success		200				{object}	dto.Response{data=returnsapp.ReturnOrderResponse}
//	@Failure		400				{object}	dto.Response
//	@Failure		401				{object}	dto.Response
//	@Failure		404				{object}	dto.Response
//	@Failure		409				{object}	dto.Response
//	@Failure		500				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/returns/{id}/close [post]
func (h *ReturnHandler) Close(c *gin.Context) {
	withBody(h, c, h.machine.Close)
}
