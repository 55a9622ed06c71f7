package billing

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/billing"
	"github.com/clinicdesk/clinic-api/internal/middleware"
	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/httputil"
	"github.com/clinicdesk/clinic-api/pkg/validator"
)

// Handler exposes the appointment-billing lifecycle operations.
type Handler struct {
	engine    *billing.Service
	actors    *middleware.ActorMiddleware
	validator *validator.Validator
}

func NewHandler(engine *billing.Service, actors *middleware.ActorMiddleware, v *validator.Validator) *Handler {
	return &Handler{engine: engine, actors: actors, validator: v}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/appointments/:id/complete", h.actors.RequireRole(model.ActorRoleDoctor, model.ActorRoleAdmin), h.CompleteVisit)
	rg.POST("/appointments/:id/cancel", h.CancelAppointment)
	rg.POST("/bills/:id/pay", h.PayBill)
	rg.DELETE("/bills/:id", h.actors.RequireRole(model.ActorRoleDoctor, model.ActorRoleAdmin), h.CancelUnpaidBill)
	rg.GET("/me/appointments", h.actors.RequireRole(model.ActorRolePatient), h.MyAppointments)
}

func (h *Handler) CompleteVisit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	var req model.CompleteVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body"))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	billID, err := h.engine.CompleteVisit(c.Request.Context(), actor, id, req.TotalAmount, req.Prescription)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, gin.H{"bill_id": billID})
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized("not authenticated"))
		return
	}

	if err := h.engine.CancelAppointment(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"cancelled": id})
}

func (h *Handler) PayBill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid bill ID"))
		return
	}

	var req model.PayBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body"))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized("not authenticated"))
		return
	}

	if err := h.engine.Pay(c.Request.Context(), actor, id, req.Method, req.UPIRef); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"paid": id})
}

func (h *Handler) CancelUnpaidBill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid bill ID"))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	if err := h.engine.CancelUnpaidBill(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"voided": id})
}

// MyAppointments returns the calling patient's reconciled dashboard:
// every appointment paired with its matched bill, newest first.
func (h *Handler) MyAppointments(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized("not authenticated"))
		return
	}

	reconciled, err := h.engine.ReconcileForPatient(c.Request.Context(), actor, actor.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, reconciled)
}
