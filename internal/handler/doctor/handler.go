package doctor

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-api/internal/billing"
	"github.com/clinicdesk/clinic-api/internal/middleware"
	"github.com/clinicdesk/clinic-api/internal/model"
	"github.com/clinicdesk/clinic-api/internal/service/doctor"
	"github.com/clinicdesk/clinic-api/internal/worker"
	"github.com/clinicdesk/clinic-api/pkg/errors"
	"github.com/clinicdesk/clinic-api/pkg/httputil"
	"github.com/clinicdesk/clinic-api/pkg/validator"
)

type Handler struct {
	service   *doctor.Service
	engine    *billing.Service
	sweeper   *worker.BillSweeper
	actors    *middleware.ActorMiddleware
	validator *validator.Validator
}

func NewHandler(
	service *doctor.Service,
	engine *billing.Service,
	sweeper *worker.BillSweeper,
	actors *middleware.ActorMiddleware,
	v *validator.Validator,
) *Handler {
	return &Handler{service: service, engine: engine, sweeper: sweeper, actors: actors, validator: v}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	doctors := rg.Group("/doctors")
	{
		doctors.GET("", h.List)
		doctors.POST("", h.actors.RequireRole(model.ActorRoleAdmin), h.Create)
		doctors.PATCH("/:id/availability", h.actors.RequireRole(model.ActorRoleDoctor, model.ActorRoleAdmin), h.SetAvailability)
		doctors.GET("/:id/appointments", h.actors.RequireRole(model.ActorRoleDoctor, model.ActorRoleAdmin), h.Appointments)
	}
}

func (h *Handler) List(c *gin.Context) {
	doctors, err := h.service.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body"))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

func (h *Handler) SetAvailability(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid doctor ID"))
		return
	}

	actor, _ := middleware.ActorFromContext(c)
	if actor.IsDoctor() && actor.ID != id {
		httputil.RespondWithError(c, errors.Forbidden("cannot change another doctor's availability"))
		return
	}

	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid request body"))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.service.SetAvailability(c.Request.Context(), id, *req.IsAvailable); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id, "is_available": *req.IsAvailable})
}

// Appointments returns the doctor's reconciled schedule. Loading the
// schedule also kicks off a background sweep of the doctor's stale unpaid
// bills; the response never waits on it.
func (h *Handler) Appointments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid doctor ID"))
		return
	}

	filter, err := billing.ParseDoctorFilter(c.Query("filter"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized("not authenticated"))
		return
	}
	if actor.IsDoctor() && actor.ID != id {
		httputil.RespondWithError(c, errors.Forbidden("cannot view another doctor's schedule"))
		return
	}

	reconciled, err := h.engine.ReconcileForDoctor(c.Request.Context(), actor, id, filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.sweeper.SweepDoctorAsync(id)

	httputil.RespondWithSuccess(c, reconciled)
}
