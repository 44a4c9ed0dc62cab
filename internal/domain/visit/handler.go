package visit

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/auth"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
	"github.com/macmann/Thu-Kha-EMR/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	read.GET("/visits/:id", h.GetVisit)
	read.GET("/patients/:id/visits", h.ListPatientVisits)
	read.GET("/doctors/:id/visits", h.ListDoctorVisits)

	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor))
	clinical.POST("/visits/:id/diagnoses", h.AddDiagnosis)
	clinical.POST("/visits/:id/notes", h.AddNote)
}

func (h *Handler) GetVisit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	detail, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) ListPatientVisits(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListDoctorVisits(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type diagnosisRequest struct {
	Diagnosis string `json:"diagnosis"`
}

func (h *Handler) AddDiagnosis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var req diagnosisRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}
	d, err := h.svc.AddDiagnosis(c.Request().Context(), id, req.Diagnosis)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

type noteRequest struct {
	Body string `json:"body"`
}

func (h *Handler) AddNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}
	user := auth.UserFromContext(c.Request().Context())
	if user == nil {
		return httperr.Unauthorized("authentication required")
	}
	n, err := h.svc.AddNote(c.Request().Context(), id, user.ID, req.Body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}
