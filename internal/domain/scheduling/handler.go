package scheduling

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/auth"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
	"github.com/macmann/Thu-Kha-EMR/pkg/pagination"
	"github.com/macmann/Thu-Kha-EMR/pkg/timeutil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	book := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse))
	book.POST("/appointments", h.CreateAppointment)
	book.PUT("/appointments/:id", h.RescheduleAppointment)

	status := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse, auth.RoleDoctor))
	status.PATCH("/appointments/:id/status", h.UpdateStatus)

	read := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleNurse, auth.RoleDoctor))
	read.GET("/appointments", h.SearchAppointments)
	read.GET("/appointments/availability", h.DayAvailability)
	read.GET("/appointments/:id", h.GetAppointment)

	admin := api.Group("", auth.RequireRole(auth.RoleITAdmin))
	admin.PUT("/doctors/:id/availability", h.ReplaceAvailability)
	admin.GET("/doctors/:id/availability", h.ListAvailability)
	admin.POST("/doctors/:id/blackouts", h.CreateBlackout)
	admin.GET("/doctors/:id/blackouts", h.ListBlackouts)
}

type appointmentRequest struct {
	PatientID  uuid.UUID `json:"patientId"`
	DoctorID   uuid.UUID `json:"doctorId"`
	Department string    `json:"department"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime"`
	EndTime    string    `json:"endTime"`
	Reason     *string   `json:"reason"`
	Location   *string   `json:"location"`
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}
	date, err := timeutil.ToDateOnly(req.Date)
	if err != nil {
		return httperr.BadRequest("invalid date, expected YYYY-MM-DD")
	}
	startMin, err := timeutil.ToMinutes(req.StartTime)
	if err != nil {
		return httperr.BadRequest("invalid startTime, expected HH:MM")
	}
	endMin, err := timeutil.ToMinutes(req.EndTime)
	if err != nil {
		return httperr.BadRequest("invalid endTime, expected HH:MM")
	}

	appt, err := h.svc.CreateAppointment(c.Request().Context(), CreateAppointmentInput{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		Department:   req.Department,
		Date:         date,
		StartTimeMin: startMin,
		EndTimeMin:   endMin,
		Reason:       req.Reason,
		Location:     req.Location,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, appt)
}

type rescheduleRequest struct {
	PatientID *uuid.UUID `json:"patientId"`
	DoctorID  *uuid.UUID `json:"doctorId"`
	Date      *string    `json:"date"`
	StartTime *string    `json:"startTime"`
	EndTime   *string    `json:"endTime"`
	Reason    *string    `json:"reason"`
	Location  *string    `json:"location"`
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}

	in := UpdateAppointmentInput{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Reason:    req.Reason,
		Location:  req.Location,
	}
	if req.Date != nil {
		date, err := timeutil.ToDateOnly(*req.Date)
		if err != nil {
			return httperr.BadRequest("invalid date, expected YYYY-MM-DD")
		}
		in.Date = &date
	}
	if req.StartTime != nil {
		startMin, err := timeutil.ToMinutes(*req.StartTime)
		if err != nil {
			return httperr.BadRequest("invalid startTime, expected HH:MM")
		}
		in.StartTimeMin = &startMin
	}
	if req.EndTime != nil {
		endMin, err := timeutil.ToMinutes(*req.EndTime)
		if err != nil {
			return httperr.BadRequest("invalid endTime, expected HH:MM")
		}
		in.EndTimeMin = &endMin
	}

	appt, err := h.svc.RescheduleAppointment(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

type statusRequest struct {
	Status       AppointmentStatus `json:"status"`
	Reason       *string           `json:"reason"`
	CancelReason *string           `json:"cancelReason"`
}

type statusResponse struct {
	Appointment *Appointment `json:"appointment"`
	VisitID     *uuid.UUID   `json:"visitId,omitempty"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}
	change, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status, req.Reason, req.CancelReason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Appointment: change.Appointment, VisitID: change.VisitID})
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) SearchAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, key := range []string{"patient", "doctor"} {
		if v := c.QueryParam(key); v != "" {
			if _, err := uuid.Parse(v); err != nil {
				return httperr.BadRequest(fmt.Sprintf("invalid %s id", key))
			}
			params[key] = v
		}
	}
	if v := c.QueryParam("status"); v != "" {
		params["status"] = v
	}
	if v := c.QueryParam("date"); v != "" {
		if _, err := timeutil.ToDateOnly(v); err != nil {
			return httperr.BadRequest("invalid date, expected YYYY-MM-DD")
		}
		params["date"] = v
	}
	items, total, err := h.svc.SearchAppointments(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DayAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctorId"))
	if err != nil {
		return httperr.BadRequest("doctorId is required")
	}
	date, err := timeutil.ToDateOnly(c.QueryParam("date"))
	if err != nil {
		return httperr.BadRequest("invalid date, expected YYYY-MM-DD")
	}
	day, err := h.svc.DayAvailabilityFor(c.Request().Context(), doctorID, date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, day)
}

type availabilityRequest struct {
	Windows []*AvailabilityWindow `json:"windows"`
}

func (h *Handler) ReplaceAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}
	if err := h.svc.ReplaceAvailability(c.Request().Context(), doctorID, req.Windows); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, req.Windows)
}

func (h *Handler) ListAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	items, err := h.svc.ListAvailability(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateBlackout(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var b Blackout
	if err := c.Bind(&b); err != nil {
		return httperr.BadRequest(err.Error())
	}
	b.DoctorID = doctorID
	if err := h.svc.CreateBlackout(c.Request().Context(), &b); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBlackouts(c echo.Context) error {
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	items, err := h.svc.ListBlackouts(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
