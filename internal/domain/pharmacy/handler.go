package pharmacy

import (
	"net/http"
	"strings"

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
	catalog := api.Group("", auth.RequireRole(auth.RoleITAdmin))
	catalog.POST("/pharmacy/drugs", h.CreateDrug)

	inventory := api.Group("", auth.RequireRole(auth.RoleInventoryManager, auth.RolePharmacist))
	inventory.POST("/pharmacy/inventory/receive", h.ReceiveStock)
	inventory.GET("/pharmacy/drugs/:id/stock", h.ListStock)

	prescribe := api.Group("", auth.RequireRole(auth.RoleDoctor))
	prescribe.POST("/visits/:visitId/prescriptions", h.CreatePrescription)

	pharmacist := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RolePharmacyTech))
	pharmacist.GET("/pharmacy/drugs", h.SearchDrugs)
	pharmacist.GET("/pharmacy/prescriptions", h.PharmacyQueue)
	pharmacist.GET("/pharmacy/prescriptions/:id", h.GetPrescription)
	pharmacist.GET("/pharmacy/allocation", h.AllocatePlan)
	pharmacist.POST("/pharmacy/prescriptions/:id/dispenses", h.StartDispense)
	pharmacist.POST("/pharmacy/dispenses/:id/items", h.AddDispenseItem)

	complete := api.Group("", auth.RequireRole(auth.RolePharmacist))
	complete.PATCH("/pharmacy/dispenses/:id/complete", h.CompleteDispense)
}

func (h *Handler) CreateDrug(c echo.Context) error {
	var d Drug
	if err := c.Bind(&d); err != nil {
		return httperr.BadRequest(err.Error())
	}
	if err := h.svc.CreateDrug(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) SearchDrugs(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") != "false"
	items, total, err := h.svc.SearchDrugs(c.Request().Context(), c.QueryParam("q"), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type receiveStockLine struct {
	DrugID     uuid.UUID `json:"drugId"`
	BatchNo    *string   `json:"batchNo"`
	ExpiryDate *string   `json:"expiryDate"`
	Location   string    `json:"location"`
	QtyOnHand  int       `json:"qtyOnHand"`
	UnitCost   *float64  `json:"unitCost"`
}

type receiveStockRequest struct {
	Items []receiveStockLine `json:"items"`
}

func (h *Handler) ReceiveStock(c echo.Context) error {
	var req receiveStockRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}
	items := make([]*StockItem, 0, len(req.Items))
	for _, line := range req.Items {
		item := &StockItem{
			DrugID:    line.DrugID,
			BatchNo:   line.BatchNo,
			Location:  line.Location,
			QtyOnHand: line.QtyOnHand,
			UnitCost:  line.UnitCost,
		}
		if line.ExpiryDate != nil {
			expiry, err := timeutil.ToDateOnly(*line.ExpiryDate)
			if err != nil {
				return httperr.BadRequest("invalid expiryDate, expected YYYY-MM-DD")
			}
			item.ExpiryDate = &expiry
		}
		items = append(items, item)
	}
	if err := h.svc.ReceiveStock(c.Request().Context(), items); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string][]*StockItem{"items": items})
}

func (h *Handler) ListStock(c echo.Context) error {
	drugID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	items, err := h.svc.ListStock(c.Request().Context(), drugID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AllocatePlan(c echo.Context) error {
	drugID, err := uuid.Parse(c.QueryParam("drugId"))
	if err != nil {
		return httperr.BadRequest("drugId is required")
	}
	location := c.QueryParam("location")
	if location == "" {
		return httperr.BadRequest("location is required")
	}
	var qty int
	if err := echo.QueryParamsBinder(c).Int("qty", &qty).BindError(); err != nil {
		return httperr.BadRequest("qty must be an integer")
	}
	plan, err := h.svc.AllocatePlan(c.Request().Context(), drugID, location, qty)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	visitID, err := uuid.Parse(c.Param("visitId"))
	if err != nil {
		return httperr.BadRequest("invalid visit id")
	}
	var in CreatePrescriptionInput
	if err := c.Bind(&in); err != nil {
		return httperr.BadRequest(err.Error())
	}

	var actorDoctorID *uuid.UUID
	if user := auth.UserFromContext(c.Request().Context()); user != nil {
		actorDoctorID = user.DoctorID
	}

	result, err := h.svc.CreatePrescription(c.Request().Context(), visitID, actorDoctorID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PharmacyQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	var statuses []string
	if raw := c.QueryParam("status"); raw != "" {
		statuses = strings.Split(raw, ",")
	}
	items, total, err := h.svc.PharmacyQueue(c.Request().Context(), statuses, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) StartDispense(c echo.Context) error {
	prescriptionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	user := auth.UserFromContext(c.Request().Context())
	if user == nil {
		return httperr.Unauthorized("authentication required")
	}
	d, err := h.svc.StartDispense(c.Request().Context(), prescriptionID, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) AddDispenseItem(c echo.Context) error {
	dispenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var in DispenseItemInput
	if err := c.Bind(&in); err != nil {
		return httperr.BadRequest(err.Error())
	}
	item, err := h.svc.AddDispenseItem(c.Request().Context(), dispenseID, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, item)
}

type completeDispenseRequest struct {
	Status DispenseStatus `json:"status"`
}

func (h *Handler) CompleteDispense(c echo.Context) error {
	dispenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httperr.BadRequest("invalid id")
	}
	var req completeDispenseRequest
	if err := c.Bind(&req); err != nil {
		return httperr.BadRequest(err.Error())
	}
	result, err := h.svc.CompleteDispense(c.Request().Context(), dispenseID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
