package patient

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/reportlink/internal/platform/auth"
	"github.com/ehr/reportlink/internal/platform/reporting"
	"github.com/ehr/reportlink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	doctor := api.Group("", auth.RequireCapability(auth.Role.CanViewDashboard, "view patients"))
	doctor.GET("/patients", h.ListPatients)
	doctor.POST("/patients", h.CreatePatient)
	doctor.GET("/patients/search", h.SearchPatients)
	doctor.GET("/patients/:id", h.GetPatient)
	doctor.GET("/patients/:id/hl7", h.ExportHL7)
	doctor.GET("/transmissions", h.ListTransmissions)
	doctor.GET("/transmissions/export", h.ExportTransmissions)
}

type createRequest struct {
	MRN  string `json:"mrn"`
	Name string `json:"name"`
	DOB  string `json:"dob"`
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), auth.SessionFromEcho(c), req.MRN, req.Name, req.DOB)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), auth.SessionFromEcho(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	patients, err := h.svc.ListForDoctor(c.Request().Context(), auth.SessionFromEcho(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(pagination.FromContext(c), summaries(patients)))
}

func (h *Handler) SearchPatients(c echo.Context) error {
	patients, err := h.svc.SearchForDoctor(c.Request().Context(), auth.SessionFromEcho(c), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(pagination.FromContext(c), summaries(patients)))
}

func (h *Handler) ListTransmissions(c echo.Context) error {
	recent, err := h.svc.RecentTransmissions(c.Request().Context(), auth.SessionFromEcho(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(pagination.FromContext(c), recent))
}

func (h *Handler) ExportTransmissions(c echo.Context) error {
	data, err := h.svc.ExportTransmissions(c.Request().Context(), auth.SessionFromEcho(c))
	if err != nil {
		return httpError(err)
	}
	name := "transmissions-" + time.Now().UTC().Format("20060102") + ".xlsx"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, reporting.ContentTypeXLSX, data)
}

func (h *Handler) ExportHL7(c echo.Context) error {
	data, err := h.svc.TransmissionHL7(c.Request().Context(), auth.SessionFromEcho(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, "x-application/hl7-v2+er7", data)
}

func summaries(patients []*Patient) []Summary {
	out := make([]Summary, 0, len(patients))
	for _, p := range patients {
		out = append(out, p.Summary())
	}
	return out
}

func httpError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateMRN):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidMRN), errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrInvalidDOB), errors.Is(err, ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
