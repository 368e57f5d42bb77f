package linkage

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ehr/reportlink/internal/platform/auth"
)

// maxUploadSize caps one uploaded report.
const maxUploadSize = 10 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	upload := api.Group("", auth.RequireCapability(auth.Role.CanUploadReports, "upload reports"))
	upload.POST("/reports", h.UploadReport)
	upload.POST("/match", h.MatchPatient)
}

// UploadReport accepts a multipart "file" field holding an .hl7 or .pdf
// report. The file is staged in a temp dir so both parsers read from disk.
func (h *Handler) UploadReport(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "report exceeds 10MB")
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "reportlink-upload-*")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "report"+filepath.Ext(filepath.Base(fh.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := io.Copy(dst, io.LimitReader(src, maxUploadSize)); err != nil {
		dst.Close()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := dst.Close(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	fuzzy, _ := strconv.ParseBool(c.QueryParam("fuzzy"))
	out, err := h.svc.Ingest(c.Request().Context(), auth.SessionFromEcho(c), path, IngestOptions{Fuzzy: fuzzy})
	return respond(c, out, err)
}

type matchRequest struct {
	MRN   string `json:"mrn"`
	Name  string `json:"name"`
	DOB   string `json:"dob"`
	Fuzzy bool   `json:"fuzzy"`
}

type matchResponse struct {
	MatchResult
	PatientID string `json:"patientID,omitempty"`
}

func (h *Handler) MatchPatient(c echo.Context) error {
	var req matchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Match(c.Request().Context(), auth.SessionFromEcho(c), req.MRN, req.Name, req.DOB, req.Fuzzy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, matchResponse{MatchResult: res, PatientID: res.PatientID()})
}

// respond writes the outcome with a status describing how far the ingest
// got. Parse diagnostics and match scores are returned on failure too.
func respond(c echo.Context, out *Outcome, err error) error {
	if out == nil {
		return httpError(err)
	}
	switch {
	case err == nil && out.Duplicate:
		return c.JSON(http.StatusOK, out)
	case err == nil:
		return c.JSON(http.StatusCreated, out)
	case errors.Is(err, ErrParseFailed):
		return c.JSON(http.StatusUnprocessableEntity, out)
	case errors.Is(err, ErrNoMatch):
		return c.JSON(http.StatusNotFound, out)
	}
	return httpError(err)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrUnsupportedFileType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
