package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/models"
	"github.com/smartcampus/timetable-api/internal/service"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
	"github.com/smartcampus/timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, termID string) (*dto.GenerateTimetableResponse, error)
}

type slotEditor interface {
	Upsert(ctx context.Context, termID string, req dto.UpsertSlotRequest) (*models.TimetableEntry, error)
	Clear(ctx context.Context, entryID string) error
}

type timetableViewer interface {
	ListEntries(ctx context.Context, termID string) ([]models.TimetableEntry, error)
	Grid(ctx context.Context, termID, classID string) (*dto.TimetableGrid, error)
	Export(ctx context.Context, termID, classID string, format service.ExportFormat) ([]byte, string, string, error)
}

// TimetableHandler exposes generation, grid and slot editing endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	editor    slotEditor
	viewer    timetableViewer
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator *service.TimetableGeneratorService, editor *service.SlotEditorService, viewer *service.TimetableViewService) *TimetableHandler {
	return &TimetableHandler{generator: generator, editor: editor, viewer: viewer}
}

// Generate godoc
// @Summary Generate the timetable for a term
// @Description Replaces all existing entries of the term with a freshly computed timetable. Sessions that could not be placed are reported with a reason code.
// @Tags Timetable
// @Produce json
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{termId}/timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	result, err := h.generator.Generate(c.Request.Context(), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListEntries godoc
// @Summary List all timetable entries of a term
// @Tags Timetable
// @Produce json
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{termId}/timetable [get]
func (h *TimetableHandler) ListEntries(c *gin.Context) {
	entries, err := h.viewer.ListEntries(c.Request.Context(), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Grid godoc
// @Summary Get the weekly grid of a class
// @Tags Timetable
// @Produce json
// @Param termId path string true "Term ID"
// @Param classId query string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{termId}/timetable/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId query parameter is required"))
		return
	}
	grid, err := h.viewer.Grid(c.Request.Context(), c.Param("termId"), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}

// Export godoc
// @Summary Export the weekly grid of a class
// @Description Renders the grid as a downloadable file. Supported formats: pdf, csv, xlsx.
// @Tags Timetable
// @Produce octet-stream
// @Param termId path string true "Term ID"
// @Param classId query string true "Class ID"
// @Param format query string true "Export format (pdf, csv, xlsx)"
// @Success 200 {file} binary
// @Router /terms/{termId}/timetable/grid/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	classID := c.Query("classId")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId query parameter is required"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatPDF)))
	payload, filename, contentType, err := h.viewer.Export(c.Request.Context(), c.Param("termId"), classID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// UpsertSlot godoc
// @Summary Place or move a session in a timetable cell
// @Tags Timetable
// @Accept json
// @Produce json
// @Param termId path string true "Term ID"
// @Param payload body dto.UpsertSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Router /terms/{termId}/timetable/slots [post]
func (h *TimetableHandler) UpsertSlot(c *gin.Context) {
	var req dto.UpsertSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}
	entry, err := h.editor.Upsert(c.Request.Context(), c.Param("termId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// ClearEntry godoc
// @Summary Remove a single timetable entry
// @Tags Timetable
// @Param entryId path string true "Entry ID"
// @Success 204
// @Router /timetable/entries/{entryId} [delete]
func (h *TimetableHandler) ClearEntry(c *gin.Context) {
	if err := h.editor.Clear(c.Request.Context(), c.Param("entryId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
