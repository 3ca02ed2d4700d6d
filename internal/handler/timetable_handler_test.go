package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/models"
	"github.com/smartcampus/timetable-api/internal/service"
)

type timetableGeneratorMock struct {
	capturedTerm string
}

func (m *timetableGeneratorMock) Generate(ctx context.Context, termID string) (*dto.GenerateTimetableResponse, error) {
	m.capturedTerm = termID
	return &dto.GenerateTimetableResponse{TermID: termID, PlacedCount: 12}, nil
}

type slotEditorMock struct {
	upserted dto.UpsertSlotRequest
	cleared  string
}

func (m *slotEditorMock) Upsert(ctx context.Context, termID string, req dto.UpsertSlotRequest) (*models.TimetableEntry, error) {
	m.upserted = req
	return &models.TimetableEntry{ID: "e1", TermID: termID}, nil
}

func (m *slotEditorMock) Clear(ctx context.Context, entryID string) error {
	m.cleared = entryID
	return nil
}

type timetableViewerMock struct{}

func (m *timetableViewerMock) ListEntries(ctx context.Context, termID string) ([]models.TimetableEntry, error) {
	return nil, nil
}

func (m *timetableViewerMock) Grid(ctx context.Context, termID, classID string) (*dto.TimetableGrid, error) {
	return &dto.TimetableGrid{TermID: termID, ClassID: classID}, nil
}

func (m *timetableViewerMock) Export(ctx context.Context, termID, classID string, format service.ExportFormat) ([]byte, string, string, error) {
	return []byte("Time,MON\n"), "timetable-10-a.csv", "text/csv", nil
}

func newTimetableRouter() (*gin.Engine, *timetableGeneratorMock, *slotEditorMock) {
	gin.SetMode(gin.TestMode)
	generator := &timetableGeneratorMock{}
	editor := &slotEditorMock{}
	h := &TimetableHandler{generator: generator, editor: editor, viewer: &timetableViewerMock{}}

	router := gin.New()
	router.POST("/terms/:termId/timetable/generate", h.Generate)
	router.GET("/terms/:termId/timetable/grid", h.Grid)
	router.GET("/terms/:termId/timetable/grid/export", h.Export)
	router.POST("/terms/:termId/timetable/slots", h.UpsertSlot)
	router.DELETE("/timetable/entries/:entryId", h.ClearEntry)
	return router, generator, editor
}

func TestTimetableGenerateEndpoint(t *testing.T) {
	router, generator, _ := newTimetableRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/terms/term-1/timetable/generate", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "term-1", generator.capturedTerm)
	require.Contains(t, w.Body.String(), `"placedCount":12`)
}

func TestTimetableGridRequiresClassID(t *testing.T) {
	router, _, _ := newTimetableRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/terms/term-1/timetable/grid", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableExportSetsDisposition(t *testing.T) {
	router, _, _ := newTimetableRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/terms/term-1/timetable/grid/export?classId=cls-1&format=csv", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "timetable-10-a.csv")
}

func TestTimetableUpsertSlot(t *testing.T) {
	router, _, editor := newTimetableRouter()

	payload := []byte(`{"day":1,"slotId":"s1","classId":"cls-1","subjectId":"sub-1","teacherId":"tch-1","classroomId":"room-1"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/terms/term-1/timetable/slots", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "s1", editor.upserted.SlotID)
	require.Equal(t, "cls-1", editor.upserted.ClassID)
}

func TestTimetableUpsertSlotRejectsMalformedJSON(t *testing.T) {
	router, _, _ := newTimetableRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/terms/term-1/timetable/slots", bytes.NewReader([]byte(`{"day":`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableClearEntry(t *testing.T) {
	router, _, editor := newTimetableRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/timetable/entries/e1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "e1", editor.cleared)
}
