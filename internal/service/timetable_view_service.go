package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
	"github.com/smartcampus/timetable-api/pkg/export"
	"github.com/smartcampus/timetable-api/pkg/jobs"
	"github.com/smartcampus/timetable-api/pkg/storage"
)

// ExportFormat names a supported grid download encoding.
type ExportFormat string

const (
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

const warmJobType = "grid-warm"

type viewTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type viewClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type viewSlotSource interface {
	ListByTerm(ctx context.Context, termID string) ([]models.TemplateSlot, error)
}

type viewEntrySource interface {
	ListByTerm(ctx context.Context, termID string) ([]models.TimetableEntry, error)
	ListDetailByClass(ctx context.Context, termID, classID string) ([]models.TimetableEntryDetail, error)
}

type gridCacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type warmJobPayload struct {
	TermID  string
	ClassID string
}

// TimetableViewService renders per-class grids, serves whole-term entry
// listings and encodes grid downloads. Rendered grids live in Redis
// until an edit or regeneration invalidates them; invalidated terms are
// re-warmed through a background queue.
type TimetableViewService struct {
	terms   viewTermReader
	classes viewClassReader
	slots   viewSlotSource
	entries viewEntrySource
	cache   gridCacheStore
	metrics *MetricsService
	days    []int
	ttl     time.Duration
	queue   *jobs.Queue
	pdf     *export.PDFExporter
	csv     *export.CSVExporter
	xlsx    *export.XLSXExporter
	archive *storage.ExportArchive
	logger  *zap.Logger
}

// TimetableViewConfig tunes caching and warm-up behaviour.
type TimetableViewConfig struct {
	WorkingDays []int
	GridTTL     time.Duration
	WarmWorkers int
	// ExportDir, when set, keeps an on-disk copy of every rendered
	// download under this directory.
	ExportDir string
}

// NewTimetableViewService wires view dependencies.
func NewTimetableViewService(
	terms viewTermReader,
	classes viewClassReader,
	slots viewSlotSource,
	entries viewEntrySource,
	cache gridCacheStore,
	metrics *MetricsService,
	cfg TimetableViewConfig,
	logger *zap.Logger,
) *TimetableViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GridTTL <= 0 {
		cfg.GridTTL = 10 * time.Minute
	}
	if cfg.WarmWorkers <= 0 {
		cfg.WarmWorkers = 2
	}

	s := &TimetableViewService{
		terms:   terms,
		classes: classes,
		slots:   slots,
		entries: entries,
		cache:   cache,
		metrics: metrics,
		days:    normalizeWorkingDays(cfg.WorkingDays),
		ttl:     cfg.GridTTL,
		pdf:     export.NewPDFExporter(),
		csv:     export.NewCSVExporter(),
		xlsx:    export.NewXLSXExporter(),
		logger:  logger,
	}
	if cfg.ExportDir != "" {
		archive, err := storage.NewExportArchive(cfg.ExportDir)
		if err != nil {
			logger.Warn("export archive disabled", zap.String("dir", cfg.ExportDir), zap.Error(err))
		} else {
			s.archive = archive
		}
	}
	s.queue = jobs.NewQueue(warmJobType, s.handleWarmJob, jobs.QueueConfig{
		Workers: cfg.WarmWorkers,
		Logger:  logger,
	})
	return s
}

// Start launches the warm-up workers.
func (s *TimetableViewService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the warm-up workers.
func (s *TimetableViewService) Stop() {
	s.queue.Stop()
}

// ListEntries returns every entry of a term.
func (s *TimetableViewService) ListEntries(ctx context.Context, termID string) ([]models.TimetableEntry, error) {
	if _, err := s.terms.FindByID(ctx, termID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	entries, err := s.entries.ListByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable entries")
	}
	return entries, nil
}

// Grid returns one class's week view, from cache when warm.
func (s *TimetableViewService) Grid(ctx context.Context, termID, classID string) (*dto.TimetableGrid, error) {
	key := gridCacheKey(termID, classID)
	if s.cache != nil {
		var cached dto.TimetableGrid
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("grid cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
	}

	grid, err := s.buildGrid(ctx, termID, classID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, grid, s.ttl); err != nil {
			s.logger.Warn("grid cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return grid, nil
}

// Export encodes a class grid in the requested format and returns the
// payload with its filename and content type.
func (s *TimetableViewService) Export(ctx context.Context, termID, classID string, format ExportFormat) ([]byte, string, string, error) {
	grid, err := s.Grid(ctx, termID, classID)
	if err != nil {
		return nil, "", "", err
	}

	dataset := gridDataset(grid)
	title := fmt.Sprintf("Timetable %s", grid.ClassName)
	base := fmt.Sprintf("timetable-%s", strings.ReplaceAll(strings.ToLower(grid.ClassName), " ", "-"))

	var (
		payload     []byte
		filename    string
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		filename, contentType = base+".pdf", "application/pdf"
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		filename, contentType = base+".csv", "text/csv"
	case ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, grid.ClassName)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render xlsx")
		}
		filename, contentType = base+".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	if s.archive != nil {
		if _, err := s.archive.Save(termID, filename, payload); err != nil {
			s.logger.Warn("export archive copy failed", zap.String("term_id", termID), zap.Error(err))
		}
	}
	return payload, filename, contentType, nil
}

// InvalidateGrid drops one class's cached grid.
func (s *TimetableViewService) InvalidateGrid(ctx context.Context, termID, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, gridCacheKey(termID, classID)); err != nil {
		s.logger.Warn("grid cache invalidation failed", zap.String("term_id", termID), zap.String("class_id", classID), zap.Error(err))
	}
}

// InvalidateTerm drops every cached grid of a term.
func (s *TimetableViewService) InvalidateTerm(ctx context.Context, termID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, gridCachePattern(termID)); err != nil {
		s.logger.Warn("term cache invalidation failed", zap.String("term_id", termID), zap.Error(err))
	}
}

// WarmTerm queues cache warm-up for the given classes. Best effort; a
// dropped warm job only means the first uncached read builds the grid
// inline.
func (s *TimetableViewService) WarmTerm(termID string, classIDs []string) {
	if s.cache == nil {
		return
	}
	for _, classID := range classIDs {
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    warmJobType,
			Payload: warmJobPayload{TermID: termID, ClassID: classID},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue grid warm job", zap.String("term_id", termID), zap.String("class_id", classID), zap.Error(err))
			return
		}
	}
}

func (s *TimetableViewService) handleWarmJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(warmJobPayload)
	if !ok {
		return fmt.Errorf("unexpected warm payload %T", job.Payload)
	}
	_, err := s.Grid(ctx, payload.TermID, payload.ClassID)
	return err
}

func (s *TimetableViewService) buildGrid(ctx context.Context, termID, classID string) (*dto.TimetableGrid, error) {
	if _, err := s.terms.FindByID(ctx, termID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	slots, err := s.slots.ListByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot template")
	}
	entries, err := s.entries.ListDetailByClass(ctx, termID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class entries")
	}

	grid := &dto.TimetableGrid{
		TermID:    termID,
		ClassID:   classID,
		ClassName: class.Name,
		Days:      s.days,
		Slots:     make([]dto.GridSlot, 0, len(slots)),
		Cells:     make(map[string]map[string][]dto.GridCell),
	}
	for _, slot := range slots {
		gs := dto.GridSlot{SlotID: slot.ID, Label: slot.Label(), IsBreak: slot.IsBreak}
		if slot.BreakName != nil {
			gs.BreakName = *slot.BreakName
		}
		grid.Slots = append(grid.Slots, gs)
	}
	for _, day := range s.days {
		grid.Cells[models.DayName(day)] = make(map[string][]dto.GridCell)
	}
	for _, entry := range entries {
		dayName := models.DayName(entry.Day)
		if grid.Cells[dayName] == nil {
			grid.Cells[dayName] = make(map[string][]dto.GridCell)
		}
		grid.Cells[dayName][entry.SlotID] = append(grid.Cells[dayName][entry.SlotID], dto.GridCell{
			EntryID:       entry.ID,
			CourseID:      entry.CourseID,
			SubjectName:   entry.SubjectName,
			SubjectCode:   entry.SubjectCode,
			TeacherName:   entry.TeacherName,
			ClassroomName: entry.ClassroomName,
			Batch:         entry.Batch,
			IsLab:         entry.IsLab,
		})
	}
	return grid, nil
}

func gridDataset(grid *dto.TimetableGrid) export.Dataset {
	headers := make([]string, 0, len(grid.Days)+1)
	headers = append(headers, "Time")
	for _, day := range grid.Days {
		headers = append(headers, models.DayName(day))
	}

	rows := make([]map[string]string, 0, len(grid.Slots))
	for _, slot := range grid.Slots {
		row := map[string]string{"Time": slot.Label}
		if slot.IsBreak {
			label := slot.BreakName
			if label == "" {
				label = "Break"
			}
			for _, day := range grid.Days {
				row[models.DayName(day)] = label
			}
			rows = append(rows, row)
			continue
		}
		for _, day := range grid.Days {
			dayName := models.DayName(day)
			cells := grid.Cells[dayName][slot.SlotID]
			parts := make([]string, 0, len(cells))
			for _, cell := range cells {
				text := fmt.Sprintf("%s\n%s\n%s", cell.SubjectName, cell.TeacherName, cell.ClassroomName)
				if cell.Batch != models.BatchWhole {
					text += fmt.Sprintf(" (%s)", cell.Batch)
				}
				parts = append(parts, text)
			}
			row[dayName] = strings.Join(parts, "\n")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func gridCacheKey(termID, classID string) string {
	return fmt.Sprintf("timetable:grid:%s:%s", termID, classID)
}

func gridCachePattern(termID string) string {
	return fmt.Sprintf("timetable:grid:%s:*", termID)
}
