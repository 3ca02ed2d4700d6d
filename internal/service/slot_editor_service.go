package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

type editorEntryRepository interface {
	ListByTermDaySlot(ctx context.Context, termID string, day int, slotID string) ([]models.TimetableEntry, error)
	CountByCourseBatch(ctx context.Context, termID, courseID, batch string) (int, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Delete(ctx context.Context, id string) error
}

type editorSlotReader interface {
	FindByID(ctx context.Context, id string) (*models.TemplateSlot, error)
}

type editorCourseResolver interface {
	FindByAssignment(ctx context.Context, classID, subjectID, teacherID string) (*models.Course, error)
}

type editorClassroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type editorGridCache interface {
	InvalidateGrid(ctx context.Context, termID, classID string)
}

// SlotEditorService applies manual single-cell timetable changes. Each
// edit validates against a conflict index built from the rows currently
// occupying the target (term, day, slot); an edit either fully lands or
// leaves the timetable untouched.
type SlotEditorService struct {
	entries    editorEntryRepository
	slots      editorSlotReader
	courses    editorCourseResolver
	classrooms editorClassroomReader
	grids      editorGridCache
	gate       *termLockGate
	cells      *slotMutexes
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSlotEditorService wires editor dependencies. The gate must be the
// same instance the generator uses so edits are rejected mid-run.
func NewSlotEditorService(
	entries editorEntryRepository,
	slots editorSlotReader,
	courses editorCourseResolver,
	classrooms editorClassroomReader,
	grids editorGridCache,
	gate *termLockGate,
	validate *validator.Validate,
	logger *zap.Logger,
) *SlotEditorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = newTermLockGate()
	}
	return &SlotEditorService{
		entries:    entries,
		slots:      slots,
		courses:    courses,
		classrooms: classrooms,
		grids:      grids,
		gate:       gate,
		cells:      newSlotMutexes(),
		validator:  validate,
		logger:     logger,
	}
}

// Upsert places a session into a cell, or moves an existing entry there
// when req.EntryID is set. The moved entry's old occupancy is released
// before conflicts are checked, so moving within a slot never collides
// with itself.
func (s *SlotEditorService) Upsert(ctx context.Context, termID string, req dto.UpsertSlotRequest) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	release, ok := s.gate.TryEdit(termID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrGenerationBusy, "timetable is being regenerated, retry shortly")
	}
	defer release()

	unlock := s.cells.Lock(cellKey(termID, req.Day, req.SlotID))
	defer unlock()

	slot, err := s.slots.FindByID(ctx, req.SlotID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "template slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template slot")
	}
	if slot.TermID != termID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "template slot belongs to another term")
	}
	if slot.IsBreak {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot place a session on a break slot")
	}

	course, err := s.courses.FindByAssignment(ctx, req.ClassID, req.SubjectID, req.TeacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no course matches this class, subject and teacher")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve course")
	}

	batch, err := normalizeEntryBatch(course, req.Batch)
	if err != nil {
		return nil, err
	}

	room, err := s.classrooms.FindByID(ctx, req.ClassroomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if room.IsLab != course.IsLab {
		return nil, appErrors.Clone(appErrors.ErrCapabilityMismatch, capabilityMessage(course.IsLab))
	}

	var existing *models.TimetableEntry
	if req.EntryID != "" {
		existing, err = s.entries.FindByID(ctx, req.EntryID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
		}
		if existing.TermID != termID {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "entry belongs to another term")
		}
	}

	placed, err := s.entries.CountByCourseBatch(ctx, termID, course.ID, batch)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course sessions")
	}
	if existing != nil && existing.CourseID == course.ID && existing.Batch == batch {
		// Moving a session keeps the count flat.
		placed--
	}
	if placed >= course.WeeklyLectures {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course already has its weekly lecture count")
	}

	occupants, err := s.entries.ListByTermDaySlot(ctx, termID, req.Day, req.SlotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot occupancy")
	}

	index := NewAvailabilityIndex()
	index.Load(occupants)
	if existing != nil && existing.Day == req.Day && existing.SlotID == req.SlotID {
		index.Release(existing)
	}

	candidate := &models.TimetableEntry{
		TermID:      termID,
		ClassID:     req.ClassID,
		CourseID:    course.ID,
		SubjectID:   req.SubjectID,
		TeacherID:   req.TeacherID,
		ClassroomID: req.ClassroomID,
		Day:         req.Day,
		SlotID:      req.SlotID,
		Batch:       batch,
	}
	if err := index.Commit(candidate); err != nil {
		return nil, err
	}

	if existing != nil {
		candidate.ID = existing.ID
		candidate.CreatedAt = existing.CreatedAt
		if err := s.entries.Update(ctx, candidate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move timetable entry")
		}
	} else {
		if err := s.entries.Create(ctx, candidate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable entry")
		}
	}

	if s.grids != nil {
		s.grids.InvalidateGrid(ctx, termID, req.ClassID)
		if existing != nil && existing.ClassID != req.ClassID {
			s.grids.InvalidateGrid(ctx, termID, existing.ClassID)
		}
	}
	s.logger.Info("slot upserted",
		zap.String("term_id", termID),
		zap.String("entry_id", candidate.ID),
		zap.Int("day", req.Day),
		zap.String("slot_id", req.SlotID),
	)
	return candidate, nil
}

// Clear removes a single entry from the timetable.
func (s *SlotEditorService) Clear(ctx context.Context, entryID string) error {
	if entryID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "entry id is required")
	}

	entry, err := s.entries.FindByID(ctx, entryID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}

	release, ok := s.gate.TryEdit(entry.TermID)
	if !ok {
		return appErrors.Clone(appErrors.ErrGenerationBusy, "timetable is being regenerated, retry shortly")
	}
	defer release()

	unlock := s.cells.Lock(cellKey(entry.TermID, entry.Day, entry.SlotID))
	defer unlock()

	if err := s.entries.Delete(ctx, entryID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable entry")
	}

	if s.grids != nil {
		s.grids.InvalidateGrid(ctx, entry.TermID, entry.ClassID)
	}
	s.logger.Info("slot cleared", zap.String("term_id", entry.TermID), zap.String("entry_id", entryID))
	return nil
}

// normalizeEntryBatch resolves the stored batch key for an edit. Theory
// sessions always occupy the whole class; lab batch keys must stay
// inside the course's declared batch count.
func normalizeEntryBatch(course *models.Course, raw string) (string, error) {
	if raw == "" || raw == models.BatchWhole {
		return models.BatchWhole, nil
	}
	if !course.IsLab {
		return "", appErrors.Clone(appErrors.ErrValidation, "theory sessions are taught to the whole class, batch must be empty")
	}
	if !strings.HasPrefix(raw, "B") {
		return "", appErrors.Clone(appErrors.ErrValidation, batchRangeMessage(course.BatchCount))
	}
	n, err := strconv.Atoi(raw[1:])
	if err != nil || n < 1 || n > course.BatchCount {
		return "", appErrors.Clone(appErrors.ErrValidation, batchRangeMessage(course.BatchCount))
	}
	return raw, nil
}

func batchRangeMessage(count int) string {
	return fmt.Sprintf("batch must be one of B1..B%d", count)
}

func cellKey(termID string, day int, slotID string) string {
	return fmt.Sprintf("%s/%d/%s", termID, day, slotID)
}

func capabilityMessage(needLab bool) string {
	if needLab {
		return "lab sessions require a lab classroom"
	}
	return "theory sessions require a regular classroom"
}
