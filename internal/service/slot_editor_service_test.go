package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

type stubEntryRepo struct {
	items   map[string]*models.TimetableEntry
	nextID  string
	deleted []string
}

func (m *stubEntryRepo) ListByTermDaySlot(ctx context.Context, termID string, day int, slotID string) ([]models.TimetableEntry, error) {
	var out []models.TimetableEntry
	for _, entry := range m.items {
		if entry.TermID == termID && entry.Day == day && entry.SlotID == slotID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *stubEntryRepo) CountByCourseBatch(ctx context.Context, termID, courseID, batch string) (int, error) {
	count := 0
	for _, entry := range m.items {
		if entry.TermID == termID && entry.CourseID == courseID && entry.Batch == batch {
			count++
		}
	}
	return count, nil
}

func (m *stubEntryRepo) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	if entry, ok := m.items[id]; ok {
		cp := *entry
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubEntryRepo) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if m.items == nil {
		m.items = make(map[string]*models.TimetableEntry)
	}
	if entry.ID == "" {
		if m.nextID == "" {
			m.nextID = "generated"
		}
		entry.ID = m.nextID
	}
	cp := *entry
	m.items[entry.ID] = &cp
	return nil
}

func (m *stubEntryRepo) Update(ctx context.Context, entry *models.TimetableEntry) error {
	cp := *entry
	m.items[entry.ID] = &cp
	return nil
}

func (m *stubEntryRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type stubSlotReader struct{ slots map[string]*models.TemplateSlot }

func (m stubSlotReader) FindByID(ctx context.Context, id string) (*models.TemplateSlot, error) {
	if slot, ok := m.slots[id]; ok {
		cp := *slot
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type stubCourseResolver struct{ courses map[string]*models.Course }

func (m stubCourseResolver) FindByAssignment(ctx context.Context, classID, subjectID, teacherID string) (*models.Course, error) {
	if course, ok := m.courses[classID+"|"+subjectID+"|"+teacherID]; ok {
		cp := *course
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type stubClassroomReader struct{ rooms map[string]*models.Classroom }

func (m stubClassroomReader) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if room, ok := m.rooms[id]; ok {
		cp := *room
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func editorFixture() (*SlotEditorService, *stubEntryRepo, *termLockGate) {
	entries := &stubEntryRepo{items: make(map[string]*models.TimetableEntry), nextID: "e-new"}
	slots := stubSlotReader{slots: map[string]*models.TemplateSlot{
		"s1":     {ID: "s1", TermID: "term-1", Position: 1, StartTime: "08:00", EndTime: "09:00"},
		"s2":     {ID: "s2", TermID: "term-1", Position: 2, StartTime: "09:00", EndTime: "10:00"},
		"sbreak": {ID: "sbreak", TermID: "term-1", Position: 3, StartTime: "10:00", EndTime: "10:15", IsBreak: true},
	}}
	courses := stubCourseResolver{courses: map[string]*models.Course{
		"cls-1|sub-1|tch-1": {ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 2, IsLab: false, BatchCount: 1},
		"cls-1|sub-2|tch-2": {ID: "crs-2", ClassID: "cls-1", SubjectID: "sub-2", TeacherID: "tch-2", WeeklyLectures: 1, IsLab: true, BatchCount: 2},
		"cls-2|sub-1|tch-1": {ID: "crs-3", ClassID: "cls-2", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 2, IsLab: false, BatchCount: 1},
		"cls-1|sub-3|tch-3": {ID: "crs-4", ClassID: "cls-1", SubjectID: "sub-3", TeacherID: "tch-3", WeeklyLectures: 1, IsLab: false, BatchCount: 1},
		"cls-1|sub-4|tch-4": {ID: "crs-5", ClassID: "cls-1", SubjectID: "sub-4", TeacherID: "tch-4", WeeklyLectures: 1, IsLab: true, BatchCount: 2},
	}}
	rooms := stubClassroomReader{rooms: map[string]*models.Classroom{
		"room-1": {ID: "room-1", Name: "R-101", IsLab: false},
		"room-2": {ID: "room-2", Name: "R-102", IsLab: false},
		"lab-1":  {ID: "lab-1", Name: "Lab-1", IsLab: true},
		"lab-2":  {ID: "lab-2", Name: "Lab-2", IsLab: true},
	}}
	gate := newTermLockGate()
	editor := NewSlotEditorService(entries, slots, courses, rooms, nil, gate, validator.New(), zap.NewNop())
	return editor, entries, gate
}

func upsertReq() dto.UpsertSlotRequest {
	return dto.UpsertSlotRequest{
		Day:         1,
		SlotID:      "s1",
		ClassID:     "cls-1",
		SubjectID:   "sub-1",
		TeacherID:   "tch-1",
		ClassroomID: "room-1",
	}
}

func TestSlotEditorUpsertCreatesEntry(t *testing.T) {
	editor, entries, _ := editorFixture()

	entry, err := editor.Upsert(context.Background(), "term-1", upsertReq())
	require.NoError(t, err)
	assert.Equal(t, "e-new", entry.ID)
	assert.Equal(t, models.BatchWhole, entry.Batch)
	assert.Equal(t, "crs-1", entry.CourseID)
	assert.Len(t, entries.items, 1)
}

func TestSlotEditorUpsertRejectsTeacherConflict(t *testing.T) {
	editor, entries, _ := editorFixture()
	entries.items["e1"] = &models.TimetableEntry{
		ID: "e1", TermID: "term-1", ClassID: "cls-2", CourseID: "crs-3",
		SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-2",
		Day: 1, SlotID: "s1", Batch: models.BatchWhole,
	}

	_, err := editor.Upsert(context.Background(), "term-1", upsertReq())
	require.Error(t, err)

	var conflict *models.EntryConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictTeacher, conflict.Kind)
	assert.Equal(t, "tch-1", conflict.ResourceID)
	assert.Len(t, entries.items, 1)
}

func TestSlotEditorUpsertRejectsClassroomConflict(t *testing.T) {
	editor, entries, _ := editorFixture()
	entries.items["e1"] = &models.TimetableEntry{
		ID: "e1", TermID: "term-1", ClassID: "cls-2", CourseID: "crs-3",
		SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-2",
		Day: 1, SlotID: "s1", Batch: models.BatchWhole,
	}

	// Different class, free teacher, but the room is taken.
	req := upsertReq()
	req.SubjectID = "sub-3"
	req.TeacherID = "tch-3"
	req.ClassroomID = "room-2"
	_, err := editor.Upsert(context.Background(), "term-1", req)
	require.Error(t, err)

	var conflict *models.EntryConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictClassroom, conflict.Kind)
	assert.Equal(t, "room-2", conflict.ResourceID)
}

func TestSlotEditorUpsertRejectsCapabilityMismatch(t *testing.T) {
	editor, _, _ := editorFixture()

	req := upsertReq()
	req.SubjectID = "sub-2"
	req.TeacherID = "tch-2"
	req.Batch = "B1"
	// crs-2 is a lab course; room-1 is a regular room.
	_, err := editor.Upsert(context.Background(), "term-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCapabilityMismatch.Code, appErr.Code)
}

func TestSlotEditorUpsertRejectsBreakSlot(t *testing.T) {
	editor, _, _ := editorFixture()

	req := upsertReq()
	req.SlotID = "sbreak"
	_, err := editor.Upsert(context.Background(), "term-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSlotEditorUpsertRejectsUnknownCourse(t *testing.T) {
	editor, _, _ := editorFixture()

	req := upsertReq()
	req.SubjectID = "sub-9"
	_, err := editor.Upsert(context.Background(), "term-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestSlotEditorMoveWithinSlotReleasesOwnOccupancy(t *testing.T) {
	editor, entries, _ := editorFixture()
	entries.items["e1"] = &models.TimetableEntry{
		ID: "e1", TermID: "term-1", ClassID: "cls-1", CourseID: "crs-1",
		SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-1",
		Day: 1, SlotID: "s1", Batch: models.BatchWhole,
	}

	// Same cell, different room: the entry must not conflict with itself.
	req := upsertReq()
	req.ClassroomID = "room-2"
	req.EntryID = "e1"
	entry, err := editor.Upsert(context.Background(), "term-1", req)
	require.NoError(t, err)
	assert.Equal(t, "e1", entry.ID)
	assert.Equal(t, "room-2", entry.ClassroomID)
	assert.Len(t, entries.items, 1)
}

func TestSlotEditorUpsertMissingEntryID(t *testing.T) {
	editor, _, _ := editorFixture()

	req := upsertReq()
	req.EntryID = "nope"
	_, err := editor.Upsert(context.Background(), "term-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSlotEditorRejectsEditDuringGeneration(t *testing.T) {
	editor, _, gate := editorFixture()

	release, ok := gate.TryGenerate("term-1")
	require.True(t, ok)
	defer release()

	_, err := editor.Upsert(context.Background(), "term-1", upsertReq())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGenerationBusy.Code, appErr.Code)
}

func TestSlotEditorClear(t *testing.T) {
	editor, entries, _ := editorFixture()
	entries.items["e1"] = &models.TimetableEntry{
		ID: "e1", TermID: "term-1", ClassID: "cls-1", CourseID: "crs-1",
		SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-1",
		Day: 1, SlotID: "s1", Batch: models.BatchWhole,
	}

	require.NoError(t, editor.Clear(context.Background(), "e1"))
	assert.Equal(t, []string{"e1"}, entries.deleted)

	err := editor.Clear(context.Background(), "e1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestSlotEditorBatchCoexistence(t *testing.T) {
	editor, entries, _ := editorFixture()
	entries.items["e1"] = &models.TimetableEntry{
		ID: "e1", TermID: "term-1", ClassID: "cls-1", CourseID: "crs-2",
		SubjectID: "sub-2", TeacherID: "tch-2", ClassroomID: "lab-1",
		Day: 1, SlotID: "s1", Batch: "B1",
	}

	// A different lab batch of the same class shares the cell when its
	// teacher and room are free.
	req := upsertReq()
	req.SubjectID = "sub-4"
	req.TeacherID = "tch-4"
	req.ClassroomID = "lab-2"
	req.Batch = "B2"
	entry, err := editor.Upsert(context.Background(), "term-1", req)
	require.NoError(t, err)
	assert.Equal(t, "B2", entry.Batch)
	assert.Len(t, entries.items, 2)

	// The whole class is rejected while any batch occupies the cell,
	// even with a free teacher and room.
	whole := upsertReq()
	whole.SubjectID = "sub-3"
	whole.TeacherID = "tch-3"
	whole.ClassroomID = "room-2"
	_, err = editor.Upsert(context.Background(), "term-1", whole)
	require.Error(t, err)
	var conflict *models.EntryConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictClass, conflict.Kind)
}

func TestSlotEditorRejectsBatchOnTheory(t *testing.T) {
	editor, entries, _ := editorFixture()
	entries.items["e1"] = &models.TimetableEntry{
		ID: "e1", TermID: "term-1", ClassID: "cls-1", CourseID: "crs-1",
		SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-1",
		Day: 1, SlotID: "s1", Batch: models.BatchWhole,
	}

	// A theory session cannot smuggle a batch key to share a cell the
	// class already occupies.
	req := upsertReq()
	req.SubjectID = "sub-3"
	req.TeacherID = "tch-3"
	req.ClassroomID = "room-2"
	req.Batch = "B2"
	_, err := editor.Upsert(context.Background(), "term-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Len(t, entries.items, 1)
}

func TestSlotEditorRejectsBatchOutOfRange(t *testing.T) {
	editor, _, _ := editorFixture()

	cases := []string{"B3", "B0", "batch-1", "Bx"}
	for _, batch := range cases {
		// crs-2 declares two batches.
		req := upsertReq()
		req.SubjectID = "sub-2"
		req.TeacherID = "tch-2"
		req.ClassroomID = "lab-1"
		req.Batch = batch
		_, err := editor.Upsert(context.Background(), "term-1", req)
		require.Error(t, err, "batch %q", batch)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestSlotEditorEnforcesWeeklyLectureCap(t *testing.T) {
	editor, entries, _ := editorFixture()

	// crs-1 allows two sessions per week.
	for day := 1; day <= 2; day++ {
		entries.nextID = fmt.Sprintf("e%d", day)
		req := upsertReq()
		req.Day = day
		_, err := editor.Upsert(context.Background(), "term-1", req)
		require.NoError(t, err)
	}

	third := upsertReq()
	third.Day = 3
	_, err := editor.Upsert(context.Background(), "term-1", third)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Len(t, entries.items, 2)

	// Moving a session at the cap stays allowed, the count is flat.
	move := upsertReq()
	move.Day = 3
	move.EntryID = "e2"
	moved, err := editor.Upsert(context.Background(), "term-1", move)
	require.NoError(t, err)
	assert.Equal(t, 3, moved.Day)
	assert.Len(t, entries.items, 2)
}
