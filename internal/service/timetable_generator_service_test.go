package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

type generatorFixture struct {
	term       models.Term
	slots      []models.TemplateSlot
	courses    []models.Course
	teachers   []models.Teacher
	classes    []models.Class
	subjects   []models.Subject
	classrooms []models.Classroom
}

type fixtureTermReader struct{ fx *generatorFixture }

func (r fixtureTermReader) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if id != r.fx.term.ID {
		return nil, sql.ErrNoRows
	}
	term := r.fx.term
	return &term, nil
}

type fixtureSlotSource struct{ fx *generatorFixture }

func (r fixtureSlotSource) ListByTerm(ctx context.Context, termID string) ([]models.TemplateSlot, error) {
	return r.fx.slots, nil
}

type fixtureCourseSource struct{ fx *generatorFixture }

func (r fixtureCourseSource) ListAll(ctx context.Context) ([]models.Course, error) {
	return r.fx.courses, nil
}

type fixtureTeacherSource struct{ fx *generatorFixture }

func (r fixtureTeacherSource) ListAll(ctx context.Context) ([]models.Teacher, error) {
	return r.fx.teachers, nil
}

type fixtureClassSource struct{ fx *generatorFixture }

func (r fixtureClassSource) ListAll(ctx context.Context) ([]models.Class, error) {
	return r.fx.classes, nil
}

type fixtureSubjectSource struct{ fx *generatorFixture }

func (r fixtureSubjectSource) ListAll(ctx context.Context) ([]models.Subject, error) {
	return r.fx.subjects, nil
}

type fixtureClassroomSource struct{ fx *generatorFixture }

func (r fixtureClassroomSource) ListAll(ctx context.Context) ([]models.Classroom, error) {
	return r.fx.classrooms, nil
}

type capturingReplacer struct {
	saved [][]models.TimetableEntry
}

func (r *capturingReplacer) ReplaceForTerm(ctx context.Context, termID string, entries []models.TimetableEntry) error {
	snapshot := make([]models.TimetableEntry, len(entries))
	copy(snapshot, entries)
	r.saved = append(r.saved, snapshot)
	return nil
}

func baseFixture() *generatorFixture {
	return &generatorFixture{
		term: models.Term{ID: "term-1", Name: "Odd 2026", AcademicYear: "2026/2027"},
		slots: []models.TemplateSlot{
			{ID: "s1", TermID: "term-1", Position: 1, StartTime: "08:00", EndTime: "09:00"},
			{ID: "s2", TermID: "term-1", Position: 2, StartTime: "09:00", EndTime: "10:00"},
		},
		teachers: []models.Teacher{
			{ID: "tch-1", FullName: "Teacher One", Preference: models.TeacherPreferenceNone},
			{ID: "tch-2", FullName: "Teacher Two", Preference: models.TeacherPreferenceNone},
		},
		classes: []models.Class{
			{ID: "cls-1", Name: "10-A"},
			{ID: "cls-2", Name: "10-B"},
		},
		subjects: []models.Subject{
			{ID: "sub-1", Code: "MATH", Name: "Mathematics"},
			{ID: "sub-2", Code: "PHYS", Name: "Physics"},
		},
		classrooms: []models.Classroom{
			{ID: "room-1", Name: "R-101", IsLab: false},
			{ID: "room-2", Name: "Lab-1", IsLab: true},
		},
	}
}

func newGenerator(fx *generatorFixture, writer *capturingReplacer, days []int) *TimetableGeneratorService {
	return NewTimetableGeneratorService(
		fixtureTermReader{fx},
		fixtureSlotSource{fx},
		fixtureCourseSource{fx},
		fixtureTeacherSource{fx},
		fixtureClassSource{fx},
		fixtureSubjectSource{fx},
		fixtureClassroomSource{fx},
		writer,
		nil,
		nil,
		newTermLockGate(),
		days,
		zap.NewNop(),
	)
}

func TestGenerateSpreadsLecturesAcrossDays(t *testing.T) {
	fx := baseFixture()
	fx.courses = []models.Course{
		{ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 3, BatchCount: 1},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, []int{1, 2, 3, 4, 5, 6})

	resp, err := gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Equal(t, 3, resp.PlacedCount)
	assert.Empty(t, resp.Unplaced)

	require.Len(t, writer.saved, 1)
	days := make(map[int]bool)
	for _, entry := range writer.saved[0] {
		days[entry.Day] = true
		assert.Equal(t, "s1", entry.SlotID)
		assert.Equal(t, "room-1", entry.ClassroomID)
	}
	assert.Len(t, days, 3)
}

func TestGenerateReportsTeacherBlocked(t *testing.T) {
	fx := baseFixture()
	// One working day, two slots: the shared teacher can cover only one
	// class fully.
	fx.courses = []models.Course{
		{ID: "crs-a", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 2, BatchCount: 1},
		{ID: "crs-b", ClassID: "cls-2", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 2, BatchCount: 1},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, []int{1})

	resp, err := gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PlacedCount)
	require.Len(t, resp.Unplaced, 2)
	for _, miss := range resp.Unplaced {
		assert.Equal(t, "crs-b", miss.CourseID)
		assert.Equal(t, models.ReasonNoTeacherSlot, miss.Reason)
	}
}

func TestGenerateReportsClassroomBlocked(t *testing.T) {
	fx := baseFixture()
	fx.slots = fx.slots[:1]
	fx.classrooms = fx.classrooms[:1]
	fx.courses = []models.Course{
		{ID: "crs-a", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 1, BatchCount: 1},
		{ID: "crs-b", ClassID: "cls-2", SubjectID: "sub-2", TeacherID: "tch-2", WeeklyLectures: 1, BatchCount: 1},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, []int{1})

	resp, err := gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.PlacedCount)
	require.Len(t, resp.Unplaced, 1)
	assert.Equal(t, models.ReasonNoClassroomSlot, resp.Unplaced[0].Reason)
}

func TestGenerateReportsNoDayLeft(t *testing.T) {
	fx := baseFixture()
	fx.courses = []models.Course{
		{ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 3, BatchCount: 1},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, []int{1})

	resp, err := gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PlacedCount)
	require.Len(t, resp.Unplaced, 1)
	assert.Equal(t, models.ReasonNoDayLeft, resp.Unplaced[0].Reason)
}

func TestGenerateLabBatchesShareClassCell(t *testing.T) {
	fx := baseFixture()
	fx.classrooms = append(fx.classrooms, models.Classroom{ID: "room-3", Name: "Lab-2", IsLab: true})
	fx.courses = []models.Course{
		{ID: "crs-lab", ClassID: "cls-1", SubjectID: "sub-2", TeacherID: "tch-1", WeeklyLectures: 1, IsLab: true, BatchCount: 2},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, []int{1})

	resp, err := gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PlacedCount)
	assert.Empty(t, resp.Unplaced)

	entries := writer.saved[0]
	require.Len(t, entries, 2)
	batches := map[string]bool{}
	for _, entry := range entries {
		batches[entry.Batch] = true
		assert.True(t, entry.ClassroomID == "room-2" || entry.ClassroomID == "room-3")
	}
	assert.True(t, batches["B1"])
	assert.True(t, batches["B2"])
	// The shared teacher forces the second batch into the other slot.
	assert.NotEqual(t, entries[0].SlotID, entries[1].SlotID)
}

func TestGenerateAfternoonPreferenceScansReverse(t *testing.T) {
	fx := baseFixture()
	fx.teachers[0].Preference = models.TeacherPreferenceAfternoon
	fx.courses = []models.Course{
		{ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 1, BatchCount: 1},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, []int{1})

	_, err := gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)
	require.Len(t, writer.saved[0], 1)
	assert.Equal(t, "s2", writer.saved[0][0].SlotID)
}

func TestGenerateIsDeterministic(t *testing.T) {
	fx := baseFixture()
	fx.courses = []models.Course{
		{ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 2, BatchCount: 1},
		{ID: "crs-2", ClassID: "cls-2", SubjectID: "sub-2", TeacherID: "tch-2", WeeklyLectures: 2, BatchCount: 1},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, []int{1, 2, 3})

	_, err := gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "term-1")
	require.NoError(t, err)

	require.Len(t, writer.saved, 2)
	assert.Equal(t, writer.saved[0], writer.saved[1])
}

func TestGenerateFailsOnBreakOnlyTemplate(t *testing.T) {
	fx := baseFixture()
	for i := range fx.slots {
		fx.slots[i].IsBreak = true
	}
	fx.courses = []models.Course{
		{ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 1, BatchCount: 1},
	}
	gen := newGenerator(fx, &capturingReplacer{}, nil)

	_, err := gen.Generate(context.Background(), "term-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDataIntegrity.Code, appErr.Code)
}

func TestGenerateFailsOnMissingReference(t *testing.T) {
	fx := baseFixture()
	fx.courses = []models.Course{
		{ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-missing", WeeklyLectures: 1, BatchCount: 1},
	}
	gen := newGenerator(fx, &capturingReplacer{}, nil)

	_, err := gen.Generate(context.Background(), "term-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDataIntegrity.Code, appErr.Code)
}

func TestGenerateRejectsUnknownTerm(t *testing.T) {
	fx := baseFixture()
	gen := newGenerator(fx, &capturingReplacer{}, nil)

	_, err := gen.Generate(context.Background(), "term-unknown")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGenerateRejectsConcurrentRun(t *testing.T) {
	fx := baseFixture()
	gen := newGenerator(fx, &capturingReplacer{}, nil)

	release, ok := gen.Gate().TryGenerate("term-1")
	require.True(t, ok)
	defer release()

	_, err := gen.Generate(context.Background(), "term-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrGenerationBusy.Code, appErr.Code)
}

func TestGenerateHonorsCancellation(t *testing.T) {
	fx := baseFixture()
	fx.courses = []models.Course{
		{ID: "crs-1", ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 1, BatchCount: 1},
	}
	writer := &capturingReplacer{}
	gen := newGenerator(fx, writer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.Generate(ctx, "term-1")
	require.Error(t, err)
	assert.Empty(t, writer.saved)
}
