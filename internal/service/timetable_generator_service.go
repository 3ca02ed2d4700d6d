package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

type generatorTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type generatorSlotSource interface {
	ListByTerm(ctx context.Context, termID string) ([]models.TemplateSlot, error)
}

type generatorCourseSource interface {
	ListAll(ctx context.Context) ([]models.Course, error)
}

type generatorTeacherSource interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

type generatorClassSource interface {
	ListAll(ctx context.Context) ([]models.Class, error)
}

type generatorSubjectSource interface {
	ListAll(ctx context.Context) ([]models.Subject, error)
}

type generatorClassroomSource interface {
	ListAll(ctx context.Context) ([]models.Classroom, error)
}

type timetableReplacer interface {
	ReplaceForTerm(ctx context.Context, termID string, entries []models.TimetableEntry) error
}

type gridInvalidator interface {
	InvalidateTerm(ctx context.Context, termID string)
	WarmTerm(termID string, classIDs []string)
}

// TimetableGeneratorService rebuilds a term's timetable in one greedy
// pass. Output is a pure function of the stored data: candidate cells
// are visited in a fixed order and ties always break on lowest ID.
type TimetableGeneratorService struct {
	terms      generatorTermReader
	slots      generatorSlotSource
	courses    generatorCourseSource
	teachers   generatorTeacherSource
	classes    generatorClassSource
	subjects   generatorSubjectSource
	classrooms generatorClassroomSource
	writer     timetableReplacer
	grids      gridInvalidator
	metrics    *MetricsService
	gate       *termLockGate
	days       []int
	logger     *zap.Logger
}

// NewTimetableGeneratorService wires generator dependencies. workingDays
// holds the schedulable weekday numbers in ascending order.
func NewTimetableGeneratorService(
	terms generatorTermReader,
	slots generatorSlotSource,
	courses generatorCourseSource,
	teachers generatorTeacherSource,
	classes generatorClassSource,
	subjects generatorSubjectSource,
	classrooms generatorClassroomSource,
	writer timetableReplacer,
	grids gridInvalidator,
	metrics *MetricsService,
	gate *termLockGate,
	workingDays []int,
	logger *zap.Logger,
) *TimetableGeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = newTermLockGate()
	}
	days := normalizeWorkingDays(workingDays)
	return &TimetableGeneratorService{
		terms:      terms,
		slots:      slots,
		courses:    courses,
		teachers:   teachers,
		classes:    classes,
		subjects:   subjects,
		classrooms: classrooms,
		writer:     writer,
		grids:      grids,
		metrics:    metrics,
		gate:       gate,
		days:       days,
		logger:     logger,
	}
}

// Gate exposes the term lock shared with the slot editor.
func (s *TimetableGeneratorService) Gate() *termLockGate {
	return s.gate
}

// Generate discards the term's existing timetable and builds a fresh one.
// Sessions that cannot be placed are returned as data with a reason code;
// only broken references or an empty template abort the run.
func (s *TimetableGeneratorService) Generate(ctx context.Context, termID string) (*dto.GenerateTimetableResponse, error) {
	if termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term id is required")
	}
	if _, err := s.terms.FindByID(ctx, termID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	release, ok := s.gate.TryGenerate(termID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrGenerationBusy, "")
	}
	defer release()

	started := time.Now()
	plan, err := s.loadPlan(ctx, termID)
	if err != nil {
		return nil, err
	}

	entries, unplaced, err := s.run(ctx, termID, plan)
	if err != nil {
		return nil, err
	}

	if err := s.writer.ReplaceForTerm(ctx, termID, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable")
	}

	if s.grids != nil {
		s.grids.InvalidateTerm(ctx, termID)
		s.grids.WarmTerm(termID, plan.classIDs())
	}
	if s.metrics != nil {
		s.metrics.ObserveGeneration(len(entries), len(unplaced), time.Since(started))
	}
	s.logger.Info("timetable generated",
		zap.String("term_id", termID),
		zap.Int("placed", len(entries)),
		zap.Int("unplaced", len(unplaced)),
		zap.Duration("took", time.Since(started)),
	)

	return &dto.GenerateTimetableResponse{
		TermID:      termID,
		PlacedCount: len(entries),
		Unplaced:    unplaced,
	}, nil
}

// generationPlan is the immutable input snapshot for one run.
type generationPlan struct {
	slots      []models.TemplateSlot
	courses    []models.Course
	teachers   map[string]models.Teacher
	classes    map[string]models.Class
	subjects   map[string]models.Subject
	classrooms []models.Classroom
}

func (p *generationPlan) classIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, course := range p.courses {
		if _, ok := seen[course.ClassID]; ok {
			continue
		}
		seen[course.ClassID] = struct{}{}
		ids = append(ids, course.ClassID)
	}
	sort.Strings(ids)
	return ids
}

func (s *TimetableGeneratorService) loadPlan(ctx context.Context, termID string) (*generationPlan, error) {
	allSlots, err := s.slots.ListByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot template")
	}
	teaching := make([]models.TemplateSlot, 0, len(allSlots))
	for _, slot := range allSlots {
		if !slot.IsBreak {
			teaching = append(teaching, slot)
		}
	}
	if len(teaching) == 0 {
		return nil, appErrors.Clone(appErrors.ErrDataIntegrity, "slot template has no teaching slots")
	}

	courses, err := s.courses.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	teachers, err := s.teachers.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	classes, err := s.classes.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	subjects, err := s.subjects.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	classrooms, err := s.classrooms.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}

	plan := &generationPlan{
		slots:      teaching,
		courses:    courses,
		teachers:   make(map[string]models.Teacher, len(teachers)),
		classes:    make(map[string]models.Class, len(classes)),
		subjects:   make(map[string]models.Subject, len(subjects)),
		classrooms: classrooms,
	}
	for _, t := range teachers {
		plan.teachers[t.ID] = t
	}
	for _, c := range classes {
		plan.classes[c.ID] = c
	}
	for _, sub := range subjects {
		plan.subjects[sub.ID] = sub
	}

	for _, course := range plan.courses {
		if _, ok := plan.teachers[course.TeacherID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("course %s references missing teacher %s", course.ID, course.TeacherID))
		}
		if _, ok := plan.classes[course.ClassID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("course %s references missing class %s", course.ID, course.ClassID))
		}
		if _, ok := plan.subjects[course.SubjectID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrDataIntegrity, fmt.Sprintf("course %s references missing subject %s", course.ID, course.SubjectID))
		}
	}
	return plan, nil
}

func (s *TimetableGeneratorService) run(ctx context.Context, termID string, plan *generationPlan) ([]models.TimetableEntry, []models.UnplacedSession, error) {
	ordered := make([]models.Course, len(plan.courses))
	copy(ordered, plan.courses)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].WeeklyLectures != ordered[j].WeeklyLectures {
			return ordered[i].WeeklyLectures > ordered[j].WeeklyLectures
		}
		if ordered[i].IsLab != ordered[j].IsLab {
			return ordered[i].IsLab
		}
		return ordered[i].ID < ordered[j].ID
	})

	index := NewAvailabilityIndex()
	entries := make([]models.TimetableEntry, 0)
	unplaced := make([]models.UnplacedSession, 0)
	usedDays := make(map[string]map[int]bool)

	for _, course := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generation cancelled")
		}

		slotOrder := s.slotOrderFor(plan, &course)
		batches := course.BatchCount
		if batches < 1 {
			batches = 1
		}

		for group := 0; group < batches; group++ {
			batch := BatchKey(&course, group)
			spreadKey := course.ID + "/" + batch
			if usedDays[spreadKey] == nil {
				usedDays[spreadKey] = make(map[int]bool)
			}

			for lecture := 0; lecture < course.WeeklyLectures; lecture++ {
				entry, reason := s.placeSession(plan, index, &course, batch, slotOrder, usedDays[spreadKey])
				if entry == nil {
					unplaced = append(unplaced, models.UnplacedSession{CourseID: course.ID, Batch: batch, Reason: reason})
					continue
				}
				entry.TermID = termID
				entries = append(entries, *entry)
				usedDays[spreadKey][entry.Day] = true
			}
		}
	}

	return entries, unplaced, nil
}

// slotOrderFor honors the teacher's soft time-of-day preference: an
// afternoon teacher scans each day's slots last-to-first. Still a fixed
// order, so output stays deterministic.
func (s *TimetableGeneratorService) slotOrderFor(plan *generationPlan, course *models.Course) []models.TemplateSlot {
	teacher := plan.teachers[course.TeacherID]
	if teacher.Preference != models.TeacherPreferenceAfternoon {
		return plan.slots
	}
	reversed := make([]models.TemplateSlot, len(plan.slots))
	for i, slot := range plan.slots {
		reversed[len(plan.slots)-1-i] = slot
	}
	return reversed
}

// placeSession finds the first free cell for one session. The first pass
// skips days this course+batch already occupies so lectures spread over
// the week; a second pass permits repeats before giving up.
func (s *TimetableGeneratorService) placeSession(
	plan *generationPlan,
	index *AvailabilityIndex,
	course *models.Course,
	batch string,
	slotOrder []models.TemplateSlot,
	used map[int]bool,
) (*models.TimetableEntry, models.UnplacedReason) {
	teacherBlocked := false
	roomBlocked := false

	for pass := 0; pass < 2; pass++ {
		for _, day := range s.days {
			if pass == 0 && used[day] {
				continue
			}
			for _, slot := range slotOrder {
				if index.ClassBusy(course.ClassID, batch, day, slot.ID) {
					continue
				}
				if index.TeacherBusy(course.TeacherID, day, slot.ID) {
					teacherBlocked = true
					continue
				}
				room := s.pickRoom(plan, index, course.IsLab, day, slot.ID)
				if room == nil {
					roomBlocked = true
					continue
				}

				entry := &models.TimetableEntry{
					ClassID:     course.ClassID,
					CourseID:    course.ID,
					SubjectID:   course.SubjectID,
					TeacherID:   course.TeacherID,
					ClassroomID: room.ID,
					Day:         day,
					SlotID:      slot.ID,
					Batch:       batch,
				}
				if err := index.Commit(entry); err != nil {
					continue
				}
				return entry, ""
			}
		}
		if pass == 0 && len(used) == 0 {
			// Nothing to relax when no day is occupied yet.
			break
		}
	}

	switch {
	case roomBlocked:
		return nil, models.ReasonNoClassroomSlot
	case teacherBlocked:
		return nil, models.ReasonNoTeacherSlot
	default:
		return nil, models.ReasonNoDayLeft
	}
}

// pickRoom returns the lowest-ID free classroom whose capability matches.
func (s *TimetableGeneratorService) pickRoom(plan *generationPlan, index *AvailabilityIndex, needLab bool, day int, slotID string) *models.Classroom {
	for i := range plan.classrooms {
		room := &plan.classrooms[i]
		if room.IsLab != needLab {
			continue
		}
		if index.RoomBusy(room.ID, day, slotID) {
			continue
		}
		return room
	}
	return nil
}

func normalizeWorkingDays(days []int) []int {
	unique := make(map[int]struct{})
	for _, day := range days {
		if day < 1 || day > 7 {
			continue
		}
		unique[day] = struct{}{}
	}
	if len(unique) == 0 {
		return []int{1, 2, 3, 4, 5, 6}
	}
	result := make([]int, 0, len(unique))
	for day := range unique {
		result = append(result, day)
	}
	sort.Ints(result)
	return result
}
