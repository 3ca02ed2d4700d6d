package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type courseClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type courseSubjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type courseTeacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// CreateCourseRequest represents payload for creating courses.
type CreateCourseRequest struct {
	ClassID        string `json:"class_id" validate:"required"`
	SubjectID      string `json:"subject_id" validate:"required"`
	TeacherID      string `json:"teacher_id" validate:"required"`
	WeeklyLectures int    `json:"weekly_lectures" validate:"required,min=1,max=20"`
	IsLab          bool   `json:"is_lab"`
	BatchCount     int    `json:"batch_count" validate:"omitempty,min=1,max=6"`
}

// UpdateCourseRequest represents payload for updating courses.
type UpdateCourseRequest struct {
	ClassID        string `json:"class_id" validate:"required"`
	SubjectID      string `json:"subject_id" validate:"required"`
	TeacherID      string `json:"teacher_id" validate:"required"`
	WeeklyLectures int    `json:"weekly_lectures" validate:"required,min=1,max=20"`
	IsLab          bool   `json:"is_lab"`
	BatchCount     int    `json:"batch_count" validate:"omitempty,min=1,max=6"`
}

// CourseService orchestrates course operations.
type CourseService struct {
	repo      courseRepository
	classes   courseClassReader
	subjects  courseSubjectReader
	teachers  courseTeacherReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, classes courseClassReader, subjects courseSubjectReader, teachers courseTeacherReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, classes: classes, subjects: subjects, teachers: teachers, validator: validate, logger: logger}
}

// List returns course details plus pagination data.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course after checking all references exist.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if err := s.ensureReferences(ctx, req.ClassID, req.SubjectID, req.TeacherID); err != nil {
		return nil, err
	}
	if req.BatchCount > 1 && !req.IsLab {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only lab courses can split into batches")
	}

	course := &models.Course{
		ClassID:        req.ClassID,
		SubjectID:      req.SubjectID,
		TeacherID:      req.TeacherID,
		WeeklyLectures: req.WeeklyLectures,
		IsLab:          req.IsLab,
		BatchCount:     req.BatchCount,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update modifies an existing course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.ClassID, req.SubjectID, req.TeacherID); err != nil {
		return nil, err
	}
	if req.BatchCount > 1 && !req.IsLab {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only lab courses can split into batches")
	}

	course.ClassID = req.ClassID
	course.SubjectID = req.SubjectID
	course.TeacherID = req.TeacherID
	course.WeeklyLectures = req.WeeklyLectures
	course.IsLab = req.IsLab
	course.BatchCount = req.BatchCount
	if course.BatchCount < 1 {
		course.BatchCount = 1
	}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course with its timetable entries.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

func (s *CourseService) ensureReferences(ctx context.Context, classID, subjectID, teacherID string) error {
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if _, err := s.teachers.FindByID(ctx, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}
