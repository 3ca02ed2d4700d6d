package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartcampus/timetable-api/internal/models"
)

const courseColumns = "id, class_id, subject_id, teacher_id, weekly_lectures, is_lab, batch_count, created_at, updated_at"

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns course details matching filters along with total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c
		JOIN classes cl ON cl.id = c.class_id
		JOIN subjects s ON s.id = c.subject_id
		JOIN teachers t ON t.id = c.teacher_id
		WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("c.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("c.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.class_id, c.subject_id, c.teacher_id, c.weekly_lectures, c.is_lab, c.batch_count, c.created_at, c.updated_at,
		cl.name AS class_name, s.name AS subject_name, t.full_name AS teacher_name
		%s ORDER BY cl.name ASC, s.name ASC LIMIT %d OFFSET %d`, base, size, offset)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	return courses, total, nil
}

// ListAll returns every course ordered by ID.
func (r *CourseRepository) ListAll(ctx context.Context) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses ORDER BY id", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list all courses: %w", err)
	}
	return courses, nil
}

// FindByID fetches a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByAssignment resolves a course by its class, subject and teacher.
func (r *CourseRepository) FindByAssignment(ctx context.Context, classID, subjectID, teacherID string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE class_id = $1 AND subject_id = $2 AND teacher_id = $3", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, classID, subjectID, teacherID); err != nil {
		return nil, err
	}
	return &course, nil
}

// CountBySubject reports how many courses reference a subject.
func (r *CourseRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses WHERE subject_id = $1", subjectID); err != nil {
		return 0, fmt.Errorf("count courses by subject: %w", err)
	}
	return total, nil
}

// CountByTeacher reports how many courses reference a teacher.
func (r *CourseRepository) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses WHERE teacher_id = $1", teacherID); err != nil {
		return 0, fmt.Errorf("count courses by teacher: %w", err)
	}
	return total, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.BatchCount < 1 {
		course.BatchCount = 1
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, class_id, subject_id, teacher_id, weekly_lectures, is_lab, batch_count, created_at, updated_at)
		VALUES (:id, :class_id, :subject_id, :teacher_id, :weekly_lectures, :is_lab, :batch_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course record.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET class_id = :class_id, subject_id = :subject_id, teacher_id = :teacher_id, weekly_lectures = :weekly_lectures, is_lab = :is_lab, batch_count = :batch_count, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course and cascades to its timetable entries.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete course: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM timetable_entries WHERE course_id = $1", id); err != nil {
		return fmt.Errorf("delete course entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete course: %w", err)
	}
	return nil
}
