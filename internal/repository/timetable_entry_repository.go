package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartcampus/timetable-api/internal/models"
)

const entryColumns = "id, term_id, class_id, course_id, subject_id, teacher_id, classroom_id, day, slot_id, batch, created_at, updated_at"

const entryDetailSelect = `SELECT e.id, e.term_id, e.class_id, e.course_id, e.subject_id, e.teacher_id, e.classroom_id, e.day, e.slot_id, e.batch, e.created_at, e.updated_at,
	s.name AS subject_name, s.code AS subject_code, t.full_name AS teacher_name, r.name AS classroom_name, c.is_lab AS is_lab
	FROM timetable_entries e
	JOIN subjects s ON s.id = e.subject_id
	JOIN teachers t ON t.id = e.teacher_id
	JOIN classrooms r ON r.id = e.classroom_id
	JOIN courses c ON c.id = e.course_id`

// TimetableEntryRepository manages persistence for timetable entries.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository constructs a TimetableEntryRepository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

// ListByTerm returns every entry of a term ordered for stable output.
func (r *TimetableEntryRepository) ListByTerm(ctx context.Context, termID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE term_id = $1 ORDER BY day, slot_id, class_id, batch", entryColumns)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, termID); err != nil {
		return nil, fmt.Errorf("list term entries: %w", err)
	}
	return entries, nil
}

// ListByTermDaySlot returns the entries occupying one (day, slot) cell
// across all classes. The slot editor checks conflicts against this set.
func (r *TimetableEntryRepository) ListByTermDaySlot(ctx context.Context, termID string, day int, slotID string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE term_id = $1 AND day = $2 AND slot_id = $3", entryColumns)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, termID, day, slotID); err != nil {
		return nil, fmt.Errorf("list slot entries: %w", err)
	}
	return entries, nil
}

// ListDetailByClass returns a class's entries joined with display names.
func (r *TimetableEntryRepository) ListDetailByClass(ctx context.Context, termID, classID string) ([]models.TimetableEntryDetail, error) {
	query := entryDetailSelect + " WHERE e.term_id = $1 AND e.class_id = $2 ORDER BY e.day, e.slot_id, e.batch"
	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, termID, classID); err != nil {
		return nil, fmt.Errorf("list class entries: %w", err)
	}
	return entries, nil
}

// FindByID fetches an entry by ID.
func (r *TimetableEntryRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE id = $1", entryColumns)
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create inserts a single entry.
func (r *TimetableEntryRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Batch == "" {
		entry.Batch = models.BatchWhole
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO timetable_entries (id, term_id, class_id, course_id, subject_id, teacher_id, classroom_id, day, slot_id, batch, created_at, updated_at)
		VALUES (:id, :term_id, :class_id, :course_id, :subject_id, :teacher_id, :classroom_id, :day, :slot_id, :batch, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// Update rewrites an existing entry in place.
func (r *TimetableEntryRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_entries SET class_id = :class_id, course_id = :course_id, subject_id = :subject_id, teacher_id = :teacher_id, classroom_id = :classroom_id, day = :day, slot_id = :slot_id, batch = :batch, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// Delete removes a single entry.
func (r *TimetableEntryRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM timetable_entries WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// CountByCourseBatch reports how many sessions of one course batch are
// already placed in a term's week.
func (r *TimetableEntryRepository) CountByCourseBatch(ctx context.Context, termID, courseID, batch string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timetable_entries WHERE term_id = $1 AND course_id = $2 AND batch = $3", termID, courseID, batch); err != nil {
		return 0, fmt.Errorf("count entries by course batch: %w", err)
	}
	return total, nil
}

// CountByClassroom reports how many entries reference a classroom.
func (r *TimetableEntryRepository) CountByClassroom(ctx context.Context, classroomID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM timetable_entries WHERE classroom_id = $1", classroomID); err != nil {
		return 0, fmt.Errorf("count entries by classroom: %w", err)
	}
	return total, nil
}

// ReplaceForTerm atomically swaps a term's timetable for a freshly
// generated one. Either every new entry lands or none does.
func (r *TimetableEntryRepository) ReplaceForTerm(ctx context.Context, termID string, entries []models.TimetableEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace timetable: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM timetable_entries WHERE term_id = $1", termID); err != nil {
		return fmt.Errorf("clear term timetable: %w", err)
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO timetable_entries (id, term_id, class_id, course_id, subject_id, teacher_id, classroom_id, day, slot_id, batch, created_at, updated_at)
		VALUES (:id, :term_id, :class_id, :course_id, :subject_id, :teacher_id, :classroom_id, :day, :slot_id, :batch, :created_at, :updated_at)`
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		entries[i].TermID = termID
		entries[i].CreatedAt = now
		entries[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, entries[i]); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace timetable: %w", err)
	}
	return nil
}
