package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/timetable-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func entryRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "term_id", "class_id", "course_id", "subject_id", "teacher_id", "classroom_id", "day", "slot_id", "batch", "created_at", "updated_at"}).
		AddRow("e1", "term-1", "cls-1", "crs-1", "sub-1", "tch-1", "room-1", 1, "slot-1", models.BatchWhole, now, now)
}

func TestTimetableEntryRepositoryListByTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE term_id = $1 ORDER BY day, slot_id, class_id, batch")).
		WithArgs("term-1").
		WillReturnRows(entryRows())

	entries, err := repo.ListByTerm(context.Background(), "term-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryListByTermDaySlot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_entries WHERE term_id = $1 AND day = $2 AND slot_id = $3")).
		WithArgs("term-1", 1, "slot-1").
		WillReturnRows(entryRows())

	entries, err := repo.ListByTermDaySlot(context.Background(), "term-1", 1, "slot-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryCountByCourseBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_entries WHERE term_id = $1 AND course_id = $2 AND batch = $3")).
		WithArgs("term-1", "crs-1", models.BatchWhole).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	total, err := repo.CountByCourseBatch(context.Background(), "term-1", "crs-1", models.BatchWhole)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryCreateDefaultsBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectExec("INSERT INTO timetable_entries").
		WithArgs(sqlmock.AnyArg(), "term-1", "cls-1", "crs-1", "sub-1", "tch-1", "room-1", 2, "slot-2", models.BatchWhole, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.TimetableEntry{
		TermID:      "term-1",
		ClassID:     "cls-1",
		CourseID:    "crs-1",
		SubjectID:   "sub-1",
		TeacherID:   "tch-1",
		ClassroomID: "room-1",
		Day:         2,
		SlotID:      "slot-2",
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, models.BatchWhole, entry.Batch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryReplaceForTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO timetable_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO timetable_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entries := []models.TimetableEntry{
		{ClassID: "cls-1", CourseID: "crs-1", SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-1", Day: 1, SlotID: "slot-1", Batch: models.BatchWhole},
		{ClassID: "cls-1", CourseID: "crs-1", SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-1", Day: 2, SlotID: "slot-1", Batch: models.BatchWhole},
	}
	require.NoError(t, repo.ReplaceForTerm(context.Background(), "term-1", entries))
	assert.Equal(t, "term-1", entries[0].TermID)
	assert.NotEmpty(t, entries[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryReplaceForTermRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableEntryRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO timetable_entries").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	entries := []models.TimetableEntry{
		{ClassID: "cls-1", CourseID: "crs-1", SubjectID: "sub-1", TeacherID: "tch-1", ClassroomID: "room-1", Day: 1, SlotID: "slot-1", Batch: models.BatchWhole},
	}
	err := repo.ReplaceForTerm(context.Background(), "term-1", entries)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
