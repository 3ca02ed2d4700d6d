package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/timetable-api/internal/models"
)

func TestSlotTemplateRepositoryListByTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotTemplateRepository(db)

	rows := sqlmock.NewRows([]string{"id", "term_id", "position", "start_time", "end_time", "is_break", "break_name", "created_at"}).
		AddRow("s1", "term-1", 1, "08:00", "09:00", false, nil, time.Now()).
		AddRow("s2", "term-1", 2, "09:00", "09:15", true, "Recess", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM template_slots WHERE term_id = $1 ORDER BY position ASC")).
		WithArgs("term-1").
		WillReturnRows(rows)

	slots, err := repo.ListByTerm(context.Background(), "term-1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.False(t, slots[0].IsBreak)
	assert.True(t, slots[1].IsBreak)
	assert.Equal(t, "08:00 - 09:00", slots[0].Label())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotTemplateRepositoryReplaceForTerm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSlotTemplateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM template_slots WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO template_slots").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO template_slots").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	slots := []models.TemplateSlot{
		{StartTime: "08:00", EndTime: "09:00"},
		{StartTime: "09:00", EndTime: "10:00"},
	}
	saved, err := repo.ReplaceForTerm(context.Background(), "term-1", slots)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, 1, saved[0].Position)
	assert.Equal(t, 2, saved[1].Position)
	assert.Equal(t, "term-1", saved[0].TermID)
	assert.NotEmpty(t, saved[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
