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

func TestCourseRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "subject_id", "teacher_id", "weekly_lectures", "is_lab", "batch_count", "created_at", "updated_at"}).
		AddRow("crs-1", "cls-1", "sub-1", "tch-1", 4, false, 1, now, now).
		AddRow("crs-2", "cls-1", "sub-2", "tch-2", 2, true, 2, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses ORDER BY id")).
		WillReturnRows(rows)

	courses, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, 4, courses[0].WeeklyLectures)
	assert.True(t, courses[1].IsLab)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateDefaultsBatchCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WithArgs(sqlmock.AnyArg(), "cls-1", "sub-1", "tch-1", 3, false, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{ClassID: "cls-1", SubjectID: "sub-1", TeacherID: "tch-1", WeeklyLectures: 3}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.Equal(t, 1, course.BatchCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByAssignment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "subject_id", "teacher_id", "weekly_lectures", "is_lab", "batch_count", "created_at", "updated_at"}).
		AddRow("crs-1", "cls-1", "sub-1", "tch-1", 4, false, 1, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE class_id = $1 AND subject_id = $2 AND teacher_id = $3")).
		WithArgs("cls-1", "sub-1", "tch-1").
		WillReturnRows(rows)

	course, err := repo.FindByAssignment(context.Background(), "cls-1", "sub-1", "tch-1")
	require.NoError(t, err)
	assert.Equal(t, "crs-1", course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteCascades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_entries WHERE course_id = $1")).
		WithArgs("crs-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs("crs-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "crs-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
