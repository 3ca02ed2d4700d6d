package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

type mockTeacherRepo struct {
	items   map[string]*models.Teacher
	deleted []string
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	var out []models.Teacher
	for _, t := range m.items {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type mockCourseCounter struct{ counts map[string]int }

func (m mockCourseCounter) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	return m.counts[teacherID], nil
}

func TestTeacherServiceCreateDefaultsPreference(t *testing.T) {
	repo := &mockTeacherRepo{}
	svc := NewTeacherService(repo, mockCourseCounter{}, validator.New(), zap.NewNop())

	teacher, err := svc.Create(context.Background(), CreateTeacherRequest{FullName: "Teacher One"})
	require.NoError(t, err)
	assert.Equal(t, models.TeacherPreferenceNone, teacher.Preference)
	assert.Len(t, repo.items, 1)
}

func TestTeacherServiceCreateRejectsBadPreference(t *testing.T) {
	svc := NewTeacherService(&mockTeacherRepo{}, mockCourseCounter{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateTeacherRequest{FullName: "Teacher One", Preference: "EVENING"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestTeacherServiceDeleteBlockedWhileReferenced(t *testing.T) {
	repo := &mockTeacherRepo{items: map[string]*models.Teacher{
		"t1": {ID: "t1", FullName: "Teacher One"},
	}}
	svc := NewTeacherService(repo, mockCourseCounter{counts: map[string]int{"t1": 2}}, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), "t1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.deleted)
}

func TestTeacherServiceDelete(t *testing.T) {
	repo := &mockTeacherRepo{items: map[string]*models.Teacher{
		"t1": {ID: "t1", FullName: "Teacher One"},
	}}
	svc := NewTeacherService(repo, mockCourseCounter{}, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, repo.deleted)
}
