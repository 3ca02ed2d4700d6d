package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

func entryAt(day int, slotID string) *models.TimetableEntry {
	return &models.TimetableEntry{
		ClassID:     "cls-1",
		CourseID:    "crs-1",
		SubjectID:   "sub-1",
		TeacherID:   "tch-1",
		ClassroomID: "room-1",
		Day:         day,
		SlotID:      slotID,
		Batch:       models.BatchWhole,
	}
}

func TestAvailabilityIndexCommitAndRelease(t *testing.T) {
	idx := NewAvailabilityIndex()
	entry := entryAt(1, "s1")

	require.True(t, idx.IsFree(entry))
	require.NoError(t, idx.Commit(entry))

	assert.True(t, idx.TeacherBusy("tch-1", 1, "s1"))
	assert.True(t, idx.RoomBusy("room-1", 1, "s1"))
	assert.True(t, idx.ClassBusy("cls-1", models.BatchWhole, 1, "s1"))
	assert.False(t, idx.TeacherBusy("tch-1", 2, "s1"))

	idx.Release(entry)
	assert.True(t, idx.IsFree(entry))
}

func TestAvailabilityIndexCommitConflictNamesResource(t *testing.T) {
	idx := NewAvailabilityIndex()
	require.NoError(t, idx.Commit(entryAt(1, "s1")))

	dup := entryAt(1, "s1")
	dup.ClassID = "cls-2"
	dup.ClassroomID = "room-2"
	err := idx.Commit(dup)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	var conflict *models.EntryConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictTeacher, conflict.Kind)
	assert.Equal(t, "tch-1", conflict.ResourceID)
}

func TestAvailabilityIndexBatchSemantics(t *testing.T) {
	idx := NewAvailabilityIndex()

	b1 := entryAt(1, "s1")
	b1.Batch = "B1"
	require.NoError(t, idx.Commit(b1))

	// A second batch of the same class coexists in the cell when its
	// teacher and room differ.
	b2 := entryAt(1, "s1")
	b2.Batch = "B2"
	b2.TeacherID = "tch-2"
	b2.ClassroomID = "room-2"
	require.NoError(t, idx.Commit(b2))

	// The whole class conflicts with every batch key.
	assert.True(t, idx.ClassBusy("cls-1", models.BatchWhole, 1, "s1"))
	whole := entryAt(1, "s1")
	whole.TeacherID = "tch-3"
	whole.ClassroomID = "room-3"
	err := idx.Commit(whole)
	require.Error(t, err)

	var conflict *models.EntryConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, models.ConflictClass, conflict.Kind)
}

func TestAvailabilityIndexWholeBlocksBatches(t *testing.T) {
	idx := NewAvailabilityIndex()
	require.NoError(t, idx.Commit(entryAt(1, "s1")))

	batch := entryAt(1, "s1")
	batch.Batch = "B1"
	batch.TeacherID = "tch-2"
	batch.ClassroomID = "room-2"
	assert.True(t, idx.ClassBusy("cls-1", "B1", 1, "s1"))
	assert.False(t, idx.IsFree(batch))
}

func TestAvailabilityIndexLoad(t *testing.T) {
	idx := NewAvailabilityIndex()
	idx.Load([]models.TimetableEntry{*entryAt(1, "s1"), *entryAt(2, "s2")})

	assert.True(t, idx.TeacherBusy("tch-1", 1, "s1"))
	assert.True(t, idx.TeacherBusy("tch-1", 2, "s2"))
	assert.False(t, idx.TeacherBusy("tch-1", 3, "s1"))
}

func TestBatchKey(t *testing.T) {
	theory := &models.Course{BatchCount: 1}
	assert.Equal(t, models.BatchWhole, BatchKey(theory, 0))

	lab := &models.Course{BatchCount: 2}
	assert.Equal(t, "B1", BatchKey(lab, 0))
	assert.Equal(t, "B2", BatchKey(lab, 1))
}
