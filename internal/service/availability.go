package service

import (
	"fmt"

	appErrors "github.com/smartcampus/timetable-api/pkg/errors"

	"github.com/smartcampus/timetable-api/internal/models"
)

type resourceKey struct {
	Day    int
	SlotID string
}

type classKey struct {
	Day     int
	SlotID  string
	ClassID string
}

// AvailabilityIndex tracks which teachers, classrooms and class batches
// are occupied per (day, slot). Lookups and mutations are O(1); callers
// serialize access themselves.
type AvailabilityIndex struct {
	teachers map[resourceKey]map[string]struct{}
	rooms    map[resourceKey]map[string]struct{}
	classes  map[classKey]map[string]struct{}
}

// NewAvailabilityIndex builds an empty index.
func NewAvailabilityIndex() *AvailabilityIndex {
	return &AvailabilityIndex{
		teachers: make(map[resourceKey]map[string]struct{}),
		rooms:    make(map[resourceKey]map[string]struct{}),
		classes:  make(map[classKey]map[string]struct{}),
	}
}

// Load seeds the index from existing entries.
func (idx *AvailabilityIndex) Load(entries []models.TimetableEntry) {
	for i := range entries {
		idx.occupy(&entries[i])
	}
}

// TeacherBusy reports whether a teacher is occupied at (day, slot).
func (idx *AvailabilityIndex) TeacherBusy(teacherID string, day int, slotID string) bool {
	_, busy := idx.teachers[resourceKey{Day: day, SlotID: slotID}][teacherID]
	return busy
}

// RoomBusy reports whether a classroom is occupied at (day, slot).
func (idx *AvailabilityIndex) RoomBusy(classroomID string, day int, slotID string) bool {
	_, busy := idx.rooms[resourceKey{Day: day, SlotID: slotID}][classroomID]
	return busy
}

// ClassBusy reports whether a class cell is taken for the given batch.
// The whole-class key conflicts with every batch; two distinct batch
// keys coexist in the same cell.
func (idx *AvailabilityIndex) ClassBusy(classID string, batch string, day int, slotID string) bool {
	occupied := idx.classes[classKey{Day: day, SlotID: slotID, ClassID: classID}]
	if len(occupied) == 0 {
		return false
	}
	if batch == models.BatchWhole {
		return true
	}
	if _, busy := occupied[models.BatchWhole]; busy {
		return true
	}
	_, busy := occupied[batch]
	return busy
}

// IsFree reports whether an entry could occupy its cell without any
// teacher, classroom or class conflict.
func (idx *AvailabilityIndex) IsFree(entry *models.TimetableEntry) bool {
	return idx.findConflict(entry) == nil
}

// Commit marks an entry's resources busy. The occupancy re-check makes
// a stale caller fail loudly instead of corrupting the index.
func (idx *AvailabilityIndex) Commit(entry *models.TimetableEntry) error {
	if conflict := idx.findConflict(entry); conflict != nil {
		return appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Error())
	}
	idx.occupy(entry)
	return nil
}

// Release frees an entry's resources. Releasing an absent entry is a nop.
func (idx *AvailabilityIndex) Release(entry *models.TimetableEntry) {
	rk := resourceKey{Day: entry.Day, SlotID: entry.SlotID}
	delete(idx.teachers[rk], entry.TeacherID)
	delete(idx.rooms[rk], entry.ClassroomID)
	delete(idx.classes[classKey{Day: entry.Day, SlotID: entry.SlotID, ClassID: entry.ClassID}], batchOrWhole(entry.Batch))
}

func (idx *AvailabilityIndex) findConflict(entry *models.TimetableEntry) *models.EntryConflictError {
	if idx.TeacherBusy(entry.TeacherID, entry.Day, entry.SlotID) {
		return &models.EntryConflictError{Kind: models.ConflictTeacher, ResourceID: entry.TeacherID, Day: entry.Day, SlotID: entry.SlotID}
	}
	if idx.RoomBusy(entry.ClassroomID, entry.Day, entry.SlotID) {
		return &models.EntryConflictError{Kind: models.ConflictClassroom, ResourceID: entry.ClassroomID, Day: entry.Day, SlotID: entry.SlotID}
	}
	if idx.ClassBusy(entry.ClassID, batchOrWhole(entry.Batch), entry.Day, entry.SlotID) {
		return &models.EntryConflictError{Kind: models.ConflictClass, ResourceID: entry.ClassID, Day: entry.Day, SlotID: entry.SlotID}
	}
	return nil
}

func (idx *AvailabilityIndex) occupy(entry *models.TimetableEntry) {
	rk := resourceKey{Day: entry.Day, SlotID: entry.SlotID}
	if idx.teachers[rk] == nil {
		idx.teachers[rk] = make(map[string]struct{})
	}
	idx.teachers[rk][entry.TeacherID] = struct{}{}

	if idx.rooms[rk] == nil {
		idx.rooms[rk] = make(map[string]struct{})
	}
	idx.rooms[rk][entry.ClassroomID] = struct{}{}

	ck := classKey{Day: entry.Day, SlotID: entry.SlotID, ClassID: entry.ClassID}
	if idx.classes[ck] == nil {
		idx.classes[ck] = make(map[string]struct{})
	}
	idx.classes[ck][batchOrWhole(entry.Batch)] = struct{}{}
}

func batchOrWhole(batch string) string {
	if batch == "" {
		return models.BatchWhole
	}
	return batch
}

// BatchKey renders the batch identity for one of a course's groups.
// Group 0 (or a single-batch course) is the whole class.
func BatchKey(course *models.Course, group int) string {
	if course.BatchCount <= 1 {
		return models.BatchWhole
	}
	return fmt.Sprintf("B%d", group+1)
}
