package dto

import "github.com/smartcampus/timetable-api/internal/models"

// GenerateTimetableResponse summarises a full regeneration run.
type GenerateTimetableResponse struct {
	TermID      string                   `json:"termId"`
	PlacedCount int                      `json:"placedCount"`
	Unplaced    []models.UnplacedSession `json:"unplaced"`
}

// UpsertSlotRequest creates or moves a single timetable entry.
type UpsertSlotRequest struct {
	Day         int    `json:"day" validate:"required,min=1,max=7"`
	SlotID      string `json:"slotId" validate:"required"`
	ClassID     string `json:"classId" validate:"required"`
	SubjectID   string `json:"subjectId" validate:"required"`
	TeacherID   string `json:"teacherId" validate:"required"`
	ClassroomID string `json:"classroomId" validate:"required"`
	Batch       string `json:"batch"`
	EntryID     string `json:"entryId"`
}

// GridCell is one occupied cell in a class grid. Lab batches may stack
// several cells onto the same day/slot coordinate.
type GridCell struct {
	EntryID       string `json:"entryId"`
	CourseID      string `json:"courseId"`
	SubjectName   string `json:"subjectName"`
	SubjectCode   string `json:"subjectCode"`
	TeacherName   string `json:"teacherName"`
	ClassroomName string `json:"classroomName"`
	Batch         string `json:"batch"`
	IsLab         bool   `json:"isLab"`
}

// GridSlot describes one template row of the grid.
type GridSlot struct {
	SlotID    string `json:"slotId"`
	Label     string `json:"label"`
	IsBreak   bool   `json:"isBreak"`
	BreakName string `json:"breakName,omitempty"`
}

// TimetableGrid is the per-class week view: days x template slots.
type TimetableGrid struct {
	TermID    string                           `json:"termId"`
	ClassID   string                           `json:"classId"`
	ClassName string                           `json:"className"`
	Days      []int                            `json:"days"`
	Slots     []GridSlot                       `json:"slots"`
	Cells     map[string]map[string][]GridCell `json:"cells"` // day name -> slot id -> cells
}

// ReplaceSlotTemplateRequest swaps a term's daily slot template. Applying
// it destroys the term's timetable entries (regenerate policy).
type ReplaceSlotTemplateRequest struct {
	Slots []SlotTemplateItem `json:"slots" validate:"required,min=1,dive"`
}

// SlotTemplateItem is one period definition in template order.
type SlotTemplateItem struct {
	StartTime string `json:"startTime" validate:"required"`
	EndTime   string `json:"endTime" validate:"required"`
	IsBreak   bool   `json:"isBreak"`
	BreakName string `json:"breakName"`
}
