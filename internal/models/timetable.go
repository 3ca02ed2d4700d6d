package models

import (
	"fmt"
	"time"
)

// BatchWhole is the batch key for sessions taught to the entire class.
const BatchWhole = "whole"

// TimetableEntry is one concrete placement: on Day, in SlotID, the course's
// teacher teaches its subject to the class (or one batch of it) in a classroom.
type TimetableEntry struct {
	ID          string    `db:"id" json:"id"`
	TermID      string    `db:"term_id" json:"term_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	Day         int       `db:"day" json:"day"`
	SlotID      string    `db:"slot_id" json:"slot_id"`
	Batch       string    `db:"batch" json:"batch"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableEntryDetail joins display names onto an entry for grid rendering.
type TimetableEntryDetail struct {
	TimetableEntry
	SubjectName   string `db:"subject_name" json:"subject_name"`
	SubjectCode   string `db:"subject_code" json:"subject_code"`
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	ClassroomName string `db:"classroom_name" json:"classroom_name"`
	IsLab         bool   `db:"is_lab" json:"is_lab"`
}

// UnplacedReason classifies why a required session could not be placed.
type UnplacedReason string

const (
	ReasonNoTeacherSlot   UnplacedReason = "NO_TEACHER_SLOT"
	ReasonNoClassroomSlot UnplacedReason = "NO_CLASSROOM_SLOT"
	ReasonNoDayLeft       UnplacedReason = "NO_DAY_LEFT"
)

// UnplacedSession reports one session the generator could not schedule.
// Partial infeasibility is a normal outcome, never an error.
type UnplacedSession struct {
	CourseID string         `json:"course_id"`
	Batch    string         `json:"batch"`
	Reason   UnplacedReason `json:"reason"`
}

// ConflictKind names the resource dimension an edit collided on.
type ConflictKind string

const (
	ConflictTeacher   ConflictKind = "TEACHER"
	ConflictClassroom ConflictKind = "CLASSROOM"
	ConflictClass     ConflictKind = "CLASS"
)

// EntryConflictError is returned when a slot edit collides with an
// existing booking. It names the conflicting resource so callers can
// re-prompt the user.
type EntryConflictError struct {
	Kind       ConflictKind `json:"kind"`
	ResourceID string       `json:"resource_id"`
	Day        int          `json:"day"`
	SlotID     string       `json:"slot_id"`
}

// Error implements the error interface.
func (e *EntryConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s already booked on day %d slot %s", e.Kind, e.ResourceID, e.Day, e.SlotID)
}

var dayNames = map[int]string{
	1: "MON",
	2: "TUE",
	3: "WED",
	4: "THU",
	5: "FRI",
	6: "SAT",
	7: "SUN",
}

// DayName renders an ISO weekday number as its short label.
func DayName(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return fmt.Sprintf("DAY-%d", day)
}
