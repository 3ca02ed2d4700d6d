package models

import "time"

// TeacherPreference is a soft scheduling hint, never a hard constraint.
type TeacherPreference string

const (
	TeacherPreferenceNone      TeacherPreference = "NONE"
	TeacherPreferenceMorning   TeacherPreference = "MORNING"
	TeacherPreferenceAfternoon TeacherPreference = "AFTERNOON"
)

// Teacher represents an instructor record.
type Teacher struct {
	ID         string            `db:"id" json:"id"`
	FullName   string            `db:"full_name" json:"full_name"`
	Preference TeacherPreference `db:"preference" json:"preference"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
