package models

import "time"

// Course is a weekly teaching assignment: one teacher teaches one subject
// to one class. WeeklyLectures is the number of sessions the generator
// must place each week; lab courses may additionally split the class
// into BatchCount batches, each requiring the full weekly count.
type Course struct {
	ID             string    `db:"id" json:"id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	WeeklyLectures int       `db:"weekly_lectures" json:"weekly_lectures"`
	IsLab          bool      `db:"is_lab" json:"is_lab"`
	BatchCount     int       `db:"batch_count" json:"batch_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches a course with display names for list views.
type CourseDetail struct {
	Course
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	ClassID   string
	TeacherID string
	SubjectID string
	Page      int
	PageSize  int
}
