package models

import "time"

// Classroom represents a physical room. Lab sessions require IsLab rooms,
// theory sessions require non-lab rooms.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	IsLab     bool      `db:"is_lab" json:"is_lab"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassroomFilter defines filter criteria for listing classrooms.
type ClassroomFilter struct {
	Search    string
	IsLab     *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
