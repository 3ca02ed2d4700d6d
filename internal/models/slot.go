package models

import "time"

// TemplateSlot is one period in the shared daily slot template for a term.
// Slots are ordered by Position and shared by every day and every class.
type TemplateSlot struct {
	ID        string    `db:"id" json:"id"`
	TermID    string    `db:"term_id" json:"term_id"`
	Position  int       `db:"position" json:"position"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	IsBreak   bool      `db:"is_break" json:"is_break"`
	BreakName *string   `db:"break_name" json:"break_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Label renders the slot's display interval, e.g. "09:00 - 10:00".
func (s TemplateSlot) Label() string {
	return s.StartTime + " - " + s.EndTime
}
