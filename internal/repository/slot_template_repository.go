package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/smartcampus/timetable-api/internal/models"
)

const slotColumns = "id, term_id, position, start_time, end_time, is_break, break_name, created_at"

// SlotTemplateRepository manages the shared daily slot template of a term.
type SlotTemplateRepository struct {
	db *sqlx.DB
}

// NewSlotTemplateRepository constructs a SlotTemplateRepository.
func NewSlotTemplateRepository(db *sqlx.DB) *SlotTemplateRepository {
	return &SlotTemplateRepository{db: db}
}

// ListByTerm returns a term's template slots in position order.
func (r *SlotTemplateRepository) ListByTerm(ctx context.Context, termID string) ([]models.TemplateSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM template_slots WHERE term_id = $1 ORDER BY position ASC", slotColumns)
	var slots []models.TemplateSlot
	if err := r.db.SelectContext(ctx, &slots, query, termID); err != nil {
		return nil, fmt.Errorf("list template slots: %w", err)
	}
	return slots, nil
}

// FindByID fetches a template slot by ID.
func (r *SlotTemplateRepository) FindByID(ctx context.Context, id string) (*models.TemplateSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM template_slots WHERE id = $1", slotColumns)
	var slot models.TemplateSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ReplaceForTerm atomically swaps a term's slot template. The term's
// timetable entries are deleted in the same transaction because every
// existing placement references the old slot rows.
func (r *SlotTemplateRepository) ReplaceForTerm(ctx context.Context, termID string, slots []models.TemplateSlot) ([]models.TemplateSlot, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace template: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM timetable_entries WHERE term_id = $1", termID); err != nil {
		return nil, fmt.Errorf("clear term entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM template_slots WHERE term_id = $1", termID); err != nil {
		return nil, fmt.Errorf("clear term slots: %w", err)
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO template_slots (id, term_id, position, start_time, end_time, is_break, break_name, created_at)
		VALUES (:id, :term_id, :position, :start_time, :end_time, :is_break, :break_name, :created_at)`
	for i := range slots {
		slots[i].ID = uuid.NewString()
		slots[i].TermID = termID
		slots[i].Position = i + 1
		slots[i].CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, slots[i]); err != nil {
			return nil, fmt.Errorf("insert template slot %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace template: %w", err)
	}
	return slots, nil
}
