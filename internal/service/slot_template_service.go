package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/models"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
)

type slotTemplateRepository interface {
	ListByTerm(ctx context.Context, termID string) ([]models.TemplateSlot, error)
	ReplaceForTerm(ctx context.Context, termID string, slots []models.TemplateSlot) ([]models.TemplateSlot, error)
}

type templateTermReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type templateGridCache interface {
	InvalidateTerm(ctx context.Context, termID string)
}

// SlotTemplateService manages the shared daily period template of a term.
// Replacing a template destroys the term's timetable entries, so the
// swap competes with generation for the term lock.
type SlotTemplateService struct {
	repo      slotTemplateRepository
	terms     templateTermReader
	grids     templateGridCache
	gate      *termLockGate
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSlotTemplateService constructs a SlotTemplateService.
func NewSlotTemplateService(repo slotTemplateRepository, terms templateTermReader, grids templateGridCache, gate *termLockGate, validate *validator.Validate, logger *zap.Logger) *SlotTemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = newTermLockGate()
	}
	return &SlotTemplateService{repo: repo, terms: terms, grids: grids, gate: gate, validator: validate, logger: logger}
}

// Get returns a term's template slots in position order.
func (s *SlotTemplateService) Get(ctx context.Context, termID string) ([]models.TemplateSlot, error) {
	if err := s.ensureTerm(ctx, termID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot template")
	}
	return slots, nil
}

// Replace swaps a term's slot template and drops its timetable.
func (s *SlotTemplateService) Replace(ctx context.Context, termID string, req dto.ReplaceSlotTemplateRequest) ([]models.TemplateSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot template payload")
	}
	if err := s.ensureTerm(ctx, termID); err != nil {
		return nil, err
	}
	slots, err := templateFromRequest(req)
	if err != nil {
		return nil, err
	}

	release, ok := s.gate.TryGenerate(termID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrGenerationBusy, "")
	}
	defer release()

	saved, err := s.repo.ReplaceForTerm(ctx, termID, slots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace slot template")
	}

	if s.grids != nil {
		s.grids.InvalidateTerm(ctx, termID)
	}
	s.logger.Info("slot template replaced", zap.String("term_id", termID), zap.Int("slots", len(saved)))
	return saved, nil
}

func (s *SlotTemplateService) ensureTerm(ctx context.Context, termID string) error {
	if _, err := s.terms.FindByID(ctx, termID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return nil
}

func templateFromRequest(req dto.ReplaceSlotTemplateRequest) ([]models.TemplateSlot, error) {
	slots := make([]models.TemplateSlot, 0, len(req.Slots))
	previousEnd := ""
	for i, item := range req.Slots {
		start, err := parseClock(item.StartTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %d: invalid start time %q", i+1, item.StartTime))
		}
		end, err := parseClock(item.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %d: invalid end time %q", i+1, item.EndTime))
		}
		if !end.After(start) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %d: end time must come after start time", i+1))
		}
		if previousEnd != "" && item.StartTime < previousEnd {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %d: overlaps the previous slot", i+1))
		}
		previousEnd = item.EndTime

		slot := models.TemplateSlot{
			StartTime: item.StartTime,
			EndTime:   item.EndTime,
			IsBreak:   item.IsBreak,
		}
		if item.IsBreak {
			name := strings.TrimSpace(item.BreakName)
			if name == "" {
				name = "Break"
			}
			slot.BreakName = &name
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

func parseClock(raw string) (time.Time, error) {
	return time.Parse("15:04", raw)
}
