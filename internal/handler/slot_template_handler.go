package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartcampus/timetable-api/internal/dto"
	"github.com/smartcampus/timetable-api/internal/service"
	appErrors "github.com/smartcampus/timetable-api/pkg/errors"
	"github.com/smartcampus/timetable-api/pkg/response"
)

// SlotTemplateHandler wires the daily slot template to HTTP routes.
type SlotTemplateHandler struct {
	template *service.SlotTemplateService
}

// NewSlotTemplateHandler constructs a new SlotTemplateHandler.
func NewSlotTemplateHandler(template *service.SlotTemplateService) *SlotTemplateHandler {
	return &SlotTemplateHandler{template: template}
}

// Get godoc
// @Summary Get the slot template of a term
// @Tags Slot Template
// @Produce json
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{termId}/slot-template [get]
func (h *SlotTemplateHandler) Get(c *gin.Context) {
	slots, err := h.template.Get(c.Request.Context(), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Replace godoc
// @Summary Replace the slot template of a term
// @Description Replaces the whole template atomically. Existing timetable entries of the term are dropped because they reference the old slots.
// @Tags Slot Template
// @Accept json
// @Produce json
// @Param termId path string true "Term ID"
// @Param payload body dto.ReplaceSlotTemplateRequest true "Template payload"
// @Success 200 {object} response.Envelope
// @Router /terms/{termId}/slot-template [put]
func (h *SlotTemplateHandler) Replace(c *gin.Context) {
	var req dto.ReplaceSlotTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid template payload"))
		return
	}
	slots, err := h.template.Replace(c.Request.Context(), c.Param("termId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
