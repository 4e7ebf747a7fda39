package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sdmox/internal/core/id"
	"sdmox/internal/domain/orgsync"
	"sdmox/internal/infrastructure/http/v1/dto"
	"sdmox/internal/infrastructure/storage/postgres"
)

// JournalReader reads submitted changes. Satisfied by *postgres.Journal.
type JournalReader interface {
	Get(ctx context.Context, entryID id.ID) (*orgsync.JournalEntry, error)
	List(ctx context.Context, filter postgres.JournalFilter) ([]*orgsync.JournalEntry, error)
}

// JournalHandler exposes the submission journal.
type JournalHandler struct {
	*BaseHandler
	journal JournalReader
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(base *BaseHandler, journal JournalReader) *JournalHandler {
	return &JournalHandler{BaseHandler: base, journal: journal}
}

// RegisterRoutes registers journal routes.
func (h *JournalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
}

// Get handles GET /journal/:id.
func (h *JournalHandler) Get(c *gin.Context) {
	entryID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}
	entry, err := h.journal.Get(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromJournalEntry(entry))
}

// List handles GET /journal.
func (h *JournalHandler) List(c *gin.Context) {
	var req dto.JournalListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	entries, err := h.journal.List(c.Request.Context(), postgres.JournalFilter{
		UnitUUID: req.UnitUUID,
		Status:   orgsync.JournalStatus(req.Status),
		Limit:    req.Limit,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]dto.JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, dto.FromJournalEntry(e))
	}
	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}
