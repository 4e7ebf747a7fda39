package handlers

import (
	"github.com/gin-gonic/gin"

	"sdmox/internal/domain/orgsync"
	"sdmox/internal/infrastructure/http/v1/dto"
)

// UnitHandler triggers unit operations.
type UnitHandler struct {
	*BaseHandler
	service orgsync.Interface
}

// NewUnitHandler creates a unit handler.
func NewUnitHandler(base *BaseHandler, service orgsync.Interface) *UnitHandler {
	return &UnitHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers unit routes.
func (h *UnitHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:uuid", h.Create)
	rg.POST("/:uuid/rename", h.Rename)
	rg.POST("/:uuid/move", h.Move)
	rg.POST("/:uuid/addresses", h.CreateAddress)
	rg.PUT("/:uuid/addresses", h.EditAddress)
}

// Rename handles POST /units/:uuid/rename.
func (h *UnitHandler) Rename(c *gin.Context) {
	var req dto.RenameRequest
	if !h.BindJSON(c, &req) {
		return
	}
	at, ok := h.ParseDate(c, req.At)
	if !ok {
		return
	}
	dry, ok := h.DryRun(c)
	if !ok {
		return
	}
	h.respond(c, func() (*orgsync.Result, error) {
		return h.service.RenameUnit(c.Request.Context(), c.Param("uuid"), req.Name, at, dry)
	})
}

// Move handles POST /units/:uuid/move.
func (h *UnitHandler) Move(c *gin.Context) {
	var req dto.MoveRequest
	if !h.BindJSON(c, &req) {
		return
	}
	at, ok := h.ParseDate(c, req.At)
	if !ok {
		return
	}
	dry, ok := h.DryRun(c)
	if !ok {
		return
	}
	h.respond(c, func() (*orgsync.Result, error) {
		return h.service.MoveUnit(c.Request.Context(), c.Param("uuid"), req.ParentUUID, at, dry)
	})
}

// Create handles POST /units/:uuid.
func (h *UnitHandler) Create(c *gin.Context) {
	var req dto.CreateRequest
	if !h.BindJSON(c, &req) {
		return
	}
	at, ok := h.ParseDate(c, req.At)
	if !ok {
		return
	}
	dry, ok := h.DryRun(c)
	if !ok {
		return
	}
	res, err := h.service.CreateUnit(c.Request.Context(), c.Param("uuid"), &req.Unit, &req.Parent, at, dry)
	if err != nil {
		h.Error(c, err)
		return
	}
	if dry {
		h.OK(c, dto.FromResult(res))
		return
	}
	h.Created(c, dto.FromResult(res))
}

// CreateAddress handles POST /units/:uuid/addresses.
func (h *UnitHandler) CreateAddress(c *gin.Context) {
	var req dto.AddressRequest
	if !h.BindJSON(c, &req) {
		return
	}
	at, ok := h.ParseDate(c, req.At)
	if !ok {
		return
	}
	dry, ok := h.DryRun(c)
	if !ok {
		return
	}
	h.respond(c, func() (*orgsync.Result, error) {
		return h.service.CreateAddress(c.Request.Context(), c.Param("uuid"), req.Address, at, dry)
	})
}

// EditAddress handles PUT /units/:uuid/addresses.
func (h *UnitHandler) EditAddress(c *gin.Context) {
	var req dto.AddressRequest
	if !h.BindJSON(c, &req) {
		return
	}
	at, ok := h.ParseDate(c, req.At)
	if !ok {
		return
	}
	dry, ok := h.DryRun(c)
	if !ok {
		return
	}
	h.respond(c, func() (*orgsync.Result, error) {
		return h.service.EditAddress(c.Request.Context(), c.Param("uuid"), req.Address, at, dry)
	})
}

func (h *UnitHandler) respond(c *gin.Context, fn func() (*orgsync.Result, error)) {
	res, err := fn()
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromResult(res))
}
