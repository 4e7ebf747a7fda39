// Package level maps directory level classes to registry level names and
// enforces that a unit always sits strictly below its parent.
package level

import (
	"context"
	"fmt"

	"sdmox/internal/core/apperror"
	"sdmox/internal/domain/orgunit"
)

// Facet is the directory facet that holds unit levels.
const Facet = "org_unit_level"

// Level is one entry of the ordered hierarchy.
type Level struct {
	Name      string
	ClassUUID string
}

// Hierarchy is the configured level order, top first. It is immutable.
type Hierarchy struct {
	levels  []Level
	rank    map[string]int
	byClass map[string]string
}

// New builds a hierarchy from ordered level names and the directory's
// user-key to class-uuid table. Every configured name must exist in classes.
func New(names []string, classes map[string]string) (*Hierarchy, error) {
	if len(names) == 0 {
		return nil, apperror.NewValidation("level hierarchy is empty")
	}
	h := &Hierarchy{
		levels:  make([]Level, 0, len(names)),
		rank:    make(map[string]int, len(names)),
		byClass: make(map[string]string, len(names)),
	}
	for i, name := range names {
		if _, dup := h.rank[name]; dup {
			return nil, apperror.NewValidation(fmt.Sprintf("level %q listed twice", name))
		}
		classUUID, ok := classes[name]
		if !ok {
			return nil, apperror.NewUnknownLevel(name)
		}
		h.levels = append(h.levels, Level{Name: name, ClassUUID: classUUID})
		h.rank[name] = i
		h.byClass[classUUID] = name
	}
	return h, nil
}

// Load reads the level facet from the directory and builds the hierarchy.
func Load(ctx context.Context, reader orgunit.ClassReader, names []string) (*Hierarchy, error) {
	classes, err := reader.ReadFacetClasses(ctx, Facet)
	if err != nil {
		return nil, fmt.Errorf("read level classes: %w", err)
	}
	return New(names, classes)
}

// Levels returns the hierarchy top first.
func (h *Hierarchy) Levels() []Level {
	return append([]Level(nil), h.levels...)
}

// RankOf returns the position of name; 0 is the top level.
func (h *Hierarchy) RankOf(name string) (int, error) {
	r, ok := h.rank[name]
	if !ok {
		return 0, apperror.NewUnknownLevel(name)
	}
	return r, nil
}

// Resolve maps a directory class uuid to its level name.
func (h *Hierarchy) Resolve(classUUID string) (string, error) {
	name, ok := h.byClass[classUUID]
	if !ok {
		return "", apperror.NewUnknownLevel(classUUID)
	}
	return name, nil
}

// CheckBelow verifies that unitLevel ranks strictly below parentLevel.
func (h *Hierarchy) CheckBelow(unitLevel, parentLevel string) error {
	unitRank, err := h.RankOf(unitLevel)
	if err != nil {
		return err
	}
	parentRank, err := h.RankOf(parentLevel)
	if err != nil {
		return err
	}
	if unitRank <= parentRank {
		return apperror.NewStructural(unitLevel, parentLevel)
	}
	return nil
}
