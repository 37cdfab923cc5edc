package model

import (
	"strings"

	"github.com/google/uuid"
)

// Administration is a node of the administrative hierarchy. The tree is
// maintained elsewhere; this service only reads it.
type Administration struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	Name     string     `gorm:"type:varchar(255);not null" json:"name"`
	Level    Level      `gorm:"not null;index" json:"level"`
	// Path holds the ancestor ids root-first, each followed by a dot. Empty for the root.
	Path string `gorm:"type:text;not null;default:'';index" json:"path"`
}

// FullPath is the path of this node including itself, suitable as a prefix for descendants.
func (a Administration) FullPath() string {
	return a.Path + a.ID.String() + "."
}

// AncestorIDs parses Path into ids, root first.
func (a Administration) AncestorIDs() ([]uuid.UUID, error) {
	parts := strings.Split(strings.TrimSuffix(a.Path, "."), ".")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Contains reports whether other is this node or one of its descendants.
func (a Administration) Contains(other Administration) bool {
	return other.ID == a.ID || strings.HasPrefix(other.Path, a.FullPath())
}

// UnderPath reports whether this node's full path starts with prefix.
func (a Administration) UnderPath(prefix string) bool {
	return strings.HasPrefix(a.FullPath(), prefix)
}
