// Package models contains domain types for the eryxon-flow engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Cell represents a production work center. Sequence defines a total order
// used for "next cell" lookups within a tenant.
type Cell struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Sequence  int       `json:"sequence"`
	// WIPLimit is the maximum concurrent in-progress operations at the
	// cell. Zero means no limit is configured: capacity checks report the
	// cell as never saturated.
	WIPLimit  int       `json:"wip_limit"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Unlimited reports whether the cell has no configured WIP ceiling.
func (c *Cell) Unlimited() bool {
	return c.WIPLimit <= 0
}
