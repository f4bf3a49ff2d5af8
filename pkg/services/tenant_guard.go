package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/apperrors"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
)

// requireTenant verifies the explicit tenantID argument against the tenant
// the context's connection is scoped to. RLS already isolates the data; the
// check catches callers that mix tenants when composing requests, turning a
// silent empty result into an explicit error.
func requireTenant(ctx context.Context, tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant id is required", apperrors.ErrValidation)
	}
	scoped, ok := database.GetTenantID(ctx)
	if ok && scoped != tenantID {
		return fmt.Errorf("%w: tenant mismatch", apperrors.ErrNotFound)
	}
	return nil
}
