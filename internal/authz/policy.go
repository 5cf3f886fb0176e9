package authz

import (
	"fmt"

	"jobtrack/internal/store"

	"github.com/google/uuid"
)

// Action is a coarse operation class on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceKind tells the policy how strict the role requirement is.
type ResourceKind string

const (
	KindJob      ResourceKind = "job"
	KindStage    ResourceKind = "stage"
	KindReminder ResourceKind = "reminder"
	KindAudit    ResourceKind = "audit"
	KindUser     ResourceKind = "user"
)

// Resource is the target of an access decision. TenantID is nil only for
// shared system records.
type Resource struct {
	Kind      ResourceKind
	ID        uuid.UUID
	TenantID  *uuid.UUID
	CreatedBy uuid.UUID
}

// PermissionDenied is the typed denial returned by Authorize. It is terminal
// for the request and never retried.
type PermissionDenied struct {
	Action     Action
	ResourceID uuid.UUID
}

func (e *PermissionDenied) Error() string {
	return fmt.Sprintf("permission denied: %s on %s", e.Action, e.ResourceID)
}

// Authorize is the pure access decision: (principal, action, resource). It
// takes an already-resolved Principal and performs no lookups of its own, so
// policy evaluation can never recurse into itself.
//
// Precedence:
//  1. cross-tenant admins always pass
//  2. creating a resource you author in your own tenant passes
//  3. same tenant with a sufficient role passes
//  4. everything else is denied
func Authorize(p Principal, action Action, res Resource) error {
	deny := &PermissionDenied{Action: action, ResourceID: res.ID}

	if p.Role == store.RoleCrossTenantAdmin {
		return nil
	}

	if p.Role == store.RoleNone || p.TenantID == nil {
		return deny
	}

	if action == ActionCreate && res.CreatedBy == p.ID &&
		res.TenantID != nil && sameTenant(p.TenantID, res.TenantID) {
		return nil
	}

	if !sameTenant(p.TenantID, res.TenantID) {
		return deny
	}

	// Shared system records are readable by everyone but mutable only by
	// cross-tenant admins, which rule 1 already handled.
	if res.TenantID == nil && action != ActionRead {
		return deny
	}

	if roleSufficient(p, action, res) {
		return nil
	}

	return deny
}

func roleSufficient(p Principal, action Action, res Resource) bool {
	switch action {
	case ActionRead:
		return true
	case ActionCreate:
		// Adding principals to a tenant is a managerial act.
		if res.Kind == KindUser {
			return p.Role == store.RoleManager
		}
		return true
	case ActionUpdate, ActionDelete:
		if p.Role == store.RoleManager {
			return true
		}
		// Members may update their own sub-resources, but stage and job
		// records require a manager.
		if res.Kind == KindStage || res.Kind == KindJob {
			return false
		}
		return res.CreatedBy == p.ID
	default:
		return false
	}
}

// sameTenant treats a nil resource tenant as shared: tenant-scoped
// principals may read shared system records but the tenants must otherwise
// match exactly.
func sameTenant(principalTenant, resourceTenant *uuid.UUID) bool {
	if resourceTenant == nil {
		return true
	}
	if principalTenant == nil {
		return false
	}
	return *principalTenant == *resourceTenant
}
