// Package security provides authorization for the stock service.
// Decisions are made by a PermissionOracle keyed by (user, resource, action).
package security

import (
	"context"

	appctx "github.com/alvarodevdoo/ERP-sub000/internal/core/context"
)

// Resource names a guarded area of the system.
type Resource string

// ResourceStock guards every stock ledger operation.
const ResourceStock Resource = "stock"

// Action is a permission verb checked against a resource.
type Action string

const (
	ActionRead            Action = "read"
	ActionWrite           Action = "write"
	ActionAdjust          Action = "adjust"
	ActionTransfer        Action = "transfer"
	ActionReserve         Action = "reserve"
	ActionManageLocations Action = "manage_locations"
	ActionReport          Action = "report"
)

// StockActions lists every action the stock resource understands.
var StockActions = []Action{
	ActionRead, ActionWrite, ActionAdjust, ActionTransfer,
	ActionReserve, ActionManageLocations, ActionReport,
}

// PermissionOracle answers whether a user may perform an action on a resource.
type PermissionOracle interface {
	CheckPermission(ctx context.Context, userID string, resource Resource, action Action) (bool, error)
}

// Subject is what the oracle knows about a user when deciding.
type Subject struct {
	UserID      string
	Roles       []string
	Permissions []string
	IsAdmin     bool
}

// SubjectResolver loads the subject for a user id. A nil subject means unknown.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, userID string) (*Subject, error)
}

// ContextSubjects resolves subjects from the authenticated user in the request
// context. A user id that does not match the authenticated user resolves to nil.
type ContextSubjects struct{}

// ResolveSubject implements SubjectResolver.
func (ContextSubjects) ResolveSubject(ctx context.Context, userID string) (*Subject, error) {
	user := appctx.GetUser(ctx)
	if user == nil || user.UserID == "" || user.UserID != userID {
		return nil, nil
	}
	return &Subject{
		UserID:      user.UserID,
		Roles:       user.Roles,
		Permissions: user.Permissions,
		IsAdmin:     user.IsAdmin,
	}, nil
}

// StaticSubjects is a fixed user table, used by tools and tests.
type StaticSubjects map[string]Subject

// ResolveSubject implements SubjectResolver.
func (s StaticSubjects) ResolveSubject(_ context.Context, userID string) (*Subject, error) {
	subject, ok := s[userID]
	if !ok {
		return nil, nil
	}
	return &subject, nil
}
