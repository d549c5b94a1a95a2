package plan

import "context"

// Store is the persistence gateway for organizations, plans and satellite
// collections. Implementations return ErrNotFound for absent rows.
type Store interface {
	// OwnerOrganizations lists the organizations where userID holds OwnerRole.
	OwnerOrganizations(ctx context.Context, userID string) ([]Organization, error)
	FindPlan(ctx context.Context, orgID, ownerUserID string) (Plan, error)
	// EnsurePlan returns the user's plan, creating the organization, owner
	// membership and plan it needs. Concurrent calls for one user converge on
	// the same rows.
	EnsurePlan(ctx context.Context, userID string) (Organization, Plan, error)
	// CreatePlan returns the plan for (orgID, ownerUserID), creating it if missing.
	CreatePlan(ctx context.Context, orgID, ownerUserID string) (Plan, error)
	GetPlan(ctx context.Context, planID string) (Plan, error)
	GetProfile(ctx context.Context, planID string) (Profile, error)
	SaveProfile(ctx context.Context, planID string, data map[string]any) (Profile, error)
	ListRecords(ctx context.Context, collection, planID string) ([]Record, error)
	AddRecord(ctx context.Context, collection, planID string, data map[string]any) (Record, error)
	UpdatePlan(ctx context.Context, planID string, upd PlanUpdate) (Plan, error)
	SetPercentComplete(ctx context.Context, planID string, pct int) error
}
