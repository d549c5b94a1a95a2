package entitlement

import (
	"strings"
	"time"
)

// StatusActive is the only subscription status that grants roles.
const StatusActive = "active"

// Subscription is one purchase or recurring subscription held by a user.
type Subscription struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	LookupKey  string     `json:"lookup_key"`
	Status     string     `json:"status"`
	CustomerID string     `json:"customer_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Active reports whether s grants its roles at now.
func (s Subscription) Active(now time.Time) bool {
	if !strings.EqualFold(strings.TrimSpace(s.Status), StatusActive) {
		return false
	}
	return s.ExpiresAt == nil || s.ExpiresAt.After(now)
}

// Kind is the outcome of an entitlement decision.
type Kind int

const (
	NoAccess Kind = iota
	ActiveSubscription
	Admin
)

func (k Kind) String() string {
	switch k {
	case Admin:
		return "admin"
	case ActiveSubscription:
		return "active_subscription"
	default:
		return "no_access"
	}
}

// Access is the resolved entitlement of one user. The zero value denies everything.
type Access struct {
	Kind       Kind
	Roles      []string
	LookupKeys []string
	planner    bool
}

// Decide computes access from the admin override and the user's subscriptions.
// Admin short-circuits; otherwise the roles of every active subscription are
// merged in first-seen order.
func Decide(admin bool, subs []Subscription, catalog *Catalog, now time.Time) Access {
	if admin {
		return Access{
			Kind:    Admin,
			Roles:   append([]string{RoleAdmin}, catalog.AllRoles()...),
			planner: true,
		}
	}
	var (
		active bool
		a      Access
		seen   = map[string]bool{}
	)
	for _, s := range subs {
		if !s.Active(now) {
			continue
		}
		active = true
		a.LookupKeys = append(a.LookupKeys, s.LookupKey)
		for _, r := range catalog.RolesForLookupKey(s.LookupKey) {
			if seen[r] {
				continue
			}
			seen[r] = true
			a.Roles = append(a.Roles, r)
			if catalog.unlocksPlanner(r) {
				a.planner = true
			}
		}
	}
	if !active {
		return Access{}
	}
	a.Kind = ActiveSubscription
	return a
}

func (a Access) IsAdmin() bool { return a.Kind == Admin }

// IsMasterAccount is kept for callers that still ask for the master flag; it
// mirrors IsAdmin.
func (a Access) IsMasterAccount() bool { return a.IsAdmin() }

// HasActiveSubscription is true for admins and for users with at least one
// active subscription, whatever it grants.
func (a Access) HasActiveSubscription() bool {
	return a.Kind == Admin || a.Kind == ActiveSubscription
}

// HasAccess reports access to the digital planner.
func (a Access) HasAccess() bool { return a.Kind == Admin || a.planner }

func (a Access) HasRole(role string) bool {
	if a.Kind == Admin {
		return true
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Access) HasPrintableAccess() bool { return a.HasRole(RolePrintable) }

func (a Access) HasDoneForYou() bool { return a.HasRole(RoleDoneForYou) }

// IsPrintableOnly is true when the user holds roles but none of them unlocks
// the digital planner.
func (a Access) IsPrintableOnly() bool {
	return a.Kind == ActiveSubscription && len(a.Roles) > 0 && !a.planner
}

// Flags is the JSON shape handed to clients.
type Flags struct {
	Kind                  string   `json:"kind"`
	Roles                 []string `json:"roles"`
	LookupKeys            []string `json:"lookup_keys"`
	IsAdmin               bool     `json:"is_admin"`
	IsMasterAccount       bool     `json:"is_master_account"`
	HasActiveSubscription bool     `json:"has_active_subscription"`
	HasAccess             bool     `json:"has_access"`
	HasPrintableAccess    bool     `json:"has_printable_access"`
	IsPrintableOnly       bool     `json:"is_printable_only"`
	HasDoneForYou         bool     `json:"has_done_for_you"`
}

func (a Access) Flags() Flags {
	f := Flags{
		Kind:                  a.Kind.String(),
		Roles:                 a.Roles,
		LookupKeys:            a.LookupKeys,
		IsAdmin:               a.IsAdmin(),
		IsMasterAccount:       a.IsMasterAccount(),
		HasActiveSubscription: a.HasActiveSubscription(),
		HasAccess:             a.HasAccess(),
		HasPrintableAccess:    a.HasPrintableAccess(),
		IsPrintableOnly:       a.IsPrintableOnly(),
		HasDoneForYou:         a.HasDoneForYou(),
	}
	if f.Roles == nil {
		f.Roles = []string{}
	}
	if f.LookupKeys == nil {
		f.LookupKeys = []string{}
	}
	return f
}
