// Package entitlement turns subscription records and the admin override into
// the access flags the planner gates on.
package entitlement

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Roles granted by products, plus the privileged admin role.
const (
	RoleAdmin      = "admin"
	RolePrintable  = "printable"
	RoleBasic      = "basic"
	RoleVIP        = "vip"
	RoleDoneForYou = "done_for_you"
)

// Product lookup keys sold through the payments provider.
const (
	KeyPrintable  = "EFAPRINTABLE"
	KeyBasic      = "EFABASIC"
	KeyBasicYear  = "EFABASICYEAR"
	KeyVIPMonth   = "EFAVIPMONTH"
	KeyVIPYear    = "EFAVIPYEAR"
	KeyDoneForYou = "EFADOFORU"
)

var defaultRoles = map[string][]string{
	KeyPrintable:  {RolePrintable},
	KeyBasic:      {RoleBasic, RolePrintable},
	KeyBasicYear:  {RoleBasic, RolePrintable},
	KeyVIPMonth:   {RoleVIP, RoleBasic, RolePrintable},
	KeyVIPYear:    {RoleVIP, RoleBasic, RolePrintable},
	KeyDoneForYou: {RoleDoneForYou, RoleVIP, RoleBasic, RolePrintable},
}

// Catalog maps product lookup keys to ordered role lists. It is immutable
// once built.
type Catalog struct {
	roles map[string][]string
	// restricted roles do not unlock the digital planner on their own.
	restricted map[string]bool
}

// NewCatalog validates mapping and returns a catalog. Every key must map to at
// least one role. Roles listed in restricted grant no digital planner access.
func NewCatalog(mapping map[string][]string, restricted ...string) (*Catalog, error) {
	if len(mapping) == 0 {
		return nil, errors.New("entitlement: catalog mapping is empty")
	}
	c := &Catalog{
		roles:      make(map[string][]string, len(mapping)),
		restricted: make(map[string]bool, len(restricted)),
	}
	for key, roles := range mapping {
		if strings.TrimSpace(key) == "" {
			return nil, errors.New("entitlement: empty lookup key")
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("entitlement: lookup key %q has no roles", key)
		}
		for _, r := range roles {
			if strings.TrimSpace(r) == "" {
				return nil, fmt.Errorf("entitlement: lookup key %q has an empty role", key)
			}
			if r == RoleAdmin {
				return nil, fmt.Errorf("entitlement: lookup key %q cannot grant %s", key, RoleAdmin)
			}
		}
		c.roles[key] = append([]string(nil), roles...)
	}
	for _, r := range restricted {
		c.restricted[r] = true
	}
	return c, nil
}

// DefaultCatalog returns the product catalogue sold today.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultRoles, RolePrintable)
	if err != nil {
		panic(err)
	}
	return c
}

// RolesForLookupKey returns the roles granted by key in catalogue order.
// Unknown keys grant nothing and yield an empty, non-nil slice.
func (c *Catalog) RolesForLookupKey(key string) []string {
	roles, ok := c.roles[key]
	if !ok {
		return []string{}
	}
	return append([]string(nil), roles...)
}

// Known reports whether key is a product in the catalogue.
func (c *Catalog) Known(key string) bool {
	_, ok := c.roles[key]
	return ok
}

// LookupKeys returns every product key, sorted.
func (c *Catalog) LookupKeys() []string {
	keys := make([]string, 0, len(c.roles))
	for k := range c.roles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AllRoles returns every role any product grants, sorted.
func (c *Catalog) AllRoles() []string {
	seen := map[string]bool{}
	var out []string
	for _, roles := range c.roles {
		for _, r := range roles {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) unlocksPlanner(role string) bool {
	return !c.restricted[role]
}
