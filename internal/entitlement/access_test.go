package entitlement

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecideAdminGrantsEverything(t *testing.T) {
	subs := [][]Subscription{
		nil,
		{{LookupKey: KeyPrintable, Status: "canceled"}},
		{{LookupKey: KeyPrintable, Status: StatusActive}},
	}
	for _, s := range subs {
		a := Decide(true, s, DefaultCatalog(), now)
		assert.Equal(t, Admin, a.Kind)
		assert.True(t, a.IsAdmin())
		assert.True(t, a.IsMasterAccount())
		assert.True(t, a.HasAccess())
		assert.True(t, a.HasPrintableAccess())
		assert.True(t, a.HasActiveSubscription())
		assert.True(t, a.HasDoneForYou())
		assert.False(t, a.IsPrintableOnly())
	}
}

func TestDecideInactiveSubscription(t *testing.T) {
	for _, status := range []string{"canceled", "past_due", "incomplete", ""} {
		a := Decide(false, []Subscription{{LookupKey: KeyVIPYear, Status: status}}, DefaultCatalog(), now)
		assert.Equal(t, NoAccess, a.Kind, status)
		assert.False(t, a.HasActiveSubscription(), status)
		assert.False(t, a.IsMasterAccount(), status)
		assert.False(t, a.HasAccess(), status)
		assert.False(t, a.IsPrintableOnly(), status)
		assert.Empty(t, a.Roles, status)
	}
}

func TestDecideExpiredSubscription(t *testing.T) {
	past := now.Add(-time.Hour)
	a := Decide(false, []Subscription{{LookupKey: KeyBasic, Status: StatusActive, ExpiresAt: &past}}, DefaultCatalog(), now)
	assert.Equal(t, NoAccess, a.Kind)
}

func TestDecideMergesRolesInOrder(t *testing.T) {
	subs := []Subscription{
		{LookupKey: KeyPrintable, Status: StatusActive},
		{LookupKey: KeyVIPMonth, Status: "Active"},
		{LookupKey: KeyDoneForYou, Status: "canceled"},
	}
	a := Decide(false, subs, DefaultCatalog(), now)
	want := Access{
		Kind:       ActiveSubscription,
		Roles:      []string{RolePrintable, RoleVIP, RoleBasic},
		LookupKeys: []string{KeyPrintable, KeyVIPMonth},
		planner:    true,
	}
	if diff := cmp.Diff(want, a, cmp.AllowUnexported(Access{})); diff != "" {
		t.Fatalf("access mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, a.HasAccess())
	assert.False(t, a.HasDoneForYou())
	assert.False(t, a.IsAdmin())
}

func TestDecideUnknownProductActiveButNoRoles(t *testing.T) {
	a := Decide(false, []Subscription{{LookupKey: "LEGACY_PROMO", Status: StatusActive}}, DefaultCatalog(), now)
	assert.True(t, a.HasActiveSubscription())
	assert.False(t, a.HasAccess())
	assert.False(t, a.HasPrintableAccess())
	assert.False(t, a.IsPrintableOnly())
}

func TestPrintableOnly(t *testing.T) {
	a := Decide(false, []Subscription{{LookupKey: KeyPrintable, Status: StatusActive}}, DefaultCatalog(), now)
	assert.True(t, a.IsPrintableOnly())
	assert.True(t, a.HasPrintableAccess())
	assert.False(t, a.HasAccess())
}

func TestFlagsNeverNil(t *testing.T) {
	f := Access{}.Flags()
	assert.Equal(t, "no_access", f.Kind)
	assert.NotNil(t, f.Roles)
	assert.NotNil(t, f.LookupKeys)
	assert.False(t, f.HasAccess)
}
