package sections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	payload     map[string]any
	collections map[string]int
	notes       map[string]string
}

func (f fakeSource) PayloadSection(key string) any { return f.payload[key] }
func (f fakeSource) CollectionLen(name string) int { return f.collections[name] }
func (f fakeSource) Note(field string) string      { return f.notes[field] }

func TestDefaultRegistryIsValid(t *testing.T) {
	r := Default()
	require.Equal(t, len(defaultSections), r.Len())

	secs := r.Sections()
	for i := 1; i < len(secs); i++ {
		assert.Less(t, secs[i-1].Order, secs[i].Order)
	}
	assert.Same(t, r, Default())
}

func TestNavigationByRouteUnknownRoute(t *testing.T) {
	nav := Default().NavigationByRoute("/app/not-a-section")
	assert.False(t, nav.IsRegistrySection)
	assert.Equal(t, 0, nav.CurrentStep)
	assert.Equal(t, Default().Len(), nav.TotalSteps)
	assert.Nil(t, nav.Section)
	assert.Nil(t, nav.Previous)
	assert.Nil(t, nav.Next)
}

func TestNavigationByRouteSteps(t *testing.T) {
	r := Default()
	secs := r.Sections()

	first := r.NavigationByRoute(secs[0].Route)
	require.True(t, first.IsRegistrySection)
	assert.Equal(t, 1, first.CurrentStep)
	assert.Nil(t, first.Previous)
	require.NotNil(t, first.Next)
	assert.Equal(t, secs[1].ID, first.Next.ID)

	last := r.NavigationByRoute(secs[len(secs)-1].Route + "/?tab=2")
	require.True(t, last.IsRegistrySection)
	assert.Equal(t, len(secs), last.CurrentStep)
	assert.Nil(t, last.Next)
	require.NotNil(t, last.Previous)
	assert.Equal(t, secs[len(secs)-2].ID, last.Previous.ID)
}

func TestRouteLookups(t *testing.T) {
	r := Default()
	assert.Equal(t, "/app/funeral", r.RouteFor("funeral"))
	assert.Equal(t, FallbackRoute, r.RouteFor("nope"))

	id, ok := r.IDForRoute("/APP/Advance-Directive/")
	require.True(t, ok)
	assert.Equal(t, "advance_directive", id)

	_, ok = r.IDForRoute("/app/dashboard")
	assert.False(t, ok)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)

	_, err = NewRegistry([]Section{
		{ID: "a", Label: "A", Route: "/a", PayloadKey: "a"},
		{ID: "a", Label: "B", Route: "/b", PayloadKey: "b"},
	})
	assert.ErrorContains(t, err, "duplicate section id")

	_, err = NewRegistry([]Section{
		{ID: "a", Label: "A", Route: "/a", PayloadKey: "a"},
		{ID: "b", Label: "B", Route: "/a/", PayloadKey: "b"},
	})
	assert.ErrorContains(t, err, "duplicate route")

	_, err = NewRegistry([]Section{{ID: "a", Label: "A", PayloadKey: "a"}})
	assert.Error(t, err)
}

func TestSectionsReturnsCopies(t *testing.T) {
	r := Default()
	secs := r.Sections()
	secs[1].Collections[0] = "mutated"
	secs[0].Label = "mutated"

	s, ok := r.ByID(secs[1].ID)
	require.True(t, ok)
	assert.NotEqual(t, "mutated", s.Collections[0])
	assert.NotEqual(t, "mutated", r.Sections()[0].Label)
}

func TestCompletionAndProgress(t *testing.T) {
	r, err := NewRegistry([]Section{
		{ID: "a", Label: "A", Route: "/a", PayloadKey: "a", Order: 1, TracksProgress: true},
		{ID: "b", Label: "B", Route: "/b", PayloadKey: "b", Collections: []string{"things"}, Order: 2, TracksProgress: true},
		{ID: "c", Label: "C", Route: "/c", PayloadKey: "c", NotesField: "c_notes", Order: 3, TracksProgress: true},
		{ID: "d", Label: "D", Route: "/d", PayloadKey: "d", Order: 4, TracksProgress: true},
		{ID: "e", Label: "E", Route: "/e", PayloadKey: "e", Order: 5},
	})
	require.NoError(t, err)

	empty := fakeSource{payload: map[string]any{"a": map[string]any{"name": "  ", "tags": []any{}}}}
	assert.Equal(t, 0, r.Progress(empty))
	assert.Equal(t, 0, r.Progress(nil))

	src := fakeSource{
		payload:     map[string]any{"a": map[string]any{"has_will": false}, "e": "x"},
		collections: map[string]int{"things": 2},
		notes:       map[string]string{"c_notes": "call the vet"},
	}
	done := r.Completion(src)
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true, "d": false, "e": true}, done)
	assert.Equal(t, 75, r.Progress(src))
}

func TestGroupsKeepFirstAppearanceOrder(t *testing.T) {
	groups := Default().Groups()
	require.NotEmpty(t, groups)
	assert.Equal(t, GroupAboutYou, groups[0].Name)

	total := 0
	for _, g := range groups {
		total += len(g.Sections)
	}
	assert.Equal(t, Default().Len(), total)
}
