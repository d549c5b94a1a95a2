package sections

import "sync"

const (
	GroupAboutYou     = "About You"
	GroupArrangements = "Final Arrangements"
	GroupFinances     = "Finances"
	GroupFamilyLife   = "Family & Life"
	GroupLegal        = "Legal"
)

var defaultSections = []Section{
	{ID: "personal", Label: "Personal Information", Route: "/app/personal", PayloadKey: "personal", Group: GroupAboutYou, Order: 10, ShowInNav: true, TracksProgress: true},
	{ID: "contacts", Label: "Key Contacts", Route: "/app/contacts", PayloadKey: "contacts", Collections: []string{"contacts", "professional_contacts"}, NotesField: "contacts_notes", Group: GroupAboutYou, Order: 20, ShowInNav: true, TracksProgress: true},
	{ID: "healthcare", Label: "Healthcare Wishes", Route: "/app/healthcare", PayloadKey: "healthcare", NotesField: "healthcare_notes", Group: GroupAboutYou, Order: 30, ShowInNav: true, TracksProgress: true},
	{ID: "advance_directive", Label: "Advance Directive", Route: "/app/advance-directive", PayloadKey: "advance_directive", Group: GroupAboutYou, Order: 40, ShowInNav: true, TracksProgress: true},
	{ID: "funeral", Label: "Funeral Wishes", Route: "/app/funeral", PayloadKey: "funeral", Collections: []string{"funeral_funding"}, NotesField: "funeral_notes", Group: GroupArrangements, Order: 50, ShowInNav: true, TracksProgress: true},
	{ID: "financial", Label: "Financial Accounts", Route: "/app/financial", PayloadKey: "financial", Collections: []string{"bank_accounts", "investments", "debts", "businesses"}, NotesField: "financial_notes", Group: GroupFinances, Order: 60, ShowInNav: true, TracksProgress: true},
	{ID: "insurance", Label: "Insurance", Route: "/app/insurance", PayloadKey: "insurance", Collections: []string{"insurance"}, NotesField: "insurance_notes", Group: GroupFinances, Order: 70, ShowInNav: true, TracksProgress: true},
	{ID: "property", Label: "Property & Belongings", Route: "/app/property", PayloadKey: "property", Collections: []string{"properties"}, NotesField: "property_notes", Group: GroupFinances, Order: 80, ShowInNav: true, TracksProgress: true},
	{ID: "pets", Label: "Pets", Route: "/app/pets", PayloadKey: "pets", Collections: []string{"pets"}, NotesField: "pets_notes", Group: GroupFamilyLife, Order: 90, ShowInNav: true, TracksProgress: true},
	{ID: "digital", Label: "Digital Life", Route: "/app/digital", PayloadKey: "digital", NotesField: "digital_notes", Group: GroupFamilyLife, Order: 100, ShowInNav: true, TracksProgress: true},
	{ID: "messages", Label: "Messages to Loved Ones", Route: "/app/messages", PayloadKey: "messages", Collections: []string{"messages"}, NotesField: "messages_notes", Group: GroupFamilyLife, Order: 110, ShowInNav: true, TracksProgress: true},
	{ID: "legacy", Label: "Legacy & Life Story", Route: "/app/legacy", PayloadKey: "legacy", NotesField: "legacy_notes", Group: GroupFamilyLife, Order: 120, ShowInNav: true, TracksProgress: true},
	{ID: "travel", Label: "Travel Protection", Route: "/app/travel", PayloadKey: "travel", NotesField: "travel_notes", Group: GroupFamilyLife, Order: 130, ShowInNav: true, TracksProgress: false},
	{ID: "legal", Label: "Legal Documents", Route: "/app/legal", PayloadKey: "legal", NotesField: "legal_notes", Group: GroupLegal, Order: 140, ShowInNav: true, TracksProgress: true},
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the built-in registry. It panics if the static catalogue is invalid.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(defaultSections)
		if err != nil {
			panic(err)
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
