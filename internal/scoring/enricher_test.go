package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ignite/lead-intelligence/internal/crm"
)

type stubContactSource struct {
	contacts []crm.Contact
	err      error
	calls    int
	gotLimit int
}

func (s *stubContactSource) GetContacts(ctx context.Context, locationID string, limit int) ([]crm.Contact, error) {
	s.calls++
	s.gotLimit = limit
	return s.contacts, s.err
}

type stubCache struct {
	data map[string][]crm.Contact
	sets int
}

func (c *stubCache) Get(ctx context.Context, key string) ([]crm.Contact, error) {
	if contacts, ok := c.data[key]; ok {
		return contacts, nil
	}
	return nil, errors.New("cache miss")
}

func (c *stubCache) Set(ctx context.Context, key string, contacts []crm.Contact) error {
	if c.data == nil {
		c.data = make(map[string][]crm.Contact)
	}
	c.data[key] = contacts
	c.sets++
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }

func TestGetEnrichedContacts(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	source := &stubContactSource{contacts: []crm.Contact{
		{
			ID: "c1", FirstName: "Alice", LastName: "Smith", LocationID: "loc-1",
			Email: "alice@example.com", Tags: []string{"vip"},
			DateUpdated: timePtr(now.AddDate(0, 0, -3)),
			Opportunities: []crm.ContactOpportunity{
				{ID: "o1", Status: "won", MonetaryValue: 1000},
				{ID: "o2", Status: "won", MonetaryValue: 3000},
				{ID: "o3", Status: "lost", MonetaryValue: 500},
			},
		},
		{ID: "c2", CompanyName: "Acme Inc", LocationID: "loc-1"},
	}}

	e := NewEnricher(source, nil)
	e.now = func() time.Time { return now }

	enriched, err := e.GetEnrichedContacts(context.Background(), "loc-1", EnrichmentFilters{})
	if err != nil {
		t.Fatalf("GetEnrichedContacts: %v", err)
	}
	if len(enriched) != 2 {
		t.Fatalf("got %d contacts, want 2", len(enriched))
	}
	if source.gotLimit != defaultContactLimit {
		t.Errorf("limit = %d, want default %d", source.gotLimit, defaultContactLimit)
	}

	first := enriched[0]
	if first.Name != "Alice Smith" {
		t.Errorf("Name = %q", first.Name)
	}
	if first.DaysSinceLastActivity != 3 {
		t.Errorf("DaysSinceLastActivity = %d, want 3", first.DaysSinceLastActivity)
	}
	if first.EmailOpens == 0 || first.PageViews == 0 {
		t.Errorf("recent contact should have seeded engagement: %+v", first)
	}
	if first.OpportunityCount != 3 || first.OpportunitiesWon != 2 || first.OpportunitiesLost != 1 {
		t.Errorf("opportunity counters = %d/%d/%d", first.OpportunityCount, first.OpportunitiesWon, first.OpportunitiesLost)
	}
	if first.TotalRevenue != 4000 {
		t.Errorf("TotalRevenue = %v, want 4000", first.TotalRevenue)
	}
	if first.AverageOrderValue != 2000 {
		t.Errorf("AverageOrderValue = %v, want 2000", first.AverageOrderValue)
	}

	second := enriched[1]
	if second.Name != "Acme Inc" {
		t.Errorf("company fallback name = %q", second.Name)
	}
	if second.DaysSinceLastActivity != daysSinceSentinel {
		t.Errorf("missing dateUpdated should get sentinel, got %d", second.DaysSinceLastActivity)
	}
	if second.EmailOpens != 0 {
		t.Errorf("cold contact should have zero engagement, got %d opens", second.EmailOpens)
	}
}

func TestGetEnrichedContactsPreservesOrder(t *testing.T) {
	contacts := make([]crm.Contact, 50)
	for i := range contacts {
		contacts[i] = crm.Contact{ID: fmt.Sprintf("contact-%03d", i), LocationID: "loc-1"}
	}
	source := &stubContactSource{contacts: contacts}
	e := NewEnricher(source, nil)

	enriched, err := e.GetEnrichedContacts(context.Background(), "loc-1", EnrichmentFilters{})
	if err != nil {
		t.Fatalf("GetEnrichedContacts: %v", err)
	}
	for i := range contacts {
		if enriched[i].ID != contacts[i].ID {
			t.Fatalf("order broken at %d: got %q, want %q", i, enriched[i].ID, contacts[i].ID)
		}
	}
}

func TestGetEnrichedContactsFilters(t *testing.T) {
	source := &stubContactSource{contacts: []crm.Contact{
		{ID: "c1", LocationID: "loc-1", Tags: []string{"vip", "newsletter"}, AssignedTo: "rep-1"},
		{ID: "c2", LocationID: "loc-1", Tags: []string{"newsletter"}, AssignedTo: "rep-1"},
		{ID: "c3", LocationID: "loc-1", Tags: []string{"vip"}, AssignedTo: "rep-2"},
	}}
	e := NewEnricher(source, nil)

	enriched, err := e.GetEnrichedContacts(context.Background(), "loc-1", EnrichmentFilters{
		Tags:       []string{"vip"},
		AssignedTo: "rep-1",
	})
	if err != nil {
		t.Fatalf("GetEnrichedContacts: %v", err)
	}
	if len(enriched) != 1 || enriched[0].ID != "c1" {
		t.Errorf("filtered = %+v, want only c1", enriched)
	}
}

func TestGetEnrichedContactsFetchError(t *testing.T) {
	source := &stubContactSource{err: errors.New("upstream down")}
	e := NewEnricher(source, nil)

	_, err := e.GetEnrichedContacts(context.Background(), "loc-1", EnrichmentFilters{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGetEnrichedContactsUsesCache(t *testing.T) {
	source := &stubContactSource{contacts: []crm.Contact{{ID: "c1", LocationID: "loc-1"}}}
	cache := &stubCache{}
	e := NewEnricher(source, cache)

	for i := 0; i < 3; i++ {
		if _, err := e.GetEnrichedContacts(context.Background(), "loc-1", EnrichmentFilters{}); err != nil {
			t.Fatalf("GetEnrichedContacts: %v", err)
		}
	}

	if source.calls != 1 {
		t.Errorf("source called %d times, want 1 (cache should serve repeats)", source.calls)
	}
	if cache.sets != 1 {
		t.Errorf("cache.Set called %d times, want 1", cache.sets)
	}
}

func TestGetEnrichedContactsDateRange(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	source := &stubContactSource{contacts: []crm.Contact{
		{ID: "in", LocationID: "loc-1", DateUpdated: timePtr(now.AddDate(0, 0, -5))},
		{ID: "out", LocationID: "loc-1", DateUpdated: timePtr(now.AddDate(0, 0, -60))},
		{ID: "never", LocationID: "loc-1"},
	}}
	e := NewEnricher(source, nil)
	e.now = func() time.Time { return now }

	rng := DateRange{Start: now.AddDate(0, 0, -30), End: now}
	enriched, err := e.GetEnrichedContacts(context.Background(), "loc-1", EnrichmentFilters{DateRange: &rng})
	if err != nil {
		t.Fatalf("GetEnrichedContacts: %v", err)
	}
	if len(enriched) != 1 || enriched[0].ID != "in" {
		t.Errorf("range filter kept %+v, want only 'in'", enriched)
	}
}
