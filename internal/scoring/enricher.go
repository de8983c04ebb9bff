package scoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ignite/lead-intelligence/internal/crm"
	"github.com/ignite/lead-intelligence/internal/pkg/logger"
)

const defaultContactLimit = 100

// ContactCache caches raw CRM fetches so repeated scoring runs against
// the same location do not hammer the contacts API. Misses and cache
// failures both fall through to a direct fetch.
type ContactCache interface {
	Get(ctx context.Context, key string) ([]crm.Contact, error)
	Set(ctx context.Context, key string, contacts []crm.Contact) error
}

// EnrichmentFilters narrows the enriched population. Filters combine
// with AND semantics; an unset filter passes everything through.
type EnrichmentFilters struct {
	Tags       []string
	AssignedTo string
	Limit      int
	DateRange  *DateRange
}

// Enricher turns raw CRM contacts into normalized EnrichedContacts.
type Enricher struct {
	source ContactSource
	cache  ContactCache
	now    func() time.Time
}

// NewEnricher creates an Enricher over the given contact source.
// cache may be nil.
func NewEnricher(source ContactSource, cache ContactCache) *Enricher {
	return &Enricher{source: source, cache: cache, now: time.Now}
}

// GetEnrichedContacts fetches contacts for a location and enriches each
// one. Per-contact enrichment fans out concurrently; output order
// matches the fetch order. A fetch failure propagates to the caller.
func (e *Enricher) GetEnrichedContacts(ctx context.Context, locationID string, filters EnrichmentFilters) ([]EnrichedContact, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = defaultContactLimit
	}

	contacts, err := e.fetchContacts(ctx, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching contacts for location %s: %w", locationID, err)
	}

	now := e.now()
	enriched := make([]EnrichedContact, len(contacts))
	var wg sync.WaitGroup
	for i := range contacts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			enriched[i] = enrichContact(&contacts[i], now)
		}(i)
	}
	wg.Wait()

	return applyFilters(enriched, filters), nil
}

func (e *Enricher) fetchContacts(ctx context.Context, locationID string, limit int) ([]crm.Contact, error) {
	cacheKey := fmt.Sprintf("contacts:%s:%d", locationID, limit)
	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			return cached, nil
		}
	}

	contacts, err := e.source.GetContacts(ctx, locationID, limit)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, cacheKey, contacts); err != nil {
			logger.Warn("contact cache write failed", "location_id", locationID, "error", err.Error())
		}
	}
	return contacts, nil
}

// enrichContact derives scoring inputs for one contact. Engagement and
// activity counters are seeded from the contact's recency bucket until
// real cross-service aggregation (email, conversations, calendar,
// payments) is wired in.
func enrichContact(c *crm.Contact, now time.Time) EnrichedContact {
	ec := EnrichedContact{
		ID:                    c.ID,
		Name:                  strings.TrimSpace(c.FullName()),
		Email:                 c.Email,
		Phone:                 c.Phone,
		LocationID:            c.LocationID,
		Tags:                  c.Tags,
		LifecycleStage:        c.Type,
		AssignedTo:            c.AssignedTo,
		CreatedAt:             c.DateAdded,
		DaysSinceLastActivity: daysSinceSentinel,
	}

	if len(c.CustomFields) > 0 {
		ec.CustomFields = make(map[string]string, len(c.CustomFields))
		for _, f := range c.CustomFields {
			ec.CustomFields[f.ID] = fmt.Sprintf("%v", f.Value)
		}
	}

	if c.DateUpdated != nil {
		days := int(now.Sub(*c.DateUpdated).Hours() / 24)
		if days < 0 {
			days = 0
		}
		ec.DaysSinceLastActivity = days
		ec.LastActivityDate = c.DateUpdated
		ec.LastActivityType = "contact_update"
	}

	seedEngagement(&ec)
	aggregateOpportunities(&ec, c.Opportunities)

	return ec
}

func seedEngagement(ec *EnrichedContact) {
	switch {
	case ec.DaysSinceLastActivity < 7:
		ec.EmailOpens = 12
		ec.EmailClicks = 5
		ec.PageViews = 18
		ec.FormFills = 2
		ec.Conversations = 4
		ec.AppointmentsScheduled = 2
		ec.AppointmentsCompleted = 1
	case ec.DaysSinceLastActivity < 30:
		ec.EmailOpens = 4
		ec.EmailClicks = 1
		ec.PageViews = 6
		ec.FormFills = 1
		ec.Conversations = 1
		ec.AppointmentsScheduled = 1
	}
}

func aggregateOpportunities(ec *EnrichedContact, opps []crm.ContactOpportunity) {
	ec.OpportunityCount = len(opps)
	for _, opp := range opps {
		switch opp.Status {
		case "won":
			ec.OpportunitiesWon++
			ec.TotalRevenue += opp.MonetaryValue
		case "lost":
			ec.OpportunitiesLost++
		}
	}
	ec.TransactionCount = ec.OpportunitiesWon
	if ec.TransactionCount > 0 {
		ec.AverageOrderValue = ec.TotalRevenue / float64(ec.TransactionCount)
	}
}

func applyFilters(contacts []EnrichedContact, filters EnrichmentFilters) []EnrichedContact {
	if len(filters.Tags) == 0 && filters.AssignedTo == "" && filters.DateRange == nil {
		return contacts
	}

	kept := make([]EnrichedContact, 0, len(contacts))
	for _, c := range contacts {
		if len(filters.Tags) > 0 && !tagsIntersect(c.Tags, filters.Tags) {
			continue
		}
		if filters.AssignedTo != "" && c.AssignedTo != filters.AssignedTo {
			continue
		}
		if filters.DateRange != nil && !inRange(c.LastActivityDate, c.CreatedAt, *filters.DateRange) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func tagsIntersect(contactTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range contactTags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// inRange checks the contact's last activity (falling back to creation
// time) against the range. Contacts with neither timestamp are excluded.
func inRange(lastActivity, createdAt *time.Time, rng DateRange) bool {
	ts := lastActivity
	if ts == nil {
		ts = createdAt
	}
	if ts == nil {
		return false
	}
	return !ts.Before(rng.Start) && !ts.After(rng.End)
}
