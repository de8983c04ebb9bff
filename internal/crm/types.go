package crm

import "time"

// Contact is a CRM contact record as returned by the contacts API.
type Contact struct {
	ID            string               `json:"id"`
	FirstName     string               `json:"firstName"`
	LastName      string               `json:"lastName"`
	CompanyName   string               `json:"companyName,omitempty"`
	Email         string               `json:"email,omitempty"`
	Phone         string               `json:"phone,omitempty"`
	LocationID    string               `json:"locationId"`
	Type          string               `json:"type,omitempty"`
	AssignedTo    string               `json:"assignedTo,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
	CustomFields  []CustomField        `json:"customFields,omitempty"`
	Opportunities []ContactOpportunity `json:"opportunities,omitempty"`
	DateAdded     *time.Time           `json:"dateAdded,omitempty"`
	DateUpdated   *time.Time           `json:"dateUpdated,omitempty"`
}

// FullName returns the contact's display name.
func (c *Contact) FullName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	default:
		return c.CompanyName
	}
}

// CustomField is a key-value pair attached to a contact.
type CustomField struct {
	ID    string      `json:"id"`
	Value interface{} `json:"value"`
}

// ContactOpportunity is the slim opportunity view embedded in a contact.
type ContactOpportunity struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	MonetaryValue float64 `json:"monetaryValue"`
}

// Opportunity is a pipeline deal record.
type Opportunity struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	ContactID         string     `json:"contactId"`
	LocationID        string     `json:"locationId"`
	Status            string     `json:"status"`
	MonetaryValue     float64    `json:"monetaryValue"`
	PipelineID        string     `json:"pipelineId,omitempty"`
	PipelineStageName string     `json:"pipelineStageName,omitempty"`
	LastStageChangeAt *time.Time `json:"lastStageChangeAt,omitempty"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}

// DaysInStage returns how many days the deal has sat in its current
// pipeline stage, measured from now. Returns 0 when the stage change
// timestamp is unknown.
func (o *Opportunity) DaysInStage(now time.Time) int {
	if o.LastStageChangeAt == nil {
		return 0
	}
	days := int(now.Sub(*o.LastStageChangeAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

type contactsResponse struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
}

type contactResponse struct {
	Contact Contact `json:"contact"`
}

type opportunityResponse struct {
	Opportunity Opportunity `json:"opportunity"`
}
