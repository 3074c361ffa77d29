package domain

import "time"

// DirectReferrer is recorded when a click arrives without a referrer
const DirectReferrer = "Direct"

// ClickEvent represents a single follow of a shortened URL.
// Location and ClientID are simulated; they never describe the real visitor.
type ClickEvent struct {
	ID        string    `json:"id"`
	URLID     string    `json:"url_id"`
	ShortCode string    `json:"short_code"`
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer"`
	UserAgent string    `json:"user_agent,omitempty"`
	Location  string    `json:"geographic_location"`
	ClientID  string    `json:"client_id"`
}

// NewClickEvent creates a click event for the given record
func NewClickEvent(id string, url *URL, referrer string, at time.Time) *ClickEvent {
	if referrer == "" {
		referrer = DirectReferrer
	}
	return &ClickEvent{
		ID:        id,
		URLID:     url.ID,
		ShortCode: url.ShortCode,
		Timestamp: at,
		Referrer:  referrer,
	}
}

// WithSimulatedOrigin fills in the simulated location, client token and user agent
func (c *ClickEvent) WithSimulatedOrigin(location, clientID, userAgent string) *ClickEvent {
	c.Location = location
	c.ClientID = clientID
	c.UserAgent = userAgent
	return c
}
