package service

import (
	"fmt"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// ClickLocations is the fixed set of simulated visitor locations
var ClickLocations = []string{
	"New York, USA",
	"London, UK",
	"Tokyo, Japan",
	"Sydney, Australia",
	"Berlin, Germany",
	"Toronto, Canada",
	"Mumbai, India",
	"São Paulo, Brazil",
}

// OriginSimulator invents where a click came from.
// Nothing it returns describes the real client.
type OriginSimulator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewOriginSimulator creates a simulator. A zero seed picks a random one.
func NewOriginSimulator(seed uint64) *OriginSimulator {
	return &OriginSimulator{faker: gofakeit.New(seed)}
}

// Origin returns a location label, a 192.168.1.N client token and a user agent.
// userAgent is kept when set.
func (s *OriginSimulator) Origin(userAgent string) (location, clientID, agent string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	location = s.faker.RandomString(ClickLocations)
	clientID = fmt.Sprintf("192.168.1.%d", s.faker.Number(0, 254))

	agent = userAgent
	if agent == "" {
		agent = s.faker.UserAgent()
	}
	return location, clientID, agent
}
