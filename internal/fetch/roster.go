package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/star/isstracker/internal/roster"
)

// DefaultPeopleURL lists everyone currently in space.
const DefaultPeopleURL = "http://api.open-notify.org/astros.json"

// RosterClient fetches the live list of people in space. It satisfies
// roster.Source.
type RosterClient struct {
	url    string
	client *http.Client
}

// NewRosterClient creates a RosterClient for url (DefaultPeopleURL when empty).
func NewRosterClient(url string, timeout time.Duration) *RosterClient {
	if url == "" {
		url = DefaultPeopleURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RosterClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type peoplePayload struct {
	Message string `json:"message"`
	Number  int    `json:"number"`
	People  []struct {
		Name  string `json:"name"`
		Craft string `json:"craft"`
	} `json:"people"`
}

// Fetch returns the people in space in the order the API lists them.
func (c *RosterClient) Fetch(ctx context.Context) ([]roster.Astronaut, error) {
	var p peoplePayload
	if err := getJSON(ctx, c.client, "people", c.url, &p); err != nil {
		return nil, err
	}
	if p.Message != "" && p.Message != "success" {
		return nil, fmt.Errorf("%w: message %q", ErrMalformed, p.Message)
	}

	people := make([]roster.Astronaut, 0, len(p.People))
	for _, person := range p.People {
		if person.Name == "" {
			continue
		}
		craft := person.Craft
		if craft == "" {
			craft = "Unknown"
		}
		people = append(people, roster.Astronaut{Name: person.Name, Craft: craft})
	}
	return people, nil
}
