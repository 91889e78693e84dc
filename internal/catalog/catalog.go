// Package catalog holds the read-only menu of services, categories and
// add-ons that every booking flow prices against.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrServiceNotFound is returned when a service id is not in the catalog.
	ErrServiceNotFound = errors.New("catalog: service not found")

	// ErrAddOnNotFound is returned when an add-on id is not in the catalog.
	ErrAddOnNotFound = errors.New("catalog: add-on not found")
)

// Category groups services on the menu (massage, facial, body).
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Service is a bookable treatment. Prices are in cents keyed by duration in
// minutes; Durations keeps the display order.
type Service struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	CategoryID string        `json:"category_id"`
	Durations  []int         `json:"durations"`
	Prices     map[int]int64 `json:"prices"`
	AddOnIDs   []string      `json:"addon_ids,omitempty"`
	Popular    bool          `json:"popular,omitempty"`
}

// AddOn is an optional extra attached to a service booking.
type AddOn struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	ExtraMinutes int    `json:"extra_minutes,omitempty"`
}

// Validate checks the duration/price invariants of a service.
func (s Service) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("catalog: service id is required")
	}
	if len(s.Durations) == 0 {
		return fmt.Errorf("catalog: service %s has no durations", s.ID)
	}
	seen := make(map[int]struct{}, len(s.Durations))
	for _, d := range s.Durations {
		if d <= 0 {
			return fmt.Errorf("catalog: service %s has non-positive duration %d", s.ID, d)
		}
		if _, dup := seen[d]; dup {
			return fmt.Errorf("catalog: service %s lists duration %d twice", s.ID, d)
		}
		seen[d] = struct{}{}
		price, ok := s.Prices[d]
		if !ok {
			return fmt.Errorf("catalog: service %s has no price for %d minutes", s.ID, d)
		}
		if price < 0 {
			return fmt.Errorf("catalog: service %s has negative price for %d minutes", s.ID, d)
		}
	}
	if len(s.Prices) != len(s.Durations) {
		return fmt.Errorf("catalog: service %s prices durations that are not offered", s.ID)
	}
	return nil
}

// OffersDuration reports whether minutes is one of the service's durations.
func (s Service) OffersDuration(minutes int) bool {
	for _, d := range s.Durations {
		if d == minutes {
			return true
		}
	}
	return false
}

// SupportsAddOn reports whether the add-on is compatible with the service.
func (s Service) SupportsAddOn(addOnID string) bool {
	for _, id := range s.AddOnIDs {
		if id == addOnID {
			return true
		}
	}
	return false
}

// FirstDuration returns the first offered duration, or 0 when none exist.
func (s Service) FirstDuration() int {
	if len(s.Durations) == 0 {
		return 0
	}
	return s.Durations[0]
}

// LongestDuration returns the longest offered duration.
func (s Service) LongestDuration() int {
	longest := 0
	for _, d := range s.Durations {
		if d > longest {
			longest = d
		}
	}
	return longest
}

// Catalog is an immutable snapshot of the menu. Build it with New so the
// lookup indexes are populated.
type Catalog struct {
	Services   []Service  `json:"services"`
	Categories []Category `json:"categories"`
	AddOns     []AddOn    `json:"addons"`

	serviceIdx map[string]int
	addOnIdx   map[string]int
}

// New builds a catalog snapshot and its indexes. It copies the input slices.
func New(services []Service, categories []Category, addOns []AddOn) *Catalog {
	c := &Catalog{
		Services:   append([]Service(nil), services...),
		Categories: append([]Category(nil), categories...),
		AddOns:     append([]AddOn(nil), addOns...),
	}
	c.index()
	return c
}

func (c *Catalog) index() {
	c.serviceIdx = make(map[string]int, len(c.Services))
	for i, s := range c.Services {
		c.serviceIdx[s.ID] = i
	}
	c.addOnIdx = make(map[string]int, len(c.AddOns))
	for i, a := range c.AddOns {
		c.addOnIdx[a.ID] = i
	}
}

// Service looks up a service by id.
func (c *Catalog) Service(id string) (Service, bool) {
	if c == nil {
		return Service{}, false
	}
	if c.serviceIdx == nil {
		for _, s := range c.Services {
			if s.ID == id {
				return s, true
			}
		}
		return Service{}, false
	}
	i, ok := c.serviceIdx[id]
	if !ok {
		return Service{}, false
	}
	return c.Services[i], true
}

// AddOn looks up an add-on by id.
func (c *Catalog) AddOn(id string) (AddOn, bool) {
	if c == nil {
		return AddOn{}, false
	}
	if c.addOnIdx == nil {
		for _, a := range c.AddOns {
			if a.ID == id {
				return a, true
			}
		}
		return AddOn{}, false
	}
	i, ok := c.addOnIdx[id]
	if !ok {
		return AddOn{}, false
	}
	return c.AddOns[i], true
}

// ServicesInCategory returns the services of a category, popular first.
func (c *Catalog) ServicesInCategory(categoryID string) []Service {
	var out []Service
	for _, s := range c.Services {
		if s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Popular && !out[j].Popular
	})
	return out
}

// Validate checks every service and cross-reference in the snapshot.
func (c *Catalog) Validate() error {
	categories := make(map[string]struct{}, len(c.Categories))
	for _, cat := range c.Categories {
		categories[cat.ID] = struct{}{}
	}
	addOns := make(map[string]struct{}, len(c.AddOns))
	for _, a := range c.AddOns {
		if a.Price < 0 {
			return fmt.Errorf("catalog: add-on %s has negative price", a.ID)
		}
		if _, dup := addOns[a.ID]; dup {
			return fmt.Errorf("catalog: duplicate add-on %s", a.ID)
		}
		addOns[a.ID] = struct{}{}
	}
	services := make(map[string]struct{}, len(c.Services))
	for _, s := range c.Services {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := services[s.ID]; dup {
			return fmt.Errorf("catalog: duplicate service %s", s.ID)
		}
		services[s.ID] = struct{}{}
		if _, ok := categories[s.CategoryID]; !ok {
			return fmt.Errorf("catalog: service %s references unknown category %s", s.ID, s.CategoryID)
		}
		for _, id := range s.AddOnIDs {
			if _, ok := addOns[id]; !ok {
				return fmt.Errorf("catalog: service %s references unknown add-on %s", s.ID, id)
			}
		}
	}
	return nil
}
