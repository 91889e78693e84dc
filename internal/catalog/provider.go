package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Provider supplies the catalog to the booking flows. Implementations are
// read-only from the caller's point of view.
type Provider interface {
	Snapshot(ctx context.Context) (*Catalog, error)
	ListServices(ctx context.Context) ([]Service, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListAddOns(ctx context.Context) ([]AddOn, error)
	GetServiceByID(ctx context.Context, id string) (*Service, error)
}

// StaticProvider serves a fixed snapshot loaded at startup.
type StaticProvider struct {
	catalog *Catalog
}

// NewStaticProvider validates the snapshot and wraps it.
func NewStaticProvider(c *Catalog) (*StaticProvider, error) {
	if c == nil {
		return nil, fmt.Errorf("catalog: snapshot required")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &StaticProvider{catalog: New(c.Services, c.Categories, c.AddOns)}, nil
}

func (p *StaticProvider) Snapshot(ctx context.Context) (*Catalog, error) {
	return p.catalog, nil
}

func (p *StaticProvider) ListServices(ctx context.Context) ([]Service, error) {
	return append([]Service(nil), p.catalog.Services...), nil
}

func (p *StaticProvider) ListCategories(ctx context.Context) ([]Category, error) {
	return append([]Category(nil), p.catalog.Categories...), nil
}

func (p *StaticProvider) ListAddOns(ctx context.Context) ([]AddOn, error) {
	return append([]AddOn(nil), p.catalog.AddOns...), nil
}

func (p *StaticProvider) GetServiceByID(ctx context.Context, id string) (*Service, error) {
	svc, ok := p.catalog.Service(id)
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &svc, nil
}

// Decode parses a JSON catalog document and builds its indexes.
func Decode(data []byte) (*Catalog, error) {
	var raw Catalog
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	c := New(raw.Services, raw.Categories, raw.AddOns)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads a JSON catalog from disk. An empty path yields the
// built-in spa menu.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultMenu(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Decode(data)
}

// DefaultMenu is the house menu used when no catalog file is configured.
func DefaultMenu() *Catalog {
	categories := []Category{
		{ID: "massage", Name: "Massage", Description: "Full body and targeted massage therapy"},
		{ID: "facial", Name: "Facials", Description: "Skin treatments and facials"},
		{ID: "body", Name: "Body Treatments", Description: "Scrubs, wraps and hydrotherapy"},
	}
	addOns := []AddOn{
		{ID: "hot-stones", Name: "Hot Stones", Price: 5000, ExtraMinutes: 15},
		{ID: "aromatherapy", Name: "Aromatherapy", Price: 2500},
		{ID: "scalp-treatment", Name: "Scalp Treatment", Price: 3000, ExtraMinutes: 10},
		{ID: "eye-mask", Name: "Cooling Eye Mask", Price: 1500},
		{ID: "hand-paraffin", Name: "Paraffin Hand Treatment", Price: 2000, ExtraMinutes: 10},
	}
	services := []Service{
		{
			ID:         "swedish-massage",
			Name:       "Swedish Massage",
			CategoryID: "massage",
			Durations:  []int{60, 90},
			Prices:     map[int]int64{60: 25000, 90: 35000},
			AddOnIDs:   []string{"hot-stones", "aromatherapy", "scalp-treatment"},
			Popular:    true,
		},
		{
			ID:         "deep-tissue",
			Name:       "Deep Tissue Massage",
			CategoryID: "massage",
			Durations:  []int{60, 90, 120},
			Prices:     map[int]int64{60: 28000, 90: 39000, 120: 50000},
			AddOnIDs:   []string{"hot-stones", "aromatherapy"},
		},
		{
			ID:         "signature-facial",
			Name:       "Signature Facial",
			CategoryID: "facial",
			Durations:  []int{50, 80},
			Prices:     map[int]int64{50: 18000, 80: 26000},
			AddOnIDs:   []string{"eye-mask", "hand-paraffin", "aromatherapy"},
			Popular:    true,
		},
		{
			ID:         "body-scrub",
			Name:       "Salt Body Scrub",
			CategoryID: "body",
			Durations:  []int{45},
			Prices:     map[int]int64{45: 15000},
			AddOnIDs:   []string{"aromatherapy", "hand-paraffin"},
		},
	}
	return New(services, categories, addOns)
}
