package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Bushels/PipeVault-sub009/internal/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog is the YAML rack layout of a yard:
//
//	racks:
//	  - zone: A
//	    area: north
//	    slots: ["01", "02"]
//	    mode: additive
//	    capacity_units: 120
//	    capacity_length: "1450.5"
type Catalog struct {
	Entries []CatalogEntry `yaml:"racks"`
}

// CatalogEntry describes one rack, or a row of identical racks when Slots
// lists several.
type CatalogEntry struct {
	Zone           string   `yaml:"zone"`
	Area           string   `yaml:"area"`
	Slot           string   `yaml:"slot"`
	Slots          []string `yaml:"slots"`
	Name           string   `yaml:"name"`
	Mode           string   `yaml:"mode"`
	CapacityUnits  int      `yaml:"capacity_units"`
	CapacityLength string   `yaml:"capacity_length"`
}

// LoadCatalog decodes a catalog, rejecting unknown keys.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, domain.Errorf(domain.ErrInvalidInput, "rack catalog is empty")
		}
		return Catalog{}, &domain.Error{Kind: domain.ErrInvalidInput, Msg: "decode rack catalog", Err: err}
	}
	return cat, nil
}

// Racks expands the catalog into racks with zero occupancy.
func (c Catalog) Racks() ([]domain.Rack, error) {
	var out []domain.Rack
	seen := make(map[string]struct{})
	for i, e := range c.Entries {
		slots := e.Slots
		if e.Slot != "" {
			slots = append([]string{e.Slot}, slots...)
		}
		if e.Zone == "" || e.Area == "" || len(slots) == 0 {
			return nil, domain.Errorf(domain.ErrInvalidInput, "catalog entry %d needs zone, area and at least one slot", i+1)
		}
		mode := domain.AllocationMode(strings.ToLower(e.Mode))
		if mode == "" {
			mode = domain.ModeAdditive
		}
		if !mode.Valid() {
			return nil, domain.Errorf(domain.ErrInvalidInput, "catalog entry %d has unknown mode %q", i+1, e.Mode)
		}
		if e.CapacityUnits < 0 {
			return nil, domain.Errorf(domain.ErrInvalidInput, "catalog entry %d has negative capacity", i+1)
		}
		var length decimal.NullDecimal
		if e.CapacityLength != "" {
			d, err := decimal.NewFromString(e.CapacityLength)
			if err != nil || d.IsNegative() {
				return nil, domain.Errorf(domain.ErrInvalidInput, "catalog entry %d has invalid capacity_length %q", i+1, e.CapacityLength)
			}
			length = decimal.NewNullDecimal(d)
		}

		for _, slot := range slots {
			id := domain.RackCode(e.Zone, e.Area, slot)
			if _, dup := seen[id]; dup {
				return nil, domain.Errorf(domain.ErrInvalidInput, "rack %s is listed twice", id)
			}
			seen[id] = struct{}{}
			name := e.Name
			if name == "" {
				name = id
			} else if len(slots) > 1 {
				name = fmt.Sprintf("%s %s", e.Name, slot)
			}
			out = append(out, domain.Rack{
				ID:             id,
				Zone:           e.Zone,
				Area:           e.Area,
				Slot:           slot,
				Name:           name,
				Mode:           mode,
				CapacityUnits:  e.CapacityUnits,
				CapacityLength: length,
			})
		}
	}
	if len(out) == 0 {
		return nil, domain.Errorf(domain.ErrInvalidInput, "rack catalog lists no racks")
	}
	return out, nil
}
