package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed regions.yaml
var defaultRegionsYAML []byte

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// BoundingBox is an axis-aligned lat/lng rectangle with inclusive edges.
type BoundingBox struct {
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MinLng float64 `yaml:"min_lng" json:"min_lng"`
	MaxLng float64 `yaml:"max_lng" json:"max_lng"`
}

// Area is the box area in square degrees.
func (b BoundingBox) Area() float64 {
	return (b.MaxLat - b.MinLat) * (b.MaxLng - b.MinLng)
}

// Contains reports whether the point lies inside the box or on its edge.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Region is a top-level administrative area used to scope warning queries.
type Region struct {
	Code   string       `yaml:"code" json:"code"`
	Name   string       `yaml:"name" json:"name"`
	Bounds *BoundingBox `yaml:"bounds,omitempty" json:"bounds,omitempty"`
	Marker *Coordinates `yaml:"marker,omitempty" json:"marker,omitempty"`
}

type regionsDocument struct {
	Regions []Region `yaml:"regions"`
}

// DefaultRegions returns the embedded Australian state and territory set.
func DefaultRegions() []Region {
	regions, err := ParseRegions(defaultRegionsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded regions.yaml: %v", err))
	}
	return regions
}

// LoadRegionsFile reads a regions YAML document from disk.
func LoadRegionsFile(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return ParseRegions(data)
}

// ParseRegions decodes a regions YAML document and validates it: codes must
// be present and unique, and bounds must not be inverted.
func ParseRegions(data []byte) ([]Region, error) {
	var doc regionsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, errors.New("parse regions: no regions defined")
	}

	seen := make(map[string]bool, len(doc.Regions))
	for i := range doc.Regions {
		r := &doc.Regions[i]
		r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
		if r.Code == "" {
			return nil, fmt.Errorf("parse regions: region %d has no code", i)
		}
		if seen[r.Code] {
			return nil, fmt.Errorf("parse regions: duplicate code %q", r.Code)
		}
		seen[r.Code] = true
		if b := r.Bounds; b != nil && (b.MinLat > b.MaxLat || b.MinLng > b.MaxLng) {
			return nil, fmt.Errorf("parse regions: %s has inverted bounds", r.Code)
		}
	}
	return doc.Regions, nil
}

// FindRegion looks up a region by code, case-insensitively.
func FindRegion(regions []Region, code string) (Region, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, r := range regions {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

// RegionResolver maps a point to the region whose bounding box contains it.
type RegionResolver struct {
	regions []Region // bounded regions, smallest area first
}

// NewRegionResolver prepares a resolver over the regions that carry bounds.
// Boxes overlap at borders, so they are tested smallest first: a point in
// Canberra falls inside both NSW and ACT and resolves to ACT.
func NewRegionResolver(regions []Region) *RegionResolver {
	bounded := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.Bounds != nil {
			bounded = append(bounded, r)
		}
	}
	slices.SortStableFunc(bounded, func(a, b Region) int {
		areaA, areaB := a.Bounds.Area(), b.Bounds.Area()
		switch {
		case areaA < areaB:
			return -1
		case areaA > areaB:
			return 1
		default:
			return 0
		}
	})
	return &RegionResolver{regions: bounded}
}

// Resolve returns the code of the smallest region containing the point.
func (r *RegionResolver) Resolve(lat, lng float64) (string, bool) {
	for _, region := range r.regions {
		if region.Bounds.Contains(lat, lng) {
			return region.Code, true
		}
	}
	return "", false
}
