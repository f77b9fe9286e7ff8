// Package geometry holds demand polygons and supply points in a single
// projected coordinate frame and provides the planar point-to-polygon
// distance the catchment search is built on.
package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Load-time failure classes. Both are fatal: no computation starts on a
// store that rejected a geometry.
var (
	ErrBadGeometry   = eris.New("geometry: malformed geometry")
	ErrFrameMismatch = eris.New("geometry: coordinate frame mismatch")
)

// Store keeps all geometries for one analysis. Every geometry must carry the
// store's SRID; mixing frames is rejected at load time, so distance queries
// never compare coordinates from different projections.
type Store struct {
	srid   int
	demand map[string]geom.T
	supply map[string]*geom.Point
}

// NewStore creates an empty store for the given projected frame.
func NewStore(srid int) *Store {
	return &Store{
		srid:   srid,
		demand: make(map[string]geom.T),
		supply: make(map[string]*geom.Point),
	}
}

// SRID returns the shared coordinate frame identifier.
func (s *Store) SRID() int { return s.srid }

// AddDemand validates and registers a demand-zone polygon.
func (s *Store) AddDemand(id string, g geom.T) error {
	if id == "" {
		return eris.Wrap(ErrBadGeometry, "geometry: demand unit with empty id")
	}
	if _, dup := s.demand[id]; dup {
		return eris.Wrapf(ErrBadGeometry, "geometry: duplicate demand id %q", id)
	}
	if g.SRID() != s.srid {
		return eris.Wrapf(ErrFrameMismatch, "geometry: demand %q has SRID %d, store frame is %d", id, g.SRID(), s.srid)
	}
	if err := validatePolygonal(g); err != nil {
		return eris.Wrapf(err, "geometry: demand %q", id)
	}
	s.demand[id] = g
	return nil
}

// AddSupply validates and registers a supply point.
func (s *Store) AddSupply(id string, p *geom.Point) error {
	if id == "" {
		return eris.Wrap(ErrBadGeometry, "geometry: supply point with empty id")
	}
	if _, dup := s.supply[id]; dup {
		return eris.Wrapf(ErrBadGeometry, "geometry: duplicate supply id %q", id)
	}
	if p.SRID() != s.srid {
		return eris.Wrapf(ErrFrameMismatch, "geometry: supply %q has SRID %d, store frame is %d", id, p.SRID(), s.srid)
	}
	if err := validatePoint(p); err != nil {
		return eris.Wrapf(err, "geometry: supply %q", id)
	}
	s.supply[id] = p
	return nil
}

// Demand returns the polygon for a demand id.
func (s *Store) Demand(id string) (geom.T, bool) {
	g, ok := s.demand[id]
	return g, ok
}

// Supply returns the point for a supply id.
func (s *Store) Supply(id string) (*geom.Point, bool) {
	p, ok := s.supply[id]
	return p, ok
}

// NumDemand reports how many demand zones are loaded.
func (s *Store) NumDemand() int { return len(s.demand) }

// EachDemand calls fn for every demand zone. Iteration order is unspecified.
func (s *Store) EachDemand(fn func(id string, g geom.T)) {
	for id, g := range s.demand {
		fn(id, g)
	}
}

// Distance returns the minimum planar distance from p to the zone's boundary,
// and 0 when the point lies inside or on the zone. Both geometries must
// already be registered, so they share the store's frame.
func (s *Store) Distance(p *geom.Point, zone geom.T) float64 {
	return PointPolygonDistance(p.Coords(), zone)
}
