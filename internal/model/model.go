// Package model holds the domain types shared across the accessibility toolkit.
package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// RunStatus represents the current state of an accessibility run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// DemandUnit is an areal zone with one or more named population counts.
// Geometry is a Polygon or MultiPolygon in the shared projected frame.
type DemandUnit struct {
	ID         string             `json:"id"`
	Name       string             `json:"name,omitempty"`
	District   string             `json:"district,omitempty"`
	Geometry   geom.T             `json:"-"`
	Population map[string]float64 `json:"population"`
}

// SupplyPoint is a service location with a capacity. Capacity is 1 for
// uncapacitated analyses, where providers are counted rather than weighted.
type SupplyPoint struct {
	ID       string      `json:"id"`
	Name     string      `json:"name,omitempty"`
	Geometry *geom.Point `json:"-"`
	Capacity float64     `json:"capacity"`
}

// AnalysisParams are the inputs to one accessibility run.
type AnalysisParams struct {
	Attribute   string  `json:"attribute" yaml:"attribute"`
	Threshold   float64 `json:"threshold" yaml:"threshold"`
	SRID        int     `json:"srid" yaml:"srid"`
	Concurrency int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// ZoneScore is one row of the output table: providers per head of the chosen
// population attribute, before any display rescaling.
type ZoneScore struct {
	DemandID string  `json:"demand_id"`
	Score    float64 `json:"score"`
}

// Run records one persisted accessibility analysis.
type Run struct {
	ID          string         `json:"id"`
	Params      AnalysisParams `json:"params"`
	DemandCount int            `json:"demand_count"`
	SupplyCount int            `json:"supply_count"`
	Skipped     []string       `json:"skipped,omitempty"`
	Status      RunStatus      `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
