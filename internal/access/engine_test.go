package access

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/datasciencecampus/rap-for-maps/internal/geometry"
	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

func demandUnit(id string, poly *geom.Polygon, pop float64) model.DemandUnit {
	return model.DemandUnit{
		ID:         id,
		Geometry:   poly,
		Population: map[string]float64{"pop_age_11_15": pop},
	}
}

func supplyPoint(id string, x, y, capacity float64) model.SupplyPoint {
	return model.SupplyPoint{
		ID:       id,
		Geometry: testPoint(x, y),
		Capacity: capacity,
	}
}

func runParams(threshold float64) model.AnalysisParams {
	return model.AnalysisParams{
		Attribute: "pop_age_11_15",
		Threshold: threshold,
		SRID:      testSRID,
	}
}

func scoreOf(t *testing.T, result *Result, id string) float64 {
	t.Helper()
	for _, zs := range result.Scores {
		if zs.DemandID == id {
			return zs.Score
		}
	}
	t.Fatalf("no score for %s", id)
	return 0
}

// Populations [100, 200, 0]; one unit-capacity supplier whose catchment
// covers only the first two zones. Expected ratio 1/300, zone c scores 0.
func TestEngine_ReferenceScenario(t *testing.T) {
	demand := []model.DemandUnit{
		demandUnit("a", testSquare(0, 0, 10), 100),
		demandUnit("b", testSquare(20, 0, 10), 200),
		demandUnit("c", testSquare(1000, 0, 10), 0),
	}
	supply := []model.SupplyPoint{supplyPoint("s1", 15, 5, 1)}

	engine, err := NewEngine(demand, supply, testSRID)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), runParams(10))
	require.NoError(t, err)

	assert.InDelta(t, 1.0/300, scoreOf(t, result, "a"), 1e-12)
	assert.InDelta(t, 1.0/300, scoreOf(t, result, "b"), 1e-12)
	assert.Equal(t, 0.0, scoreOf(t, result, "c"))
	assert.Len(t, result.Scores, 3)
	assert.Empty(t, result.Skipped)
}

func TestEngine_SingleSupplierConservation(t *testing.T) {
	demand := []model.DemandUnit{
		demandUnit("i1", testSquare(0, 0, 10), 50),
		demandUnit("i2", testSquare(20, 0, 10), 150),
	}
	supply := []model.SupplyPoint{supplyPoint("s1", 15, 5, 1)}

	engine, err := NewEngine(demand, supply, testSRID)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), runParams(10))
	require.NoError(t, err)

	ratio := 1.0 / 200
	assert.InDelta(t, ratio, scoreOf(t, result, "i1"), 1e-12)
	assert.InDelta(t, ratio, scoreOf(t, result, "i2"), 1e-12)
}

func TestEngine_OverlapAdditivity(t *testing.T) {
	// Both suppliers reach zone "shared"; each also reaches its own zone.
	demand := []model.DemandUnit{
		demandUnit("shared", testSquare(20, 0, 10), 100),
		demandUnit("left", testSquare(0, 0, 10), 100),
		demandUnit("right", testSquare(40, 0, 10), 100),
	}
	supply := []model.SupplyPoint{
		supplyPoint("s1", 15, 5, 1), // reaches left + shared
		supplyPoint("s2", 35, 5, 1), // reaches shared + right
	}

	engine, err := NewEngine(demand, supply, testSRID)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), runParams(10))
	require.NoError(t, err)

	r1 := 1.0 / 200
	r2 := 1.0 / 200
	assert.InDelta(t, r1+r2, scoreOf(t, result, "shared"), 1e-12)
	assert.InDelta(t, r1, scoreOf(t, result, "left"), 1e-12)
	assert.InDelta(t, r2, scoreOf(t, result, "right"), 1e-12)
}

func TestEngine_DegenerateSupplierSkipped(t *testing.T) {
	demand := []model.DemandUnit{
		demandUnit("a", testSquare(0, 0, 10), 100),
		demandUnit("empty", testSquare(200, 0, 10), 0),
	}
	supply := []model.SupplyPoint{
		supplyPoint("near", 15, 5, 1),       // catchment {a}: fine
		supplyPoint("stranded", 205, 50, 1), // catchment {empty}: zero population
		supplyPoint("nowhere", 9000, 9000, 1),
	}

	engine, err := NewEngine(demand, supply, testSRID)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), runParams(40))
	require.NoError(t, err)

	assert.Equal(t, []string{"nowhere", "stranded"}, result.Skipped)
	// The healthy supplier's contribution is untouched.
	assert.InDelta(t, 1.0/100, scoreOf(t, result, "a"), 1e-12)
	assert.Equal(t, 0.0, scoreOf(t, result, "empty"))
}

func TestEngine_OrderIndependent(t *testing.T) {
	demand := []model.DemandUnit{
		demandUnit("a", testSquare(0, 0, 10), 120),
		demandUnit("b", testSquare(20, 0, 10), 80),
		demandUnit("c", testSquare(40, 0, 10), 60),
	}
	forward := []model.SupplyPoint{
		supplyPoint("s1", 15, 5, 1),
		supplyPoint("s2", 35, 5, 2),
		supplyPoint("s3", 55, 5, 3),
	}
	reversed := []model.SupplyPoint{forward[2], forward[1], forward[0]}

	run := func(supply []model.SupplyPoint, concurrency int) *Result {
		engine, err := NewEngine(demand, supply, testSRID)
		require.NoError(t, err)
		params := runParams(10)
		params.Concurrency = concurrency
		result, err := engine.Run(context.Background(), params)
		require.NoError(t, err)
		return result
	}

	a := run(forward, 1)
	b := run(reversed, 8)
	assert.Equal(t, a.Scores, b.Scores)
	assert.Equal(t, a.Skipped, b.Skipped)
}

func TestEngine_RepeatedRunsSameEngine(t *testing.T) {
	demand := []model.DemandUnit{demandUnit("a", testSquare(0, 0, 10), 100)}
	supply := []model.SupplyPoint{supplyPoint("s1", 5, 5, 1)}

	engine, err := NewEngine(demand, supply, testSRID)
	require.NoError(t, err)

	first, err := engine.Run(context.Background(), runParams(10))
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), runParams(10))
	require.NoError(t, err)

	// Scores start from zero each run; nothing accumulates across runs.
	assert.Equal(t, first.Scores, second.Scores)
}

func TestEngine_ParameterValidation(t *testing.T) {
	demand := []model.DemandUnit{demandUnit("a", testSquare(0, 0, 10), 100)}
	supply := []model.SupplyPoint{supplyPoint("s1", 5, 5, 1)}

	engine, err := NewEngine(demand, supply, testSRID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		params model.AnalysisParams
	}{
		{"zero threshold", model.AnalysisParams{Attribute: "pop_age_11_15", Threshold: 0}},
		{"negative threshold", model.AnalysisParams{Attribute: "pop_age_11_15", Threshold: -5}},
		{"unknown attribute", model.AnalysisParams{Attribute: "pop_age_16_18", Threshold: 10}},
		{"missing attribute", model.AnalysisParams{Threshold: 10}},
		{"wrong frame", model.AnalysisParams{Attribute: "pop_age_11_15", Threshold: 10, SRID: 4326}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Run(context.Background(), tt.params)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrParameter), "got %v", err)
		})
	}
}

func TestNewEngine_Rejections(t *testing.T) {
	goodDemand := []model.DemandUnit{demandUnit("a", testSquare(0, 0, 10), 100)}
	goodSupply := []model.SupplyPoint{supplyPoint("s1", 5, 5, 1)}

	t.Run("non-positive capacity", func(t *testing.T) {
		supply := []model.SupplyPoint{supplyPoint("s1", 5, 5, 0)}
		_, err := NewEngine(goodDemand, supply, testSRID)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrParameter))
	})

	t.Run("negative population", func(t *testing.T) {
		demand := []model.DemandUnit{demandUnit("a", testSquare(0, 0, 10), -1)}
		_, err := NewEngine(demand, goodSupply, testSRID)
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrParameter))
	})

	t.Run("missing demand geometry", func(t *testing.T) {
		demand := []model.DemandUnit{{ID: "a", Population: map[string]float64{"pop_age_11_15": 1}}}
		_, err := NewEngine(demand, goodSupply, testSRID)
		require.Error(t, err)
		assert.True(t, eris.Is(err, geometry.ErrBadGeometry))
	})

	t.Run("mismatched supply frame", func(t *testing.T) {
		supply := []model.SupplyPoint{{
			ID:       "s1",
			Geometry: geom.NewPointFlat(geom.XY, []float64{5, 5}).SetSRID(4326),
			Capacity: 1,
		}}
		_, err := NewEngine(goodDemand, supply, testSRID)
		require.Error(t, err)
		assert.True(t, eris.Is(err, geometry.ErrFrameMismatch))
	})
}
