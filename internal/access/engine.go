package access

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/datasciencecampus/rap-for-maps/internal/geometry"
	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

// ErrParameter marks an invalid analysis parameter. Fatal: rejected before
// any computation starts.
var ErrParameter = eris.New("access: invalid parameter")

const defaultConcurrency = 4

// Contribution is one supplier's share added to one demand zone's score.
type Contribution struct {
	DemandID string
	Amount   float64
}

// Result is the output of one accessibility run: a score per demand zone
// (zero-score zones included) and the suppliers skipped for having an empty
// catchment.
type Result struct {
	Scores  []model.ZoneScore
	Skipped []string
}

// Engine runs the two-step floating catchment area computation over a fixed
// set of demand zones and supply points. Construction validates and indexes
// all geometry; Run may then be called repeatedly with different parameters.
type Engine struct {
	store  *geometry.Store
	index  *Index
	demand []model.DemandUnit
	supply []model.SupplyPoint
}

// NewEngine validates the inputs into a geometry store and builds the
// neighbor index. Malformed geometry, mismatched frames, and non-positive
// capacities are load-time failures.
func NewEngine(demand []model.DemandUnit, supply []model.SupplyPoint, srid int) (*Engine, error) {
	store := geometry.NewStore(srid)

	for _, du := range demand {
		if du.Geometry == nil {
			return nil, eris.Wrapf(geometry.ErrBadGeometry, "access: demand %q has no geometry", du.ID)
		}
		if err := store.AddDemand(du.ID, du.Geometry); err != nil {
			return nil, err
		}
		for attr, pop := range du.Population {
			if pop < 0 {
				return nil, eris.Wrapf(ErrParameter, "access: demand %q has negative population %q", du.ID, attr)
			}
		}
	}

	for _, sp := range supply {
		if sp.Geometry == nil {
			return nil, eris.Wrapf(geometry.ErrBadGeometry, "access: supply %q has no geometry", sp.ID)
		}
		if err := store.AddSupply(sp.ID, sp.Geometry); err != nil {
			return nil, err
		}
		if sp.Capacity <= 0 {
			return nil, eris.Wrapf(ErrParameter, "access: supply %q has non-positive capacity %g", sp.ID, sp.Capacity)
		}
	}

	index, err := NewIndex(store)
	if err != nil {
		return nil, err
	}

	return &Engine{store: store, index: index, demand: demand, supply: supply}, nil
}

// Run computes one accessibility score per demand zone.
//
// Suppliers are processed concurrently; each emits its own contribution
// slice, and a single merge pass sums them per zone afterwards, so the final
// scores do not depend on scheduling order. Suppliers with an empty catchment
// contribute nothing and are returned in Result.Skipped.
func (e *Engine) Run(ctx context.Context, params model.AnalysisParams) (*Result, error) {
	if err := e.validateParams(params); err != nil {
		return nil, err
	}

	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	contributions := make([][]Contribution, len(e.supply))
	skipped := make([]string, len(e.supply))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, sp := range e.supply {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pairs, err := e.contributionsFor(sp, params)
			if err != nil {
				if eris.Is(err, ErrEmptyCatchment) {
					zap.L().Warn("access: skipping supply point with empty catchment",
						zap.String("supply_id", sp.ID),
						zap.Float64("threshold", params.Threshold),
						zap.String("attribute", params.Attribute),
					)
					skipped[i] = sp.ID
					return nil
				}
				return err
			}
			contributions[i] = pairs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.merge(contributions, skipped), nil
}

// contributionsFor computes one supplier's ratio and fans it out to every
// zone in its catchment.
func (e *Engine) contributionsFor(sp model.SupplyPoint, params model.AnalysisParams) ([]Contribution, error) {
	point, _ := e.store.Supply(sp.ID)
	neighborIDs, err := e.index.Neighbors(point, params.Threshold)
	if err != nil {
		return nil, err
	}

	neighbors := make(map[string]bool, len(neighborIDs))
	for _, id := range neighborIDs {
		neighbors[id] = true
	}

	var total float64
	for _, du := range e.demand {
		if neighbors[du.ID] {
			total += du.Population[params.Attribute]
		}
	}

	ratio, err := Ratio(sp.Capacity, total)
	if err != nil {
		return nil, err
	}

	pairs := make([]Contribution, 0, len(neighborIDs))
	for _, id := range neighborIDs {
		pairs = append(pairs, Contribution{DemandID: id, Amount: ratio})
	}
	return pairs, nil
}

// merge is the single-threaded reduction: sum contributions per zone and
// emit one row per demand unit, zeros included.
func (e *Engine) merge(contributions [][]Contribution, skipped []string) *Result {
	scores := make(map[string]float64, len(e.demand))
	for _, du := range e.demand {
		scores[du.ID] = 0
	}
	for _, pairs := range contributions {
		for _, c := range pairs {
			scores[c.DemandID] += c.Amount
		}
	}

	res := &Result{Scores: make([]model.ZoneScore, 0, len(scores))}
	for id, score := range scores {
		res.Scores = append(res.Scores, model.ZoneScore{DemandID: id, Score: score})
	}
	sort.Slice(res.Scores, func(i, j int) bool { return res.Scores[i].DemandID < res.Scores[j].DemandID })

	for _, id := range skipped {
		if id != "" {
			res.Skipped = append(res.Skipped, id)
		}
	}
	sort.Strings(res.Skipped)
	return res
}

func (e *Engine) validateParams(params model.AnalysisParams) error {
	if params.Threshold <= 0 {
		return eris.Wrapf(ErrParameter, "access: threshold %g, must be positive", params.Threshold)
	}
	if params.Attribute == "" {
		return eris.Wrap(ErrParameter, "access: population attribute not set")
	}
	for _, du := range e.demand {
		if _, ok := du.Population[params.Attribute]; !ok {
			return eris.Wrapf(ErrParameter, "access: demand %q has no population attribute %q", du.ID, params.Attribute)
		}
	}
	if params.SRID != 0 && params.SRID != e.store.SRID() {
		return eris.Wrapf(ErrParameter, "access: params SRID %d does not match loaded frame %d", params.SRID, e.store.SRID())
	}
	return nil
}
