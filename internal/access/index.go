// Package access implements the two-step floating catchment area method:
// an R-tree neighbor search over demand zones, provider-to-population
// ratios per supply point, and a per-zone accessibility reduction.
package access

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/datasciencecampus/rap-for-maps/internal/geometry"
)

// bboxPad keeps degenerate bounding boxes (flat or thin zones) indexable;
// candidates are always confirmed with the exact distance afterwards.
const bboxPad = 1e-9

type demandEntry struct {
	id   string
	rect rtreego.Rect
}

func (e *demandEntry) Bounds() rtreego.Rect { return e.rect }

// Index answers "which demand zones lie within maxdist of this point" using
// an R-tree over zone bounding boxes. Build it once per store and share it
// read-only across suppliers; queries do not mutate it.
type Index struct {
	store *geometry.Store
	tree  *rtreego.Rtree
}

// NewIndex builds the R-tree over every demand zone in the store.
func NewIndex(store *geometry.Store) (*Index, error) {
	tree := rtreego.NewTree(2, 25, 50)
	var buildErr error
	store.EachDemand(func(id string, g geom.T) {
		if buildErr != nil {
			return
		}
		b := g.Bounds()
		rect, err := rtreego.NewRect(
			rtreego.Point{b.Min(0), b.Min(1)},
			[]float64{b.Max(0) - b.Min(0) + bboxPad, b.Max(1) - b.Min(1) + bboxPad},
		)
		if err != nil {
			buildErr = eris.Wrapf(err, "access: index demand %q", id)
			return
		}
		tree.Insert(&demandEntry{id: id, rect: rect})
	})
	if buildErr != nil {
		return nil, buildErr
	}
	return &Index{store: store, tree: tree}, nil
}

// Neighbors returns the ids of all demand zones whose geometry lies within
// maxdist of p, inclusive at exactly maxdist. Each qualifying zone appears
// exactly once; ids are sorted for stable output.
func (ix *Index) Neighbors(p *geom.Point, maxdist float64) ([]string, error) {
	search, err := rtreego.NewRect(
		rtreego.Point{p.X() - maxdist, p.Y() - maxdist},
		[]float64{2 * maxdist, 2 * maxdist},
	)
	if err != nil {
		return nil, eris.Wrap(err, "access: neighbor search rect")
	}

	var ids []string
	for _, candidate := range ix.tree.SearchIntersect(search) {
		entry := candidate.(*demandEntry)
		zone, ok := ix.store.Demand(entry.id)
		if !ok {
			continue
		}
		if ix.store.Distance(p, zone) <= maxdist {
			ids = append(ids, entry.id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
