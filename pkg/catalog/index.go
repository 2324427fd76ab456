package catalog

import (
	"log/slog"

	"github.com/uber/h3-go/v4"

	"tourgo/pkg/geo"
	"tourgo/pkg/model"
)

// indexResolution is the H3 resolution for catalog cells. Resolution 11
// hexagons have an edge length of roughly 25 m, so a one-ring disk already
// covers the default 10 m trigger radius.
const indexResolution = 11

// minEdgeM is a conservative lower bound on the res-11 hexagon edge length,
// used to size the search disk for larger radii.
const minEdgeM = 15.0

// cellIndex buckets POIs by H3 cell for fast radius candidate lookups.
// Callers hold the Manager lock; the index itself is not synchronized.
type cellIndex struct {
	cells   map[h3.Cell][]*model.POI
	poiCell map[string]h3.Cell

	// incomplete is set when a POI could not be celled; from then on the
	// index refuses to answer and every query falls back to a full scan.
	incomplete bool
}

func newCellIndex() *cellIndex {
	return &cellIndex{
		cells:   make(map[h3.Cell][]*model.POI),
		poiCell: make(map[string]h3.Cell),
	}
}

func (ix *cellIndex) add(p *model.POI) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), indexResolution)
	if err != nil {
		slog.Warn("Catalog index: failed to cell POI, falling back to scans", "id", p.ID, "error", err)
		ix.incomplete = true
		return
	}
	ix.cells[cell] = append(ix.cells[cell], p)
	ix.poiCell[p.ID] = cell
}

func (ix *cellIndex) remove(p *model.POI) {
	cell, ok := ix.poiCell[p.ID]
	if !ok {
		return
	}
	bucket := ix.cells[cell]
	for i, e := range bucket {
		if e.ID == p.ID {
			ix.cells[cell] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(ix.cells[cell]) == 0 {
		delete(ix.cells, cell)
	}
	delete(ix.poiCell, p.ID)
}

// candidates returns the set of POI IDs whose cells lie within the search
// disk around p. A false second return means the index cannot answer (an H3
// failure or an unindexed POI) and the caller must fall back to a full scan.
func (ix *cellIndex) candidates(p geo.Point, maxDist float64) (map[string]struct{}, bool) {
	if ix.incomplete {
		return nil, false
	}
	if len(ix.poiCell) == 0 {
		return map[string]struct{}{}, true
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), indexResolution)
	if err != nil {
		return nil, false
	}

	k := 1 + int(maxDist/minEdgeM)
	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, false
	}

	out := make(map[string]struct{})
	for _, cell := range disk {
		for _, poi := range ix.cells[cell] {
			out[poi.ID] = struct{}{}
		}
	}
	return out, true
}
