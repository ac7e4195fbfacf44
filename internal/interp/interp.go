// Package interp estimates attribute values at arbitrary coordinates by
// inverse-distance weighting over the k nearest polygon centroids.
//
// Results are deterministic: neighbors sort by great-circle distance with a
// stable sort, so records at equal distance keep their collection order, and
// the same query against the same collection always blends the same records
// with the same weights.
package interp

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/storeline/siteval-cli/internal/faults"
	"github.com/storeline/siteval-cli/internal/geometry"
)

// Neighbor is one centroid match for a query point.
type Neighbor struct {
	Record   *geometry.Record
	Distance float64 // km
	Weight   float64
}

// Nearest returns the k records whose centroids lie closest to (lat, lon),
// nearest first, with interpolation weights assigned. k must lie in
// [1, coll.Len()]; anything else is a faults.InvalidParameterError.
func Nearest(coll *geometry.Collection, lat, lon float64, k int) ([]Neighbor, error) {
	if coll == nil {
		return nil, eris.New("interp: nil collection")
	}
	if k < 1 || k > coll.Len() {
		return nil, faults.NewInvalidParameterError("NeighborsToUse", k, 1, coll.Len())
	}

	nbrs := make([]Neighbor, coll.Len())
	for i := range coll.Records {
		r := &coll.Records[i]
		nbrs[i] = Neighbor{
			Record:   r,
			Distance: haversineKM(lat, lon, r.Centroid[1], r.Centroid[0]),
		}
	}

	sort.SliceStable(nbrs, func(i, j int) bool {
		return nbrs[i].Distance < nbrs[j].Distance
	})
	nbrs = nbrs[:k]

	assignWeights(nbrs)
	return nbrs, nil
}

// assignWeights distributes inverse-distance weights over the neighbors so
// they sum to 1. A neighbor at distance zero takes the full weight and every
// other neighbor gets none; with several zero-distance neighbors the first
// in sorted order wins.
func assignWeights(nbrs []Neighbor) {
	for i := range nbrs {
		if nbrs[i].Distance == 0 {
			nbrs[i].Weight = 1
			return
		}
	}

	var sum float64
	for i := range nbrs {
		sum += 1 / nbrs[i].Distance
	}
	for i := range nbrs {
		nbrs[i].Weight = (1 / nbrs[i].Distance) / sum
	}
}

// Interpolate blends every schema attribute across the k nearest centroids
// and returns the weighted values keyed by attribute name.
func Interpolate(coll *geometry.Collection, lat, lon float64, k int) (map[string]float64, error) {
	nbrs, err := Nearest(coll, lat, lon, k)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]float64, len(coll.Schema()))
	for _, name := range coll.Schema() {
		var v float64
		for i := range nbrs {
			v += nbrs[i].Weight * nbrs[i].Record.Attrs[name]
		}
		attrs[name] = v
	}
	return attrs, nil
}
