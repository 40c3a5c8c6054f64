package motionplan

import (
	"math"

	"github.com/golang/geo/r2"
)

// nearestNeighbor returns the node closest to target by linear scan. Ties resolve to the earliest node so that
// seeded runs are reproducible.
func nearestNeighbor(target r2.Point, nodes []*node) *node {
	bestDist := math.Inf(1)
	var best *node
	for _, n := range nodes {
		// squared distance preserves ordering
		d := target.Sub(n.pos)
		dist := d.Dot(d)
		if dist < bestDist {
			bestDist = dist
			best = n
		}
	}
	return best
}
