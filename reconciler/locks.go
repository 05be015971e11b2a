package reconciler

import (
	"math"
	"sort"
	"sync"
)

// bucketCellDeg is the side of one lock cell in degrees, roughly 1.1 km
// of latitude. Far coarser than the match radius, so locking a cell and
// its neighbors covers every kitchen a draft could merge with by
// proximity. External-id matches can land outside the neighborhood; the
// caller checks coverage with covers and re-acquires.
const bucketCellDeg = 0.01

type bucket struct {
	latCell int
	lonCell int
}

func bucketFor(lat, lon float64) bucket {
	return bucket{
		latCell: int(math.Floor(lat / bucketCellDeg)),
		lonCell: int(math.Floor(lon / bucketCellDeg)),
	}
}

// bucketLocks serializes merge decisions per coarse coordinate bucket.
// Two drafts for the same new kitchen arriving concurrently contend on a
// shared cell instead of a global lock, so unrelated regions proceed in
// parallel.
type bucketLocks struct {
	mu    sync.Mutex
	cells map[bucket]*sync.Mutex
}

func newBucketLocks() *bucketLocks {
	return &bucketLocks{cells: make(map[bucket]*sync.Mutex)}
}

// lockGrant is a held set of bucket locks.
type lockGrant struct {
	held  map[bucket]bool
	locks []*sync.Mutex
}

// covers reports whether the coordinate's bucket is inside the grant.
func (g *lockGrant) covers(lat, lon float64) bool {
	return g.held[bucketFor(lat, lon)]
}

func (g *lockGrant) release() {
	for i := len(g.locks) - 1; i >= 0; i-- {
		g.locks[i].Unlock()
	}
}

// Acquire locks the 3x3 neighborhood around every given [lat, lon] point
// in a stable order and returns the grant.
func (bl *bucketLocks) Acquire(points ...[2]float64) *lockGrant {
	held := make(map[bucket]bool)
	for _, p := range points {
		center := bucketFor(p[0], p[1])
		for dLat := -1; dLat <= 1; dLat++ {
			for dLon := -1; dLon <= 1; dLon++ {
				held[bucket{center.latCell + dLat, center.lonCell + dLon}] = true
			}
		}
	}

	buckets := make([]bucket, 0, len(held))
	for b := range held {
		buckets = append(buckets, b)
	}
	// Sorted acquisition keeps overlapping neighborhoods deadlock-free.
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].latCell != buckets[j].latCell {
			return buckets[i].latCell < buckets[j].latCell
		}
		return buckets[i].lonCell < buckets[j].lonCell
	})

	locks := make([]*sync.Mutex, len(buckets))
	for i, b := range buckets {
		locks[i] = bl.cell(b)
	}
	for _, l := range locks {
		l.Lock()
	}

	return &lockGrant{held: held, locks: locks}
}

func (bl *bucketLocks) cell(b bucket) *sync.Mutex {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if l, ok := bl.cells[b]; ok {
		return l
	}
	l := &sync.Mutex{}
	bl.cells[b] = l
	return l
}
