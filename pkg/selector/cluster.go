package selector

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// DistanceFunc measures how far apart two strategies are
type DistanceFunc func(a, b *Strategy) float64

// ClusterConfig bounds a ClusterSelector
type ClusterConfig struct {
	MaxClusters           int
	MaxElementsPerCluster int
	// Epsilon is the exclusive upper bound on the mean distance between a
	// candidate and a cluster's members for the candidate to join it.
	Epsilon  float64
	Distance DistanceFunc
}

type cluster struct {
	// members sorted by rating, best first
	members []*Strategy
}

// representative is the best member; it ranks the cluster.
func (c *cluster) representative() *Strategy {
	return c.members[0]
}

func (c *cluster) meanDistance(s *Strategy, dist DistanceFunc) float64 {
	sum := 0.0
	for _, m := range c.members {
		sum += dist(s, m)
	}
	return sum / float64(len(c.members))
}

func (c *cluster) insert(s *Strategy) {
	i := sort.Search(len(c.members), func(i int) bool {
		return c.members[i].rating < s.rating
	})
	c.members = append(c.members, nil)
	copy(c.members[i+1:], c.members[i:])
	c.members[i] = s
}

// ClusterSelector groups strategies that lie within Epsilon of each other and
// bounds both the number of clusters and the size of each. A full cluster
// drops its worst member; surplus clusters are evicted whole, lowest-ranked
// first. The resulting set is not a strict global top-K.
type ClusterSelector struct {
	mu       sync.Mutex
	cfg      ClusterConfig
	clusters []*cluster
}

// NewClusterSelector validates cfg and creates an empty selector
func NewClusterSelector(cfg ClusterConfig) (*ClusterSelector, error) {
	if cfg.MaxClusters <= 0 {
		return nil, fmt.Errorf("max clusters must be positive, got %d", cfg.MaxClusters)
	}
	if cfg.MaxElementsPerCluster <= 0 {
		return nil, fmt.Errorf("max elements per cluster must be positive, got %d", cfg.MaxElementsPerCluster)
	}
	if cfg.Epsilon <= 0 || math.IsNaN(cfg.Epsilon) {
		return nil, fmt.Errorf("cluster epsilon must be positive, got %g", cfg.Epsilon)
	}
	if cfg.Distance == nil {
		return nil, fmt.Errorf("distance function is required")
	}
	return &ClusterSelector{cfg: cfg}, nil
}

func (c *ClusterSelector) Add(s *Strategy) []*Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()

	var evicted []*Strategy

	target := c.nearest(s)
	if target == nil {
		c.clusters = append(c.clusters, &cluster{members: []*Strategy{s}})
	} else {
		target.insert(s)
		if len(target.members) > c.cfg.MaxElementsPerCluster {
			last := len(target.members) - 1
			evicted = append(evicted, target.members[last])
			target.members[last] = nil
			target.members = target.members[:last]
		}
	}

	c.rank()

	for len(c.clusters) > c.cfg.MaxClusters {
		last := len(c.clusters) - 1
		evicted = append(evicted, c.clusters[last].members...)
		c.clusters[last] = nil
		c.clusters = c.clusters[:last]
	}

	return evicted
}

// nearest returns the closest cluster within epsilon, or nil
func (c *ClusterSelector) nearest(s *Strategy) *cluster {
	var best *cluster
	bestDist := math.Inf(1)
	for _, cl := range c.clusters {
		d := cl.meanDistance(s, c.cfg.Distance)
		if d < c.cfg.Epsilon && d < bestDist {
			best, bestDist = cl, d
		}
	}
	return best
}

// rank orders clusters by their representative's rating, best first
func (c *ClusterSelector) rank() {
	sort.SliceStable(c.clusters, func(i, j int) bool {
		return c.clusters[i].representative().rating > c.clusters[j].representative().rating
	})
}

func (c *ClusterSelector) Remove(s *Strategy) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ci, cl := range c.clusters {
		for i, m := range cl.members {
			if m != s {
				continue
			}
			cl.members = append(cl.members[:i], cl.members[i+1:]...)
			if len(cl.members) == 0 {
				c.clusters = append(c.clusters[:ci], c.clusters[ci+1:]...)
			} else if i == 0 {
				c.rank()
			}
			return true
		}
	}
	return false
}

// Snapshot returns every resident strategy ordered by rating, best first
func (c *ClusterSelector) Snapshot() []*Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Strategy
	for _, cl := range c.clusters {
		out = append(out, cl.members...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].rating > out[j].rating
	})
	return out
}

// Clusters returns a copy of each cluster's members, clusters best first
func (c *ClusterSelector) Clusters() [][]*Strategy {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]*Strategy, len(c.clusters))
	for i, cl := range c.clusters {
		out[i] = append([]*Strategy(nil), cl.members...)
	}
	return out
}

// ClusterCount is the number of live clusters
func (c *ClusterSelector) ClusterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clusters)
}

func (c *ClusterSelector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, cl := range c.clusters {
		n += len(cl.members)
	}
	return n
}

// Capacity is MaxClusters * MaxElementsPerCluster
func (c *ClusterSelector) Capacity() int {
	return c.cfg.MaxClusters * c.cfg.MaxElementsPerCluster
}
