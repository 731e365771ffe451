package selector

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ajitpratap0/paramsearch/pkg/paramspace"
)

// MetricDistance is the Euclidean distance between the named metrics of two
// strategies. With no names, the union of both strategies' metric names is
// used. Missing metrics count as zero.
func MetricDistance(names ...string) DistanceFunc {
	return func(a, b *Strategy) float64 {
		keys := names
		if len(keys) == 0 {
			keys = unionKeys(a.metrics, b.metrics)
		}
		va := make([]float64, len(keys))
		vb := make([]float64, len(keys))
		for i, k := range keys {
			va[i] = a.metrics[k]
			vb[i] = b.metrics[k]
		}
		return floats.Distance(va, vb, 2)
	}
}

// ParameterDistance is the Euclidean distance between two configurations of
// space. Numeric parameters are normalized to [0, 1] by their range;
// enumerated parameters contribute 0 when equal and 1 otherwise.
func ParameterDistance(space *paramspace.Space) DistanceFunc {
	ints := space.Ints()
	reals := space.Reals()
	strs := space.StringEnums()
	refs := space.SubConfigRefs()
	n := space.ParameterCount()

	return func(a, b *Strategy) float64 {
		va := make([]float64, 0, n)
		vb := make([]float64, 0, n)
		ca, cb := a.config, b.config

		for _, d := range ints {
			x, _ := ca.Int(d.Name())
			y, _ := cb.Int(d.Name())
			span := float64(d.To() - d.From())
			va = append(va, float64(x-d.From())/span)
			vb = append(vb, float64(y-d.From())/span)
		}
		for _, d := range reals {
			x, _ := ca.Real(d.Name())
			y, _ := cb.Real(d.Name())
			span := d.To() - d.From()
			va = append(va, (x-d.From())/span)
			vb = append(vb, (y-d.From())/span)
		}
		for _, d := range strs {
			x, _ := ca.Str(d.Name())
			y, _ := cb.Str(d.Name())
			va = append(va, 0)
			vb = append(vb, mismatch(x, y))
		}
		for _, d := range refs {
			x, _ := ca.SubConfig(d.Name())
			y, _ := cb.SubConfig(d.Name())
			va = append(va, 0)
			vb = append(vb, mismatch(x, y))
		}

		if len(va) == 0 {
			return 0
		}
		return floats.Distance(va, vb, 2)
	}
}

func mismatch(a, b string) float64 {
	if a == b {
		return 0
	}
	return 1
}

func unionKeys(a, b Metrics) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
