package paramspace

import (
	"math/bits"
	"math/rand"
)

// Bit inheritance probabilities for crossover. A child bit is set with
// probability bothSet when both parents have it, mixedSet when exactly one
// parent has it and noneSet when neither does.
const (
	bothSet  = 0.9
	mixedSet = 0.5
	noneSet  = 0.1

	maxCrossoverAttempts = 1024
)

// crossover combines the indices of left and right bit by bit and returns the
// value at a synthesized index within [min, max] of the two parents. Inputs
// that are not domain members yield the domain midpoint.
func crossover[T any](d Domain[T], rng *rand.Rand, left, right T) T {
	i, okLeft := d.IndexOf(left)
	j, okRight := d.IndexOf(right)
	if !okLeft || !okRight {
		return d.ValueAt(d.Size() / 2)
	}
	if i > j {
		i, j = j, i
	}
	if i == j {
		return d.ValueAt(i)
	}

	return d.ValueAt(crossIndex(rng, i, j))
}

// crossIndex draws candidates until one falls inside [lo, hi]. Bits above the
// highest bit where lo and hi differ are shared by every index in the range,
// so they are copied and only the lower bits are drawn; this keeps the
// distribution and raises the acceptance rate. After maxCrossoverAttempts
// rejections the draw falls back to uniform over [lo, hi], which bounds the
// loop for pairs such as 0b0111 and 0b1000 where few candidates land in range.
func crossIndex(rng *rand.Rand, lo, hi int) int {
	width := bits.Len(uint(lo ^ hi))
	prefix := hi &^ (1<<width - 1)

	for attempt := 0; attempt < maxCrossoverAttempts; attempt++ {
		candidate := prefix
		for b := 0; b < width; b++ {
			l := lo>>b&1 == 1
			h := hi>>b&1 == 1

			p := noneSet
			switch {
			case l && h:
				p = bothSet
			case l != h:
				p = mixedSet
			}
			if rng.Float64() < p {
				candidate |= 1 << b
			}
		}
		if candidate >= lo && candidate <= hi {
			return candidate
		}
	}

	return lo + rng.Intn(hi-lo+1)
}
