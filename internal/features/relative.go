package features

import "math"

// Relative is one entrant's position within its race for a numeric field
type Relative struct {
	Diff *float64
	Z    *float64
}

// RelativeStats returns each value's deviation from the race mean and its
// z-score against the population standard deviation. A zero deviation spread
// yields z = 0. Nil inputs give nil outputs and are left out of the mean.
func RelativeStats(values []*float64) []Relative {
	out := make([]Relative, len(values))

	var (
		sum float64
		n   int
	)
	for _, v := range values {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return out
	}
	m := sum / float64(n)

	var sq float64
	for _, v := range values {
		if v != nil {
			d := *v - m
			sq += d * d
		}
	}
	std := math.Sqrt(sq / float64(n))

	for i, v := range values {
		if v == nil {
			continue
		}
		diff := *v - m
		z := 0.0
		if std > 0 {
			z = diff / std
		}
		out[i] = Relative{Diff: &diff, Z: &z}
	}
	return out
}

func intsAsFloats(values []*int) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		if v != nil {
			f := float64(*v)
			out[i] = &f
		}
	}
	return out
}
