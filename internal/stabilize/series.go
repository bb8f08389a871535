package stabilize

import "math"

// The policy primitives below operate on one entity's year-ordered value
// series. All are pure over their input slice index range and all are
// idempotent: applying one twice equals applying it once.

// everTrue sets every year to 1 once any year is 1, to 0 when the entity
// was ever observed but never true, and leaves an all-missing series
// missing. Inputs must already be normalized to {1, 0, NaN}.
func everTrue(series []float64) {
	allMissing := true
	maxVal := 0.0
	for _, v := range series {
		if math.IsNaN(v) {
			continue
		}
		allMissing = false
		if v > maxVal {
			maxVal = v
		}
	}
	if allMissing {
		return
	}
	for i := range series {
		series[i] = maxVal
	}
}

// fillGaps fills missing years from the nearest earlier known value, then
// fills any still-missing leading years from the nearest later value.
func fillGaps(series []float64) {
	last := math.NaN()
	for i, v := range series {
		if math.IsNaN(v) {
			series[i] = last
		} else {
			last = v
		}
	}
	next := math.NaN()
	for i := len(series) - 1; i >= 0; i-- {
		if math.IsNaN(series[i]) {
			series[i] = next
		} else {
			next = series[i]
		}
	}
}

// latestValue propagates the chronologically last non-missing value to
// every year. An all-missing series stays missing.
func latestValue(series []float64) {
	latest := math.NaN()
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) {
			latest = series[i]
			break
		}
	}
	if math.IsNaN(latest) {
		return
	}
	for i := range series {
		series[i] = latest
	}
}

// interpolateSingleGaps fills a missing year only when it is the sole
// missing year in its run. An interior single gap takes the arithmetic mean
// of its two neighbors; a single gap at the start or end of the span takes
// its lone neighbor. Runs of two or more consecutive missing years stay
// missing: the engine never extrapolates.
func interpolateSingleGaps(series []float64) {
	n := len(series)
	for i := 0; i < n; i++ {
		if !math.IsNaN(series[i]) {
			continue
		}
		runEnd := i
		for runEnd+1 < n && math.IsNaN(series[runEnd+1]) {
			runEnd++
		}
		if runEnd == i {
			var prev, next float64 = math.NaN(), math.NaN()
			if i > 0 {
				prev = series[i-1]
			}
			if i+1 < n {
				next = series[i+1]
			}
			switch {
			case !math.IsNaN(prev) && !math.IsNaN(next):
				series[i] = (prev + next) / 2.0
			case !math.IsNaN(prev):
				series[i] = prev
			case !math.IsNaN(next):
				series[i] = next
			}
		}
		i = runEnd
	}
}
