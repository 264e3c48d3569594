// Package pointproc implements point-process statistics for Interruptive
// Generation (IG) events: onset detection from raw controller signals,
// timestamp hygiene, and windowed match counting for duets and trios.
package pointproc

// DetectOnsets returns the timestamps at which IGs occur in a raw controller
// signal sampled at 1 Hz. An onset is a first-difference jump of at least
// threshold; a negative threshold selects downward jumps instead. The
// reported timestamp is the index of the sample after the jump.
func DetectOnsets(signal []float64, threshold float64) []int64 {
	if len(signal) < 2 {
		return nil
	}

	onsets := make([]int64, 0)
	for i := 1; i < len(signal); i++ {
		diff := signal[i] - signal[i-1]
		if threshold > 0 {
			if diff >= threshold {
				onsets = append(onsets, int64(i))
			}
		} else if diff <= threshold {
			onsets = append(onsets, int64(i))
		}
	}
	return onsets
}

// Intervals returns the gaps between consecutive onsets. When
// firstAsInterval is set, the first onset closes a leading segment and is
// prepended as an interval of its own.
func Intervals(onsets []int64, firstAsInterval bool) []int64 {
	if len(onsets) == 0 {
		return nil
	}

	intervals := make([]int64, 0, len(onsets))
	if firstAsInterval {
		intervals = append(intervals, onsets[0])
	}
	for i := 1; i < len(onsets); i++ {
		intervals = append(intervals, onsets[i]-onsets[i-1])
	}
	return intervals
}

// Dedupe removes timestamps that are indistinguishable at timescale tau.
// Each pass drops the later element of every pair closer than or equal to
// tau, repeating until all gaps exceed tau. With tau == 0 only identical
// timestamps collapse. The input must be sorted ascending.
func Dedupe(onsets []int64, tau int64) []int64 {
	current := append([]int64(nil), onsets...)
	for len(current) > 1 {
		drop := make(map[int]struct{})
		for i := 1; i < len(current); i++ {
			if current[i]-current[i-1] <= tau {
				drop[i] = struct{}{}
			}
		}
		if len(drop) == 0 {
			break
		}
		next := current[:0]
		for i, ts := range current {
			if _, ok := drop[i]; ok {
				continue
			}
			next = append(next, ts)
		}
		current = next
	}
	return current
}
