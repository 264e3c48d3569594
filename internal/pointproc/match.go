package pointproc

import "sort"

// MatchOptions controls windowed matching between two onset series.
type MatchOptions struct {
	// Tau is the timescale (seconds) over which two onsets count as a match.
	Tau int64
	// Causal restricts matches to target onsets at or after the source onset.
	Causal bool
	// Clean removes matches closer than tau from each other; otherwise only
	// exact duplicates collapse.
	Clean bool
}

// Matches returns the timestamps from target that fall within tau of some
// onset in source. With Causal set, only source <= target <= source+tau
// windows count. The result is sorted and deduped: at timescale tau when
// Clean is set, otherwise only exact duplicates are removed.
func Matches(source, target []int64, opts MatchOptions) []int64 {
	found := make([]int64, 0)
	for _, s := range source {
		for _, t := range target {
			if opts.Causal {
				if s <= t && t-s <= opts.Tau {
					found = append(found, t)
				}
			} else if abs64(t-s) <= opts.Tau {
				found = append(found, t)
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	if opts.Clean {
		return Dedupe(found, opts.Tau)
	}
	return Dedupe(found, 0)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
