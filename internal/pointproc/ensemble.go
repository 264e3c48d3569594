package pointproc

// EnsembleOptions controls duet and trio counting over a trio of onset series.
type EnsembleOptions struct {
	// Tau is the matching timescale in seconds.
	Tau int64
	// Causal restricts matching to source-before-target windows.
	Causal bool
	// Clean dedupes each series at timescale tau before matching and the
	// match sets after.
	Clean bool
	// Fraction normalises each directional count by the size of the series
	// the matches are drawn from, and the total by the number of performers.
	Fraction bool
}

func (o EnsembleOptions) matchOptions() MatchOptions {
	return MatchOptions{Tau: o.Tau, Causal: o.Causal, Clean: o.Clean}
}

func (o EnsembleOptions) prepare(series [][]int64) [][]int64 {
	prepared := make([][]int64, len(series))
	for i, ts := range series {
		if o.Clean {
			prepared[i] = Dedupe(ts, o.Tau)
		} else {
			prepared[i] = append([]int64(nil), ts...)
		}
	}
	return prepared
}

// DuetCount counts simultaneous onset pairs across a trio. All six ordered
// pairs are matched and summed; the total halves because matching is
// bidirectional. In fraction mode each directional count divides by the
// length of the target series and the total by 3.
func DuetCount(a, b, c []int64, opts EnsembleOptions) float64 {
	series := opts.prepare([][]int64{a, b, c})
	mo := opts.matchOptions()

	counts := [3][3]float64{}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i == j {
				continue
			}
			counts[i][j] = float64(len(Matches(series[i], series[j], mo)))
		}
	}

	if opts.Fraction {
		for i := 0; i < 3; i++ {
			n := float64(len(series[i]))
			if n == 0 {
				continue
			}
			// Matches drawn from series i are produced by every pair (j, i).
			for j := 0; j < 3; j++ {
				if j != i {
					counts[j][i] /= n
				}
			}
		}
	}

	total := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			total += counts[i][j]
		}
	}
	total /= 2
	if opts.Fraction {
		total /= 3
	}
	return total
}

// TrioCount counts three-way simultaneous onsets. Bidirectional pair match
// sets are matched against each other, so a trio appears once per
// participating performer; per-performer counts halve for bidirectionality.
// Fraction mode divides each performer's count by their onset count and the
// total by 3.
func TrioCount(a, b, c []int64, opts EnsembleOptions) float64 {
	series := opts.prepare([][]int64{a, b, c})
	mo := opts.matchOptions()

	duo12 := bidirectionalMatches(series[0], series[1], mo)
	duo13 := bidirectionalMatches(series[0], series[2], mo)
	duo23 := bidirectionalMatches(series[1], series[2], mo)

	trio1 := float64(len(Matches(duo12, duo13, mo))+len(Matches(duo13, duo12, mo))) / 2
	trio2 := float64(len(Matches(duo12, duo23, mo))+len(Matches(duo23, duo12, mo))) / 2
	trio3 := float64(len(Matches(duo23, duo13, mo))+len(Matches(duo13, duo23, mo))) / 2

	if opts.Fraction {
		if n := float64(len(series[0])); n > 0 {
			trio1 /= n
		}
		if n := float64(len(series[1])); n > 0 {
			trio2 /= n
		}
		if n := float64(len(series[2])); n > 0 {
			trio3 /= n
		}
	}

	total := trio1 + trio2 + trio3
	if opts.Fraction {
		total /= 3
	}
	return total
}

func bidirectionalMatches(x, y []int64, opts MatchOptions) []int64 {
	matches := Matches(x, y, opts)
	return append(matches, Matches(y, x, opts)...)
}

// DuetCountFromSignals detects onsets in three raw controller signals and
// counts duets among them.
func DuetCountFromSignals(s1, s2, s3 []float64, threshold float64, opts EnsembleOptions) float64 {
	return DuetCount(
		DetectOnsets(s1, threshold),
		DetectOnsets(s2, threshold),
		DetectOnsets(s3, threshold),
		opts,
	)
}

// TrioCountFromSignals detects onsets in three raw controller signals and
// counts full-trio coincidences among them.
func TrioCountFromSignals(s1, s2, s3 []float64, threshold float64, opts EnsembleOptions) float64 {
	return TrioCount(
		DetectOnsets(s1, threshold),
		DetectOnsets(s2, threshold),
		DetectOnsets(s3, threshold),
		opts,
	)
}
