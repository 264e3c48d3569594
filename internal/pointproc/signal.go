package pointproc

import "github.com/improstack/impro-engine/internal/models"

// DetectOnsetTimes finds IG onsets in a timestamped sample run. The jump is
// taken between consecutive samples and the onset carries the timestamp of
// the later sample, which reduces to DetectOnsets for 1 Hz recordings.
func DetectOnsetTimes(samples []models.Sample, threshold float64) []int64 {
	if len(samples) < 2 {
		return nil
	}

	onsets := make([]int64, 0)
	for i := 1; i < len(samples); i++ {
		diff := samples[i].Value - samples[i-1].Value
		if threshold > 0 {
			if diff >= threshold {
				onsets = append(onsets, samples[i].Timestamp)
			}
		} else if diff <= threshold {
			onsets = append(onsets, samples[i].Timestamp)
		}
	}
	return onsets
}
