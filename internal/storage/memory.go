// Package storage holds recorded controller signals in memory, indexed by
// series labels (session, performer, sensor).
package storage

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/improstack/impro-engine/internal/models"
)

// Label is one name/value pair identifying a series.
type Label struct {
	Name  string
	Value string
}

// Series is a labelled, timestamp-sorted run of samples.
type Series struct {
	Labels  []Label
	Samples []models.Sample
}

// ErrNoSeries is returned when no stored series matches the given labels.
var ErrNoSeries = errors.New("no series for labels")

type seriesID uint64

type labelsHash uint64

// MemoryStore is a concurrent in-memory sample store with an inverted label
// index, so reads can match on any label subset.
type MemoryStore struct {
	mu            sync.RWMutex
	lastSeriesID  seriesID
	samples       map[seriesID][]models.Sample
	labelsByID    map[seriesID][]Label
	invertedIndex map[string]map[string][]seriesID
	seriesHash    map[labelsHash]seriesID
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples:       make(map[seriesID][]models.Sample),
		labelsByID:    make(map[seriesID][]Label),
		invertedIndex: make(map[string]map[string][]seriesID),
		seriesHash:    make(map[labelsHash]seriesID),
	}
}

// Write appends samples to the series identified by labels, creating the
// series and its index entries on first sight.
func (s *MemoryStore) Write(labels []Label, samples []models.Sample) error {
	if len(labels) == 0 {
		return errors.New("labels are required")
	}
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := buildLabelsHash(labels)
	id, known := s.seriesHash[hash]
	if !known {
		s.lastSeriesID++
		id = s.lastSeriesID
		s.seriesHash[hash] = id
		s.labelsByID[id] = append([]Label(nil), labels...)

		for _, l := range labels {
			if s.invertedIndex[l.Name] == nil {
				s.invertedIndex[l.Name] = make(map[string][]seriesID)
			}
			s.invertedIndex[l.Name][l.Value] = append(s.invertedIndex[l.Name][l.Value], id)
		}
	}

	s.samples[id] = append(s.samples[id], samples...)
	return nil
}

// Read returns every series matching all given labels, with samples sorted
// by timestamp and restricted to [from, to]. A zero `to` means unbounded.
func (s *MemoryStore) Read(from, to int64, matchers []Label) ([]Series, error) {
	if len(matchers) == 0 {
		return nil, errors.New("matchers are required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.matchSeries(matchers)
	if len(candidates) == 0 {
		return nil, ErrNoSeries
	}

	result := make([]Series, 0, len(candidates))
	for _, id := range candidates {
		samples := append([]models.Sample(nil), s.samples[id]...)
		sort.Slice(samples, func(i, j int) bool { return samples[i].Timestamp < samples[j].Timestamp })

		filtered := samples[:0]
		for _, sample := range samples {
			if sample.Timestamp < from {
				continue
			}
			if to > 0 && sample.Timestamp > to {
				continue
			}
			filtered = append(filtered, sample)
		}

		result = append(result, Series{
			Labels:  append([]Label(nil), s.labelsByID[id]...),
			Samples: filtered,
		})
	}
	return result, nil
}

// LabelValues lists the distinct values seen for a label name.
func (s *MemoryStore) LabelValues(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make([]string, 0, len(s.invertedIndex[name]))
	for v := range s.invertedIndex[name] {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (s *MemoryStore) matchSeries(matchers []Label) []seriesID {
	var candidates []seriesID
	for i, m := range matchers {
		ids := s.invertedIndex[m.Name][m.Value]
		if len(ids) == 0 {
			return nil
		}
		if i == 0 {
			candidates = append([]seriesID(nil), ids...)
			continue
		}
		candidates = intersect(candidates, ids)
		if len(candidates) == 0 {
			return nil
		}
	}
	return candidates
}

func intersect(a, b []seriesID) []seriesID {
	set := make(map[seriesID]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	out := a[:0]
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func buildLabelsHash(labels []Label) labelsHash {
	sorted := append([]Label(nil), labels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := fnv.New64a()
	for idx, l := range sorted {
		h.Write([]byte(l.Name))
		h.Write([]byte("="))
		h.Write([]byte(l.Value))
		if idx != len(sorted)-1 {
			h.Write([]byte(","))
		}
	}
	return labelsHash(h.Sum64())
}
