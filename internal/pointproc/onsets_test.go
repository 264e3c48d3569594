package pointproc

import (
	"reflect"
	"testing"
)

func TestDetectOnsetsUpwardJumps(t *testing.T) {
	signal := []float64{0, 0, 10, 10, 22, 22, 22}
	got := DetectOnsets(signal, 5)
	want := []int64{2, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected onsets %v, got %v", want, got)
	}
}

func TestDetectOnsetsNegativeThreshold(t *testing.T) {
	signal := []float64{20, 20, 8, 8, 1}
	got := DetectOnsets(signal, -5)
	want := []int64{2, 4}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected downward onsets %v, got %v", want, got)
	}
}

func TestDetectOnsetsShortSignal(t *testing.T) {
	if got := DetectOnsets([]float64{3}, 5); got != nil {
		t.Fatalf("expected nil for one-sample signal, got %v", got)
	}
}

func TestIntervals(t *testing.T) {
	onsets := []int64{5, 9, 20}
	got := Intervals(onsets, false)
	want := []int64{4, 11}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected intervals %v, got %v", want, got)
	}

	got = Intervals(onsets, true)
	want = []int64{5, 4, 11}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected leading interval %v, got %v", want, got)
	}
}

func TestDedupe(t *testing.T) {
	cases := []struct {
		name string
		in   []int64
		tau  int64
		want []int64
	}{
		{"identical timestamps", []int64{7, 7, 7}, 0, []int64{7}},
		{"chain collapses to first", []int64{0, 1, 2, 3}, 1, []int64{0}},
		{"already clean", []int64{0, 5, 10}, 2, []int64{0, 5, 10}},
		{"single element", []int64{4}, 3, []int64{4}},
		{"empty", nil, 3, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Dedupe(tc.in, tc.tau)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Dedupe(%v, %d) = %v, want %v", tc.in, tc.tau, got, tc.want)
			}
		})
	}
}

func TestDedupeDoesNotMutateInput(t *testing.T) {
	in := []int64{1, 1, 5}
	Dedupe(in, 0)
	if !reflect.DeepEqual(in, []int64{1, 1, 5}) {
		t.Fatalf("input mutated: %v", in)
	}
}
