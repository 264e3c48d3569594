// impro-sim generates synthetic controller signals for a trio session and
// pushes them to a running engine over Prometheus remote write. With
// -analyze it then requests an analysis and prints the JSON result.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

func main() {
	var (
		target     string
		session    string
		performers string
		duration   int
		jumpEvery  int
		seed       int64
		analyze    bool
	)
	flag.StringVar(&target, "target", "http://localhost:8080", "Engine base URL")
	flag.StringVar(&session, "session", "sim-session", "Session identifier")
	flag.StringVar(&performers, "performers", "alto,bass,drums", "Comma-separated performer names")
	flag.IntVar(&duration, "duration", 120, "Signal length in seconds")
	flag.IntVar(&jumpEvery, "jump-every", 15, "Mean seconds between controller jumps")
	flag.Int64Var(&seed, "seed", 0, "Random seed (0 uses current time)")
	flag.BoolVar(&analyze, "analyze", false, "Request an analysis after pushing samples")
	flag.Parse()

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	names := strings.Split(performers, ",")
	base := time.Now().Add(-time.Duration(duration) * time.Second).Unix()

	writeReq := prompb.WriteRequest{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		writeReq.Timeseries = append(writeReq.Timeseries, prompb.TimeSeries{
			Labels: []prompb.Label{
				{Name: "session", Value: session},
				{Name: "performer", Value: name},
				{Name: "sensor", Value: "cc-74"},
			},
			Samples: simulateSignal(rng, base, duration, jumpEvery),
		})
	}

	if err := push(target, &writeReq); err != nil {
		log.Fatalf("push samples: %v", err)
	}
	log.Printf("pushed %d series for session %s (seed %d)", len(writeReq.Timeseries), session, seed)

	if analyze {
		if err := requestAnalysis(target, session); err != nil {
			log.Fatalf("analyze: %v", err)
		}
	}
}

// simulateSignal walks a CC-style level in [0,127] that mostly drifts and
// occasionally jumps, one sample per second.
func simulateSignal(rng *rand.Rand, base int64, duration, jumpEvery int) []prompb.Sample {
	samples := make([]prompb.Sample, 0, duration)
	level := float64(rng.Intn(40) + 40)

	for i := 0; i < duration; i++ {
		if jumpEvery > 0 && rng.Intn(jumpEvery) == 0 {
			delta := float64(rng.Intn(40) + 10)
			if rng.Intn(2) == 0 {
				delta = -delta
			}
			level += delta
		} else {
			level += rng.Float64()*2 - 1
		}
		if level < 0 {
			level = 0
		}
		if level > 127 {
			level = 127
		}
		samples = append(samples, prompb.Sample{
			Timestamp: (base + int64(i)) * 1000,
			Value:     level,
		})
	}
	return samples
}

func push(target string, writeReq *prompb.WriteRequest) error {
	raw, err := proto.Marshal(writeReq)
	if err != nil {
		return fmt.Errorf("marshal write request: %w", err)
	}
	body := snappy.Encode(nil, raw)

	resp, err := http.Post(target+"/api/v1/write", "application/x-protobuf", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}
	return nil
}

func requestAnalysis(target, session string) error {
	payload, err := json.Marshal(map[string]any{"session_id": session})
	if err != nil {
		return err
	}

	resp, err := http.Post(target+"/api/v1/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
