// Command replay runs a file of calendar events through the batch matcher
// against an EONET feed fixture, without Redis, Kafka, or network access. It
// prints the alerting results as JSON followed by a snapshot summary.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -events internal/pipeline/testdata/calendar_events.json \
//	  -feed internal/pipeline/testdata/eonet_events.json \
//	  -threshold 50 \
//	  -now 2024-03-16T00:00:00Z
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-match-service/internal/collector"
	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
	"github.com/couchcryptid/disaster-match-service/internal/pipeline"
	"github.com/couchcryptid/disaster-match-service/internal/store"
)

type options struct {
	eventsPath string
	feedPath   string
	outPath    string
	threshold  float64
	padDays    int
	now        time.Time
	hotspotMin int
	verbose    bool
}

func main() {
	var opts options
	var now string
	flag.StringVar(&opts.eventsPath, "events", "", "path to a calendar event JSON file (object, array, or {\"events\":[...]})")
	flag.StringVar(&opts.feedPath, "feed", "", "path to an EONET events JSON fixture")
	flag.StringVar(&opts.outPath, "out", "", "optional path to write the results JSON instead of stdout")
	flag.Float64Var(&opts.threshold, "threshold", 0, "match distance in kilometers (required)")
	flag.IntVar(&opts.padDays, "pad-days", 10, "days added on each side of the batch window")
	flag.StringVar(&now, "now", "", "fixed RFC 3339 clock time (default: current time)")
	flag.IntVar(&opts.hotspotMin, "hotspot-min", domain.DefaultHotspotMinOccurrences, "minimum occurrences for a hotspot")
	flag.BoolVar(&opts.verbose, "v", false, "log pipeline warnings to stderr")
	flag.Parse()

	if opts.eventsPath == "" || opts.feedPath == "" || opts.threshold <= 0 {
		flag.Usage()
		os.Exit(2)
	}
	if now != "" {
		t, err := time.Parse(time.RFC3339, now)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -now: %v\n", err)
			os.Exit(2)
		}
		opts.now = t
	}

	if err := run(context.Background(), opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// fileFeed serves one feed fixture for both the live and windowed queries.
type fileFeed struct {
	disasters []domain.RawDisaster
}

func loadFeed(path string) (*fileFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	var resp domain.FeedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %w", domain.ErrFeed, err)
	}
	return &fileFeed{disasters: resp.Events}, nil
}

func (f *fileFeed) FetchCurrent(context.Context) ([]domain.RawDisaster, error) {
	return f.disasters, nil
}

func (f *fileFeed) FetchWindow(context.Context, domain.Window) ([]domain.RawDisaster, error) {
	return f.disasters, nil
}

type report struct {
	Window     domain.Window        `json:"window"`
	Events     int                  `json:"events"`
	Alerts     int                  `json:"alerts"`
	Parked     []string             `json:"parked"`
	Results    []domain.MatchResult `json:"results"`
	Statistics domain.Statistics    `json:"statistics"`
	Hotspots   []domain.Hotspot     `json:"hotspots"`
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	clock := clockwork.NewRealClock()
	if !opts.now.IsZero() {
		clock = clockwork.NewFakeClockAt(opts.now)
	}
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	logOut := io.Discard
	if opts.verbose {
		logOut = stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetricsForTesting()

	body, err := os.ReadFile(opts.eventsPath)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	events, err := domain.DecodeEvents(body)
	if err != nil {
		return err
	}
	feed, err := loadFeed(opts.feedPath)
	if err != nil {
		return err
	}

	live := store.NewDisasters(clock)
	lists := store.NewEvents()
	coll := collector.New(feed, live, store.NewWindows(clock), nil, collector.Config{
		TTL:       time.Hour,
		WindowTTL: time.Hour,
	}, clock, logger, metrics)
	if err := coll.Refresh(ctx); err != nil {
		return err
	}

	pad := time.Duration(opts.padDays) * 24 * time.Hour
	coord := pipeline.NewCoordinator(pipeline.CoordinatorDeps{
		Matcher: pipeline.NewMatcher(nil, opts.threshold, domain.EarthRadiusKm, logger),
		Fetcher: coll,
		Live:    live,
		Matches: lists,
		Raw:     lists,
	}, pipeline.CoordinatorConfig{WindowPad: pad, ResolveConcurrency: 1}, logger, metrics)

	w, err := domain.DeriveWindow(events, pad)
	if err != nil {
		return err
	}
	results, err := coord.ProcessBatchWindow(ctx, events, w)
	if err != nil {
		return err
	}

	parked, err := lists.TakeRaw(ctx)
	if err != nil {
		return err
	}
	parkedIDs := make([]string, 0, len(parked))
	for _, e := range parked {
		parkedIDs = append(parkedIDs, e.ID)
	}

	snapshot := live.ReadAll(ctx)
	out := report{
		Window:     w,
		Events:     len(events),
		Alerts:     len(results),
		Parked:     parkedIDs,
		Results:    results,
		Statistics: domain.Summarize(snapshot),
		Hotspots:   domain.Hotspots(snapshot, opts.hotspotMin),
	}

	if opts.outPath != "" {
		if err := writeJSONFile(opts.outPath, out); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %d alerts for %d events to %s\n", out.Alerts, out.Events, opts.outPath)
		return nil
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
