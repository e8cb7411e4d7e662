package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureDir = "../../internal/pipeline/testdata"

func fixtureOptions() options {
	return options{
		eventsPath: filepath.Join(fixtureDir, "calendar_events.json"),
		feedPath:   filepath.Join(fixtureDir, "eonet_events.json"),
		threshold:  50,
		padDays:    10,
		now:        time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC),
		hotspotMin: 1,
	}
}

func TestRun_Fixtures(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), fixtureOptions(), &stdout, &stderr))

	var got report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 4, got.Events)
	assert.Equal(t, 2, got.Alerts)
	assert.Equal(t, []string{"cal-3"}, got.Parked)
	assert.Equal(t, "2024-03-05:2024-04-01", got.Window.Key())
	assert.Equal(t, 5, got.Statistics.Total)
	assert.Len(t, got.Hotspots, 5)
}

func TestRun_WritesOutputFile(t *testing.T) {
	opts := fixtureOptions()
	opts.outPath = filepath.Join(t.TempDir(), "results.json")

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), opts, &stdout, &bytes.Buffer{}))

	assert.Contains(t, stdout.String(), "wrote 2 alerts for 4 events")
	data, err := os.ReadFile(opts.outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cal-1"`)
}

func TestRun_MissingFile(t *testing.T) {
	opts := fixtureOptions()
	opts.feedPath = filepath.Join(t.TempDir(), "missing.json")

	assert.Error(t, run(context.Background(), opts, &bytes.Buffer{}, &bytes.Buffer{}))
}
