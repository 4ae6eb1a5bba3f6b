package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/airport-borders/internal/config"
)

// Two squares ten degrees wide, twenty degrees apart.
const bordersFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"name": "West"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "East"},
      "geometry": {"type": "Polygon", "coordinates": [[[20,0],[30,0],[30,10],[20,10],[20,0]]]}
    }
  ]
}`

// AAAA and DDDD sit inside, BBBB is ~22 km east of West, CCCC is far away.
const airportsFixture = `name,latitude_deg,longitude_deg,gps_code,iso_country
Alpha,5,5,AAAA,WW
Bravo,5,10.2,BBBB,WW
Charlie,50,50,CCCC,XX
Delta,5,25,DDDD,EE
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// setTestConfig installs a default configuration for the duration of the test.
func setTestConfig(t *testing.T) *config.Config {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Log:      config.LogConfig{Level: "info", Format: "json"},
		Classify: config.ClassifyConfig{ThresholdMeters: 50000, Concurrency: 1, Property: "airports_gps_code"},
		Airports: config.AirportsConfig{CodePattern: "^[A-Z]{4}$", OutlierKm: 1000},
		Store:    config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "runs.db")},
		Server:   config.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}},
		Monitoring: config.MonitoringConfig{
			LookbackWindowHours:     24,
			FailureRateThreshold:    0.25,
			UnassignedRateThreshold: 0.02,
			MaxUnassignedIncrease:   25,
		},
	}
	t.Cleanup(func() { cfg = prev })
	return cfg
}
