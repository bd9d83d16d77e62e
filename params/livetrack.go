package params

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
)

var DatadirRoot = func() string {
	home, err := homedir.Dir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".livetrack")
	}
	return filepath.Join(home, ".livetrack")
}()

var StateDBName = "state.db"
var LastKnownBucket = []byte("last")

var (
	// CacheLastKnownTTL is how long a vehicle's last sample is served
	// from memory without a fresh publish.
	CacheLastKnownTTL = 24 * time.Hour

	// PublishDedupeSize is the number of recent publish hashes remembered
	// to drop byte-for-byte resends.
	PublishDedupeSize = 10_000
)

// Environment-provided InfluxDB settings. Export is disabled when the URL is empty.
var (
	INFLUXDB_URL    = os.Getenv("INFLUXDB_URL")
	INFLUXDB_TOKEN  = os.Getenv("INFLUXDB_TOKEN")
	INFLUXDB_ORG    = os.Getenv("INFLUXDB_ORG")
	INFLUXDB_BUCKET = os.Getenv("INFLUXDB_BUCKET")
)

// PublishTokenHeader carries the shared publish secret.
const PublishTokenHeader = "X-Publish-Token"

// PublishTokenEnv names the environment variable holding the shared publish secret.
// When unset, the web daemon allows all publishes.
const PublishTokenEnv = "LIVETRACK_TOKEN"

// TracksDirName holds the per-vehicle recorded sample logs under the web daemon's data dir.
var TracksDirName = "tracks"

var DefaultGZipCompressionLevel = gzip.BestSpeed
