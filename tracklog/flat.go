package tracklog

import (
	"github.com/rotblauer/livetrack/conceptual"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Flat is a directory of per-vehicle track files.
type Flat struct {
	path string
}

func NewFlatWithRoot(root string) *Flat {
	root = filepath.Clean(root)
	if !filepath.IsAbs(root) {
		root, _ = filepath.Abs(root)
	}
	return &Flat{path: root}
}

// Exists returns true if the directory exists.
func (f *Flat) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *Flat) MkdirAll() error {
	return os.MkdirAll(f.path, 0770)
}

func (f *Flat) Path() string {
	return f.path
}

// TrackPath is the vehicle's track file.
// Vehicle IDs are escaped so that none can name a file outside the directory.
func (f *Flat) TrackPath(vehicle conceptual.VehicleID) string {
	name := url.PathEscape(string(vehicle))
	if strings.Trim(name, ".") == "" {
		name = strings.ReplaceAll(name, ".", "%2E")
	}
	return filepath.Join(f.path, name+".ndjson.gz")
}

func (f *Flat) NewGZFileWriter(vehicle conceptual.VehicleID, config *GZFileWriterConfig) (*GZFileWriter, error) {
	return NewGZFileWriter(f.TrackPath(vehicle), config)
}

func (f *Flat) NamedGZReader(vehicle conceptual.VehicleID) (*GZFileReader, error) {
	return NewGZFileReader(f.TrackPath(vehicle))
}

// Open opens a recorded track for reading.
// "-" is stdin; paths ending in .gz are decompressed.
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	if strings.HasSuffix(path, ".gz") {
		return NewGZFileReader(path)
	}
	return os.Open(path)
}
