// Package devicedir provides a device-id to label lookup, decompressed on
// first use, for log and monitor-console enrichment. It is read-only and has no
// remote update path: the directory is small enough that it ships as a
// compressed asset in the binary rather than a queryable database.
package devicedir

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"github.com/ulikunitz/xz"

	_ "embed"
)

//go:embed devices.csv.xz
var compressed []byte

var (
	once    sync.Once
	labels  map[uint16]string
	loadErr error
)

// Label returns the human-readable label for a device id, and whether one
// was found. The directory is decompressed lazily on first use.
func Label(deviceID uint16) (string, bool) {
	load()
	label, ok := labels[deviceID]
	return label, ok
}

// Len reports how many entries are in the directory, decompressing it if
// this is the first call.
func Len() int {
	load()
	return len(labels)
}

func load() {
	once.Do(func() {
		labels, loadErr = decompress(compressed)
	})
	if loadErr != nil {
		labels = map[uint16]string{}
	}
}

func decompress(data []byte) (map[uint16]string, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("devicedir: opening xz reader: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("devicedir: reading compressed directory: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("devicedir: parsing csv: %w", err)
	}

	out := make(map[uint16]string, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < 2 {
			continue // header row or malformed line
		}
		var id uint16
		if _, err := fmt.Sscanf(rec[0], "%d", &id); err != nil {
			continue
		}
		out[id] = rec[1]
	}
	return out, nil
}
