package enricher

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bikeshare-dashboard/pkg/networks/models"
)

// ErrNoSnapshot is returned by Load when nothing has been persisted yet.
var ErrNoSnapshot = errors.New("no enrichment snapshot")

var snapshotColumns = []string{
	"id", "name", "city", "country", "latitude", "longitude",
	"declared_capacity", "station_count", "free_bikes", "empty_slots", "synthetic",
}

// SnapshotStore keeps the single most recent enriched table as a CSV file.
type SnapshotStore struct {
	path string
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

func (s *SnapshotStore) Path() string {
	return s.path
}

// Save replaces the snapshot atomically.
func (s *SnapshotStore) Save(rows []models.EnrichedNetworkRow) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeRows(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("moving snapshot into place: %w", err)
	}
	return nil
}

// Load reads the snapshot back.
func (s *SnapshotStore) Load() ([]models.EnrichedNetworkRow, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}
	return rows, nil
}

func writeRows(w io.Writer, rows []models.EnrichedNetworkRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(snapshotColumns); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.ID,
			r.Name,
			optString(r.City),
			optString(r.Country),
			optFloat(r.Latitude),
			optFloat(r.Longitude),
			strconv.Itoa(r.DeclaredCapacity),
			strconv.Itoa(r.StationCount),
			strconv.Itoa(r.FreeBikes),
			strconv.Itoa(r.EmptySlots),
			strconv.FormatBool(r.Synthetic),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readRows(r io.Reader) ([]models.EnrichedNetworkRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []models.EnrichedNetworkRow{}, nil
	}
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, col := range []string{"id", "station_count", "free_bikes", "empty_slots"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	rows := []models.EnrichedNetworkRow{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}

		var row models.EnrichedNetworkRow
		row.ID = field("id")
		row.Name = field("name")
		row.City = parseOptString(field("city"))
		row.Country = parseOptString(field("country"))
		if row.Latitude, err = parseOptFloat(field("latitude")); err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		if row.Longitude, err = parseOptFloat(field("longitude")); err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}
		for _, c := range []struct {
			name string
			dst  *int
		}{
			{"declared_capacity", &row.DeclaredCapacity},
			{"station_count", &row.StationCount},
			{"free_bikes", &row.FreeBikes},
			{"empty_slots", &row.EmptySlots},
		} {
			if *c.dst, err = parseCount(field(c.name)); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, c.name, err)
			}
		}
		// snapshots written before the column existed have no synthetic flag
		if raw := field("synthetic"); raw != "" {
			if row.Synthetic, err = strconv.ParseBool(raw); err != nil {
				return nil, fmt.Errorf("line %d: synthetic: %w", line, err)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func parseOptString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}
