package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	uid TEXT NOT NULL,
	board_kind TEXT NOT NULL,
	pic INTEGER NOT NULL,
	block_offset INTEGER NOT NULL,
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_uid ON samples (uid, created_at DESC);

CREATE TABLE IF NOT EXISTS sensor_readings (
	uid TEXT NOT NULL,
	board_kind TEXT NOT NULL,
	temp_raw INTEGER NOT NULL,
	voltage_raw INTEGER NOT NULL,
	temp30_cal INTEGER NOT NULL,
	temp110_cal INTEGER NOT NULL,
	vdd_cal INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
`

// SQLStore is the default SampleStore/SensorStore adapter: a local SQLite
// database reached through sqlx, grounded on ClusterCockpit-cc-backend's
// repository layer (jmoiron/sqlx over mattn/go-sqlite3), scaled down to
// the two tables this core actually needs.
type SQLStore struct {
	db *sqlx.DB
}

// Open creates (if needed) and opens a SQLite database at path.
func Open(path string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// SaveSample inserts one sample row, encoding Payload as a comma-separated
// list of integers per spec.md §6's "data (comma-separated integers)".
func (s *SQLStore) SaveSample(sample Sample) error {
	_, err := s.db.Exec(
		`INSERT INTO samples (uid, board_kind, pic, block_offset, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sample.UID, sample.BoardKind, sample.PIC, sample.BlockOffset, bytesToCSV(sample.Payload), sample.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save sample: %w", err)
	}
	return nil
}

// ReferenceDump reconstructs the most recent full SRAM dump for uid from
// the samples table: the latest row per block_offset. It is complete iff
// every offset in [0, blockCount) has at least one row.
func (s *SQLStore) ReferenceDump(uid string, blockCount int) (map[int][]byte, bool, error) {
	rows, err := s.db.Query(
		`SELECT block_offset, data FROM samples WHERE uid = ? ORDER BY created_at DESC`, uid,
	)
	if err != nil {
		return nil, false, fmt.Errorf("store: query reference dump: %w", err)
	}
	defer rows.Close()

	blocks := make(map[int][]byte)
	for rows.Next() {
		var offset int
		var data string
		if err := rows.Scan(&offset, &data); err != nil {
			return nil, false, fmt.Errorf("store: scan reference dump row: %w", err)
		}
		if _, seen := blocks[offset]; seen {
			continue // keep only the most recent row per offset
		}
		payload, err := csvToBytes(data)
		if err != nil {
			return nil, false, fmt.Errorf("store: decode payload for offset %d: %w", offset, err)
		}
		blocks[offset] = payload
	}

	complete := true
	for i := 0; i < blockCount; i++ {
		if _, ok := blocks[i]; !ok {
			complete = false
			break
		}
	}
	return blocks, complete, nil
}

// SaveSensorReading inserts one sensor reading row.
func (s *SQLStore) SaveSensorReading(r SensorReading) error {
	_, err := s.db.Exec(
		`INSERT INTO sensor_readings (uid, board_kind, temp_raw, voltage_raw, temp30_cal, temp110_cal, vdd_cal, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UID, r.BoardKind, r.TempRaw, r.VoltageRaw, r.Temp30Cal, r.Temp110Cal, r.VddCal, r.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save sensor reading: %w", err)
	}
	return nil
}

func bytesToCSV(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, ",")
}

func csvToBytes(csv string) ([]byte, error) {
	if csv == "" {
		return nil, nil
	}
	parts := strings.Split(csv, ",")
	out := make([]byte, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", p, err)
		}
		out[i] = byte(n)
	}
	return out, nil
}
