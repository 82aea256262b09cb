package groundstation

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/lora_tracker/internal/heading"
	"github.com/relabs-tech/lora_tracker/internal/ranging"
	"github.com/relabs-tech/lora_tracker/internal/record"
)

// CSV export file names.
const (
	PathCSV     = "path_data.csv"
	ObstacleCSV = "obs_data.csv"
)

// Entry is one stored record. Obstacle entries carry the position and
// heading of the last PATH record of the session, when there was one.
type Entry struct {
	ID          int64           `json:"id"`
	Session     string          `json:"session"`
	ReceivedAt  time.Time       `json:"received_at"`
	Kind        record.Kind     `json:"kind"`
	HasPosition bool            `json:"has_position"`
	Latitude    float64         `json:"lat"`
	Longitude   float64         `json:"lon"`
	Heading     heading.Bearing `json:"heading"`
	Distance    ranging.Reading `json:"distance,omitempty"`
	NoEcho      bool            `json:"no_echo,omitempty"`
	Line        string          `json:"line"`
}

// Store keeps received records in SQLite. Each Store is one session.
type Store struct {
	db      *sql.DB
	session string

	mu       sync.Mutex
	lastPath *record.Record
}

// OpenStore opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			kind TEXT NOT NULL,
			has_position INTEGER NOT NULL,
			lat DOUBLE,
			lon DOUBLE,
			heading INTEGER,
			distance DOUBLE,
			line TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS records_session ON records(session, id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	s := &Store{db: db, session: uuid.New().String()}
	log.Printf("store: session %s in %s", s.session, path)
	return s, nil
}

// Session returns the id tagged on every entry this Store writes.
func (s *Store) Session() string { return s.session }

// Save stores rec and returns the entry as written.
func (s *Store) Save(rec record.Record, line string, at time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{
		Session:    s.session,
		ReceivedAt: at.UTC(),
		Kind:       rec.Kind,
		Line:       line,
	}
	switch rec.Kind {
	case record.KindPath:
		e.HasPosition = true
		e.Latitude, e.Longitude, e.Heading = rec.Latitude, rec.Longitude, rec.Heading
		r := rec
		s.lastPath = &r
	case record.KindObstacle:
		e.Distance = rec.Distance
		e.NoEcho = rec.Distance.IsNoEcho()
		if s.lastPath != nil {
			e.HasPosition = true
			e.Latitude, e.Longitude, e.Heading = s.lastPath.Latitude, s.lastPath.Longitude, s.lastPath.Heading
		}
	default:
		return Entry{}, fmt.Errorf("store: %w: %q", record.ErrUnknownKind, rec.Kind)
	}

	res, err := s.db.Exec(
		`INSERT INTO records (session, received_at, kind, has_position, lat, lon, heading, distance, line)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Session, e.ReceivedAt, string(e.Kind), e.HasPosition,
		e.Latitude, e.Longitude, int(e.Heading), float64(e.Distance), e.Line,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("store: insert: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("store: insert id: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries of the current session, oldest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, received_at, kind, has_position, lat, lon, heading, distance, line
		 FROM records WHERE session = ? ORDER BY id DESC LIMIT ?`, s.session, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()
	out, err := s.scan(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// Entries returns every entry of the current session, oldest first.
func (s *Store) Entries() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, received_at, kind, has_position, lat, lon, heading, distance, line
		 FROM records WHERE session = ? ORDER BY id`, s.session)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()
	return s.scan(rows)
}

func (s *Store) scan(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			kind    string
			hdg     int
			dist    float64
			hasPosI int
		)
		if err := rows.Scan(&e.ID, &e.ReceivedAt, &kind, &hasPosI, &e.Latitude, &e.Longitude, &hdg, &dist, &e.Line); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		e.Session = s.session
		e.Kind = record.Kind(kind)
		e.HasPosition = hasPosI != 0
		e.Heading = heading.Bearing(hdg)
		e.Distance = ranging.Reading(dist)
		e.NoEcho = e.Kind == record.KindObstacle && e.Distance.IsNoEcho()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return out, nil
}

// ExportCSV writes the session to dir as path_data.csv and obs_data.csv.
// Obstacle rows without a known position are skipped.
func (s *Store) ExportCSV(dir string) error {
	entries, err := s.Entries()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: export dir: %w", err)
	}

	var paths, obs [][]string
	for _, e := range entries {
		lat := strconv.FormatFloat(e.Latitude, 'f', 6, 64)
		lon := strconv.FormatFloat(e.Longitude, 'f', 6, 64)
		hdg := strconv.Itoa(int(e.Heading))
		switch {
		case e.Kind == record.KindPath:
			paths = append(paths, []string{lat, lon, hdg})
		case e.HasPosition:
			obs = append(obs, []string{lat, lon, hdg, strconv.FormatFloat(float64(e.Distance), 'f', 2, 64)})
		}
	}

	if err := writeCSV(filepath.Join(dir, PathCSV), []string{"Latitude", "Longitude", "Heading"}, paths); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, ObstacleCSV), []string{"Latitude", "Longitude", "Heading", "Distance"}, obs); err != nil {
		return err
	}
	log.Printf("store: exported %d path and %d obstacle rows to %s", len(paths), len(obs), dir)
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Write(header)
	w.WriteAll(rows)
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return f.Close()
}

func (s *Store) Close() error {
	return s.db.Close()
}
