package reports

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eightyone/botdock/internal/core/domain"
)

// Store is the SQLite-backed attendance archive.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS attendance (
	sunday          TEXT NOT NULL,
	name            TEXT NOT NULL,
	sex             TEXT NOT NULL DEFAULT '',
	district        TEXT NOT NULL,
	grp             TEXT NOT NULL DEFAULT '',
	lords_day       INTEGER NOT NULL DEFAULT 0,
	prayer          INTEGER NOT NULL DEFAULT 0,
	home_visit      INTEGER NOT NULL DEFAULT 0,
	home_visited    INTEGER NOT NULL DEFAULT 0,
	small_group     INTEGER NOT NULL DEFAULT 0,
	morning_revival INTEGER NOT NULL DEFAULT 0,
	gospel_visit    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (sunday, name, district)
);
CREATE INDEX IF NOT EXISTS idx_attendance_sunday ON attendance (sunday);
`

// NewStore opens (and if needed creates) the store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// SaveWeek replaces the week's records in one transaction, so a failed
// upstream refresh never leaves a half-written week behind.
func (s *Store) SaveWeek(ctx context.Context, sunday time.Time, records []domain.AttendanceRecord) error {
	key := sunday.Format("2006-01-02")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE sunday = ?`, key); err != nil {
		return fmt.Errorf("failed to clear week %s: %w", key, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance
		(sunday, name, sex, district, grp,
		 lords_day, prayer, home_visit, home_visited, small_group, morning_revival, gospel_visit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx, key, r.Name, r.Sex, r.District, r.Group,
			r.LordsDay, r.Prayer, r.HomeVisit, r.HomeVisited, r.SmallGroup, r.MorningRevival, r.GospelVisit)
		if err != nil {
			return fmt.Errorf("failed to insert record for %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit week %s: %w", key, err)
	}
	return nil
}

// SummaryForWeek returns per-district sums sorted by district name, with
// the 總計 row appended last.
func (s *Store) SummaryForWeek(ctx context.Context, sunday time.Time) ([]domain.DistrictSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT district,
		       SUM(lords_day), SUM(prayer), SUM(home_visit), SUM(home_visited),
		       SUM(small_group), SUM(morning_revival), SUM(gospel_visit)
		FROM attendance
		WHERE sunday = ?
		GROUP BY district`, sunday.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	var summaries []domain.DistrictSummary
	var total domain.Tally
	for rows.Next() {
		var d domain.DistrictSummary
		if err := rows.Scan(&d.District,
			&d.LordsDay, &d.Prayer, &d.HomeVisit, &d.HomeVisited,
			&d.SmallGroup, &d.MorningRevival, &d.GospelVisit); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, d)
		total.Add(d.Tally)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, nil
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].District < summaries[j].District })
	summaries = append(summaries, domain.DistrictSummary{District: domain.TotalDistrict, Tally: total})
	return summaries, nil
}

// RecentWeeks builds the region timeseries: the region's districts summed
// per week, the newest n weeks, returned oldest first with the derived
// 總出訪 column.
func (s *Store) RecentWeeks(ctx context.Context, region string, n int) ([]domain.WeekPoint, error) {
	query := `
		SELECT sunday,
		       SUM(lords_day), SUM(prayer), SUM(home_visit), SUM(home_visited),
		       SUM(small_group), SUM(morning_revival), SUM(gospel_visit)
		FROM attendance`
	var args []any

	if districts, ok := regionDistricts(region); ok {
		placeholders := strings.Repeat("?,", len(districts))
		query += ` WHERE district IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, d := range districts {
			args = append(args, d)
		}
	}
	query += ` GROUP BY sunday ORDER BY sunday DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeseries: %w", err)
	}
	defer rows.Close()

	var points []domain.WeekPoint
	for rows.Next() {
		var key string
		var p domain.WeekPoint
		if err := rows.Scan(&key,
			&p.LordsDay, &p.Prayer, &p.HomeVisit, &p.HomeVisited,
			&p.SmallGroup, &p.MorningRevival, &p.GospelVisit); err != nil {
			return nil, fmt.Errorf("failed to scan timeseries row: %w", err)
		}
		p.Sunday, err = time.Parse("2006-01-02", key)
		if err != nil {
			return nil, fmt.Errorf("bad week key %q: %w", key, err)
		}
		p.TotalVisits = p.HomeVisit + p.GospelVisit
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; charts want oldest first.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// LatestSunday reports the most recent stored week.
func (s *Store) LatestSunday(ctx context.Context) (time.Time, bool, error) {
	var key sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sunday) FROM attendance`).Scan(&key)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest week: %w", err)
	}
	if !key.Valid || key.String == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse("2006-01-02", key.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("bad week key %q: %w", key.String, err)
	}
	return t, true, nil
}

// regionDistricts resolves a chart region to its district filter.
// ok=false means no filter (總計 spans every district).
func regionDistricts(region string) ([]string, bool) {
	if region == domain.TotalRegion || region == "" {
		return nil, false
	}
	if districts, ok := domain.RegionMapping[region]; ok {
		return districts, true
	}
	return []string{region}, true
}
