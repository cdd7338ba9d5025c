package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/pkg/clickhouse"
)

// ObservationStore persists raw GMP observations in ClickHouse. The table is
// append-only; validation always recomputes from the raw rows.
type ObservationStore struct {
	client *clickhouse.Client
	db     *sql.DB
	table  string
}

func NewObservationStore(client *clickhouse.Client, table string) *ObservationStore {
	if table == "" {
		table = "gmp_observations"
	}
	return &ObservationStore{client: client, db: client.DB(), table: table}
}

func (s *ObservationStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ipo_key        String,
			source_id      String,
			value          Float64,
			observed_at    DateTime64(3),
			raw_confidence Float64,
			inserted_at    DateTime64(3) DEFAULT now64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(observed_at)
		ORDER BY (ipo_key, observed_at)
		TTL toDateTime(observed_at) + INTERVAL 90 DAY`, s.table),
	})
}

func (s *ObservationStore) InsertBatch(ctx context.Context, obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(obs); start += chunkSize {
		end := start + chunkSize
		if end > len(obs) {
			end = len(obs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, o := range obs[start:end] {
			if !o.WellFormed() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, o.IPOKey, o.SourceID, o.Value, o.ObservedAt, o.RawConfidence)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ipo_key, source_id, value, observed_at, raw_confidence) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert observations: %w", err)
		}
	}
	return nil
}

func (s *ObservationStore) RecentWindow(ctx context.Context, ipoKey string, since time.Time) ([]models.Observation, error) {
	q := fmt.Sprintf(`SELECT ipo_key, source_id, value, observed_at, raw_confidence
		FROM %s WHERE ipo_key = ? AND observed_at >= ?
		ORDER BY observed_at ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, ipoKey, since)
	if err != nil {
		return nil, fmt.Errorf("recent window: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *ObservationStore) Baseline(ctx context.Context, ipoKey string, before time.Time, limit int) ([]models.Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT ipo_key, source_id, value, observed_at, raw_confidence
		FROM %s WHERE ipo_key = ? AND observed_at < ?
		ORDER BY observed_at DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, ipoKey, before, limit)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *ObservationStore) ActiveKeys(ctx context.Context, since time.Time) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT ipo_key FROM %s WHERE observed_at >= ? ORDER BY ipo_key", s.table)
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("active keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *ObservationStore) SourceStats(ctx context.Context, since time.Time) ([]models.SourceStat, error) {
	q := fmt.Sprintf(`SELECT source_id, count() AS records, avg(value), stddevPop(value), max(observed_at)
		FROM %s WHERE observed_at >= ?
		GROUP BY source_id ORDER BY source_id`, s.table)
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var stats []models.SourceStat
	for rows.Next() {
		var st models.SourceStat
		var records uint64
		var last time.Time
		if err := rows.Scan(&st.SourceID, &records, &st.MeanValue, &st.StdDev, &last); err != nil {
			return nil, err
		}
		st.Records = int(records)
		st.LastUpdate = last.Unix()
		st.FreshnessHours = now.Sub(last).Hours()
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *ObservationStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *ObservationStore) Close() error {
	return s.client.Close()
}

func scanObservations(rows *sql.Rows) ([]models.Observation, error) {
	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.IPOKey, &o.SourceID, &o.Value, &o.ObservedAt, &o.RawConfidence); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
