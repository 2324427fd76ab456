package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tourgo/pkg/db"
	"tourgo/pkg/model"
)

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- POI ---

func (s *SQLiteStore) GetPOI(ctx context.Context, id string) (*model.POI, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, code, type, name, lat, lon, alt, tags, active, created_at, updated_at
		 FROM poi WHERE id = ?`, id)

	p, err := scanPOI(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}

	if err := s.loadContents(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) ListPOIs(ctx context.Context) ([]*model.POI, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, type, name, lat, lon, alt, tags, active, created_at, updated_at
		 FROM poi ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pois []*model.POI
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pois {
		if err := s.loadContents(ctx, p); err != nil {
			return nil, err
		}
	}
	return pois, nil
}

func (s *SQLiteStore) SavePOI(ctx context.Context, p *model.POI) error {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return err
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO poi (id, code, type, name, lat, lon, alt, tags, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			type = excluded.type,
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			alt = excluded.alt,
			tags = excluded.tags,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		p.ID, p.Code, string(p.Type), p.Name, p.Lat, p.Lon, p.Alt,
		string(tags), p.Active, createdAt, time.Now())
	if err != nil {
		return err
	}

	// Content rows are owned by the POI: replace wholesale.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE poi_id = ?`, p.ID); err != nil {
		return err
	}
	for i := range p.Contents {
		c := &p.Contents[i]
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO content (id, poi_id, language, type, title, description, media_url, duration_ms, active, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, p.ID, string(c.Language), string(c.Type), c.Title, c.Description,
			c.MediaURL, c.Duration.Milliseconds(), c.Active, string(meta))
		if err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPOI(row rowScanner) (*model.POI, error) {
	var p model.POI
	var tags sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(&p.ID, &p.Code, (*string)(&p.Type), &p.Name,
		&p.Lat, &p.Lon, &p.Alt, &tags, &p.Active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &p.Tags); err != nil {
			return nil, err
		}
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}

func (s *SQLiteStore) loadContents(ctx context.Context, p *model.POI) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, language, type, title, description, media_url, duration_ms, active, metadata
		 FROM content WHERE poi_id = ? ORDER BY id`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Content
		var durationMS int64
		var meta sql.NullString

		err := rows.Scan(&c.ID, (*string)(&c.Language), (*string)(&c.Type),
			&c.Title, &c.Description, &c.MediaURL, &durationMS, &c.Active, &meta)
		if err != nil {
			return err
		}
		c.Duration = time.Duration(durationMS) * time.Millisecond
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &c.Metadata); err != nil {
				return err
			}
		}
		p.Contents = append(p.Contents, c)
	}
	return rows.Err()
}

// --- Visit Log ---

func (s *SQLiteStore) AppendVisit(ctx context.Context, visitorID string, entry *model.VisitLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visit_log (visitor_id, poi_id, visited_at, duration_sec, content_played)
		 VALUES (?, ?, ?, ?, ?)`,
		visitorID, entry.POIID, entry.VisitedAt, entry.DurationSec, entry.ContentPlayed)
	return err
}

func (s *SQLiteStore) GetVisits(ctx context.Context, visitorID string) ([]model.VisitLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT poi_id, visited_at, duration_sec, content_played
		 FROM visit_log WHERE visitor_id = ? ORDER BY id`, visitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []model.VisitLogEntry
	for rows.Next() {
		var v model.VisitLogEntry
		if err := rows.Scan(&v.POIID, &v.VisitedAt, &v.DurationSec, &v.ContentPlayed); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}
