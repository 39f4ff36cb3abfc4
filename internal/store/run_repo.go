package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/gzip"

	"voltsite/internal/types"
)

// StoredRun is one persisted optimization run. The recommendation payload is
// stored gzip-compressed; Recommendations is hydrated on read.
type StoredRun struct {
	ID                string
	RequestID         string
	Location          string
	StationType       types.StationType
	RadiusKM          int
	Budget            int
	Recommendations   []types.Recommendation
	ProcessingSeconds float64
	CreatedAt         time.Time
}

// NearbySite is a previously recommended site within a search radius, used to
// surface historical context for new requests.
type NearbySite struct {
	RunID        string
	Name         string
	Coordinates  types.Coordinates
	OverallScore float64
	DistanceKM   float64
	CreatedAt    time.Time
}

// RunRepository provides data access for the optimization_runs and
// recommended_sites tables.
type RunRepository struct {
	db DBTX
}

// NewRunRepository creates a RunRepository backed by the given database
// connection (pool or transaction).
func NewRunRepository(db DBTX) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `r.id, r.request_id, r.location, r.station_type,
	r.radius_km, r.budget, r.payload, r.processing_seconds, r.created_at`

// Save persists a completed run and one row per recommendation for nearby
// lookups. A zero ID is generated.
func (r *RunRepository) Save(ctx context.Context, run *StoredRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	payload, err := compressPayload(run.Recommendations)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to encode run payload", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO optimization_runs
		 (id, request_id, location, station_type, radius_km, budget, payload, processing_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.RequestID, run.Location, run.StationType,
		run.RadiusKM, run.Budget, payload, run.ProcessingSeconds, run.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert optimization run", err)
	}

	for _, rec := range run.Recommendations {
		_, err = r.db.Exec(ctx,
			`INSERT INTO recommended_sites
			 (id, run_id, name, latitude, longitude, overall_score, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), run.ID, rec.Location.Name,
			rec.Location.Coordinates.Latitude, rec.Location.Coordinates.Longitude,
			rec.Scores.Overall, run.CreatedAt,
		)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to insert recommended site", err)
		}
	}
	return nil
}

// GetByRequestID fetches one run by its request ID. Returns a not-found
// AppError when no row matches.
func (r *RunRepository) GetByRequestID(ctx context.Context, requestID string) (*StoredRun, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM optimization_runs r WHERE r.request_id = $1`,
		requestID,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecommendation,
				fmt.Sprintf("no run found for request %s", requestID), err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch optimization run", err)
	}
	return run, nil
}

// ListRecent returns the newest runs, most recent first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]*StoredRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+runColumns+` FROM optimization_runs r ORDER BY r.created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list optimization runs", err)
	}
	defer rows.Close()

	var runs []*StoredRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan optimization run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate optimization runs", err)
	}
	return runs, nil
}

// FindNearby returns previously recommended sites within radiusKM of a point,
// closest first. The distance is computed in SQL with the haversine formula;
// the bounding-box predicate keeps the scan cheap.
func (r *RunRepository) FindNearby(ctx context.Context, lat, lon float64, radiusKM float64, limit int) ([]NearbySite, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT s.run_id, s.name, s.latitude, s.longitude, s.overall_score, s.created_at,
		        6371 * acos(least(1.0,
		            cos(radians($1)) * cos(radians(s.latitude)) *
		            cos(radians(s.longitude) - radians($2)) +
		            sin(radians($1)) * sin(radians(s.latitude)))) AS distance_km
		 FROM recommended_sites s
		 WHERE s.latitude BETWEEN $1 - $3 / 111.0 AND $1 + $3 / 111.0
		   AND s.longitude BETWEEN $2 - $3 / 85.0 AND $2 + $3 / 85.0
		 ORDER BY distance_km ASC
		 LIMIT $4`,
		lat, lon, radiusKM, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query nearby sites", err)
	}
	defer rows.Close()

	var sites []NearbySite
	for rows.Next() {
		var s NearbySite
		if err := rows.Scan(&s.RunID, &s.Name, &s.Coordinates.Latitude, &s.Coordinates.Longitude,
			&s.OverallScore, &s.CreatedAt, &s.DistanceKM); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan nearby site", err)
		}
		if s.DistanceKM <= radiusKM {
			sites = append(sites, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate nearby sites", err)
	}
	return sites, nil
}

func scanRun(row pgx.Row) (*StoredRun, error) {
	var run StoredRun
	var payload []byte
	err := row.Scan(
		&run.ID,
		&run.RequestID,
		&run.Location,
		&run.StationType,
		&run.RadiusKM,
		&run.Budget,
		&payload,
		&run.ProcessingSeconds,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Recommendations, err = decompressPayload(payload)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// compressPayload gzips the JSON encoding of the recommendation list. Runs
// carry full stage-derived insight sets, so the compression is worthwhile.
func compressPayload(recs []types.Recommendation) ([]byte, error) {
	raw, err := json.Marshal(recs)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressPayload(payload []byte) ([]types.Recommendation, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	var recs []types.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
