package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Region is platform-scoped reference data used to tag a school's location.
type Region struct {
	RegionID int32
	Name     string
	Code     string
}

// District belongs to exactly one region.
type District struct {
	DistrictID int32
	Name       string
	RegionID   int32
}

// ErrRegionNotFound indicates a missing region or district row.
var ErrRegionNotFound = errors.New("region not found")

// RegionStore reads and seeds the regions/districts reference tables. They
// live in the platform schema and are readable from any tenant context
// through the search_path fallback.
type RegionStore struct {
	pool           *pgxpool.Pool
	regionsTable   string
	districtsTable string
}

func NewRegionStore(pool *pgxpool.Pool, platformSchema string) (*RegionStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if platformSchema == "" {
		return nil, errors.New("platform schema is required")
	}
	return &RegionStore{
		pool:           pool,
		regionsTable:   pgx.Identifier{platformSchema, "regions"}.Sanitize(),
		districtsTable: pgx.Identifier{platformSchema, "districts"}.Sanitize(),
	}, nil
}

// SeedRegion inserts a region if absent and returns the stored row either way.
func (s *RegionStore) SeedRegion(ctx context.Context, name, code string) (Region, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (name, code) VALUES ($1, $2)
        ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
        RETURNING region_id, name, code
    `, s.regionsTable)

	var r Region
	if err := s.pool.QueryRow(ctx, query, name, code).Scan(&r.RegionID, &r.Name, &r.Code); err != nil {
		return Region{}, fmt.Errorf("seed region: %w", err)
	}
	return r, nil
}

// SeedDistrict inserts a district if absent and returns the stored row.
func (s *RegionStore) SeedDistrict(ctx context.Context, name string, regionID int32) (District, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (name, region_id) VALUES ($1, $2)
        ON CONFLICT (name, region_id) DO UPDATE SET name = EXCLUDED.name
        RETURNING district_id, name, region_id
    `, s.districtsTable)

	var d District
	if err := s.pool.QueryRow(ctx, query, name, regionID).Scan(&d.DistrictID, &d.Name, &d.RegionID); err != nil {
		return District{}, fmt.Errorf("seed district: %w", err)
	}
	return d, nil
}

// ListRegions returns all regions ordered by name.
func (s *RegionStore) ListRegions(ctx context.Context) ([]Region, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT region_id, name, code FROM %s ORDER BY name", s.regionsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []Region
	for rows.Next() {
		var r Region
		if err := rows.Scan(&r.RegionID, &r.Name, &r.Code); err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

// ListDistricts returns a region's districts ordered by name.
func (s *RegionStore) ListDistricts(ctx context.Context, regionID int32) ([]District, error) {
	query := fmt.Sprintf("SELECT district_id, name, region_id FROM %s WHERE region_id = $1 ORDER BY name", s.districtsTable)
	rows, err := s.pool.Query(ctx, query, regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var districts []District
	for rows.Next() {
		var d District
		if err := rows.Scan(&d.DistrictID, &d.Name, &d.RegionID); err != nil {
			return nil, err
		}
		districts = append(districts, d)
	}
	return districts, rows.Err()
}
