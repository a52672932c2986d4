package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/contactimport/internal/core"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const listDSPsSQL = `SELECT id, station_id, dsp_code, dsp_name, is_active
	FROM dsps ORDER BY created_at, id`

const listStationsSQL = `SELECT id, market_id, station_code, city, state
	FROM stations ORDER BY station_code`

const listMarketsSQL = `SELECT id, name FROM markets ORDER BY name`

const insertDSPSQL = `INSERT INTO dsps (dsp_code, dsp_name, station_id, is_active)
	VALUES ($1, $2, $3, $4)
	RETURNING id, station_id, dsp_code, dsp_name, is_active`

const findDSPSQL = `SELECT id, station_id, dsp_code, dsp_name, is_active
	FROM dsps
	WHERE lower(dsp_name) = lower($1) AND coalesce(dsp_code, '') = $2
	LIMIT 1`

// ListDSPs returns every DSP in creation order.
func (s *Store) ListDSPs(ctx context.Context) ([]core.DSP, error) {
	rows, err := s.db.Query(ctx, listDSPsSQL)
	if err != nil {
		return nil, fmt.Errorf("query dsps: %w", err)
	}
	dsps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.DSP, error) {
		return scanDSP(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan dsps: %w", err)
	}
	return dsps, nil
}

// ListStations returns every station ordered by code.
func (s *Store) ListStations(ctx context.Context) ([]core.Station, error) {
	rows, err := s.db.Query(ctx, listStationsSQL)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	stations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Station, error) {
		var (
			id, marketID pgtype.UUID
			code         string
			city, state  pgtype.Text
		)
		if err := row.Scan(&id, &marketID, &code, &city, &state); err != nil {
			return core.Station{}, err
		}
		return core.Station{
			ID:       PgUUIDToString(id),
			MarketID: PgUUIDToString(marketID),
			Code:     code,
			City:     PgTextToString(city),
			State:    PgTextToString(state),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan stations: %w", err)
	}
	return stations, nil
}

// ListMarkets returns every market ordered by name.
func (s *Store) ListMarkets(ctx context.Context) ([]core.Market, error) {
	rows, err := s.db.Query(ctx, listMarketsSQL)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	markets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Market, error) {
		var (
			id   pgtype.UUID
			name string
		)
		if err := row.Scan(&id, &name); err != nil {
			return core.Market{}, err
		}
		return core.Market{ID: PgUUIDToString(id), Name: name}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan markets: %w", err)
	}
	return markets, nil
}

// CreateDSP inserts a DSP. If another import created the same name and code
// first, that DSP is returned instead.
func (s *Store) CreateDSP(ctx context.Context, in core.NewDSP) (core.DSP, error) {
	dsp, err := scanDSP(s.db.QueryRow(ctx, insertDSPSQL,
		ToPgText(in.Code),
		in.Name,
		ToPgUUID(in.StationID),
		in.IsActive,
	))
	if err == nil {
		return dsp, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return core.DSP{}, fmt.Errorf("insert dsp %q: %w", in.Name, err)
	}

	existing, findErr := scanDSP(s.db.QueryRow(ctx, findDSPSQL, in.Name, in.Code))
	if findErr != nil {
		return core.DSP{}, fmt.Errorf("insert dsp %q: %w", in.Name, err)
	}
	return existing, nil
}

func scanDSP(row pgx.Row) (core.DSP, error) {
	var (
		id, stationID pgtype.UUID
		code          pgtype.Text
		name          string
		active        bool
	)
	if err := row.Scan(&id, &stationID, &code, &name, &active); err != nil {
		return core.DSP{}, err
	}
	return core.DSP{
		ID:        PgUUIDToString(id),
		StationID: PgUUIDToString(stationID),
		Code:      PgTextToString(code),
		Name:      name,
		IsActive:  active,
	}, nil
}
