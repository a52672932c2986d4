package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/contactimport/internal/core"
)

const contactColumns = `id, first_name, last_name, email, phone, title, notes, tags,
	contact_status, referred_by_text, dsp_id, station_id, market_id, created_at`

const searchContactsByEmailSQL = `SELECT ` + contactColumns + `
	FROM contacts
	WHERE lower(email) = lower($1)
	ORDER BY created_at
	LIMIT $2`

const listContactsSQL = `SELECT ` + contactColumns + `
	FROM contacts
	ORDER BY created_at`

const insertContactSQL = `INSERT INTO contacts (
		first_name, last_name, email, phone, title, notes, tags,
		contact_status, referred_by_text, dsp_id, station_id, market_id
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	RETURNING ` + contactColumns

// SearchContactsByEmail returns up to limit contacts whose email matches,
// ignoring case.
func (s *Store) SearchContactsByEmail(ctx context.Context, email string, limit int) ([]core.Contact, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = core.DefaultDuplicateSearchLimit
	}

	rows, err := s.db.Query(ctx, searchContactsByEmailSQL, email, limit)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	contacts, err := pgx.CollectRows(rows, collectContact)
	if err != nil {
		return nil, fmt.Errorf("scan contacts: %w", err)
	}
	return contacts, nil
}

// ListContacts returns every contact in creation order.
func (s *Store) ListContacts(ctx context.Context) ([]core.Contact, error) {
	rows, err := s.db.Query(ctx, listContactsSQL)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	contacts, err := pgx.CollectRows(rows, collectContact)
	if err != nil {
		return nil, fmt.Errorf("scan contacts: %w", err)
	}
	return contacts, nil
}

// CreateContact inserts one contact. Blank fields are stored as NULL.
func (s *Store) CreateContact(ctx context.Context, in core.ContactInput) (core.Contact, error) {
	status := in.Status
	if status == "" {
		status = core.StatusNew
	}

	c, err := scanContact(s.db.QueryRow(ctx, insertContactSQL,
		ToPgText(in.FirstName),
		ToPgText(in.LastName),
		ToPgText(in.Email),
		ToPgText(in.Phone),
		ToPgText(in.Title),
		ToPgText(in.Notes),
		tagsOrEmpty(in.Tags),
		string(status),
		ToPgText(in.ReferredByText),
		ToPgUUID(in.DSPID),
		ToPgUUID(in.StationID),
		ToPgUUID(in.MarketID),
	))
	if err != nil {
		return core.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

func collectContact(row pgx.CollectableRow) (core.Contact, error) {
	return scanContact(row)
}

func scanContact(row pgx.Row) (core.Contact, error) {
	var (
		id                         pgtype.UUID
		firstName, lastName, email pgtype.Text
		phone, title, notes        pgtype.Text
		tags                       []string
		status                     string
		referredBy                 pgtype.Text
		dspID, stationID, marketID pgtype.UUID
		createdAt                  pgtype.Timestamptz
	)
	err := row.Scan(
		&id, &firstName, &lastName, &email, &phone, &title, &notes, &tags,
		&status, &referredBy, &dspID, &stationID, &marketID, &createdAt,
	)
	if err != nil {
		return core.Contact{}, err
	}

	return core.Contact{
		ID: PgUUIDToString(id),
		ContactInput: core.ContactInput{
			FirstName:      PgTextToString(firstName),
			LastName:       PgTextToString(lastName),
			Email:          PgTextToString(email),
			Phone:          PgTextToString(phone),
			Title:          PgTextToString(title),
			Notes:          PgTextToString(notes),
			Tags:           tags,
			Status:         core.ContactStatus(status),
			ReferredByText: PgTextToString(referredBy),
			DSPID:          PgUUIDToString(dspID),
			StationID:      PgUUIDToString(stationID),
			MarketID:       PgUUIDToString(marketID),
		},
		CreatedAt: createdAt.Time,
	}, nil
}
