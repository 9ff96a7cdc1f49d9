package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/mycontacts-backend/internal/domain"
)

// jsonSlice marshals a multi-value field for a jsonb column. A nil slice
// is stored as an empty array so reads round-trip cleanly.
func jsonSlice[T any](v []T) []byte {
	if v == nil {
		v = []T{}
	}
	// Marshaling slices of plain structs cannot fail.
	b, _ := json.Marshal(v)
	return b
}

func unmarshalSlice[T any](raw []byte, dst *[]T) error {
	if len(raw) == 0 {
		return nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	if len(items) > 0 {
		*dst = items
	}
	return nil
}

func scanContact(row pgx.Row) (*domain.Contact, error) {
	var (
		c domain.Contact

		phones, emails, addresses, links, messaging, dates []byte
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.UID, &c.DisplayName,
		&c.Name.Prefix, &c.Name.Given, &c.Name.Middle, &c.Name.Family, &c.Name.SecondFamily, &c.Name.Suffix,
		&c.Nickname, &c.Organization, &c.Title, &c.Note, &c.PhotoRef,
		&phones, &emails, &addresses, &links, &messaging, &dates,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalSlice(phones, &c.Phones); err != nil {
		return nil, fmt.Errorf("decode phones: %w", err)
	}
	if err := unmarshalSlice(emails, &c.Emails); err != nil {
		return nil, fmt.Errorf("decode emails: %w", err)
	}
	if err := unmarshalSlice(addresses, &c.Addresses); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}
	if err := unmarshalSlice(links, &c.Links); err != nil {
		return nil, fmt.Errorf("decode links: %w", err)
	}
	if err := unmarshalSlice(messaging, &c.Messaging); err != nil {
		return nil, fmt.Errorf("decode messaging: %w", err)
	}
	if err := unmarshalSlice(dates, &c.Dates); err != nil {
		return nil, fmt.Errorf("decode dates: %w", err)
	}

	return &c, nil
}

// mapError converts pgx/pgconn errors into domain errors.
func mapError(err error, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("contact %s: %w", id, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("contact %s: %w", id, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation — active uid reuse
			return fmt.Errorf("contact %s: %w", id, domain.ErrAlreadyExists)
		case "23514": // check_violation
			return fmt.Errorf("contact %s: %w", id, domain.ErrValidation)
		}
	}
	return fmt.Errorf("contact %s: %w", id, err)
}
