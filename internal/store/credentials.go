package store

import (
	"context"
	"database/sql"
	"errors"
)

// GetCredentials retrieves the stored credentials.
func (s *Store) GetCredentials(ctx context.Context) (*Credentials, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT client_id, client_secret, access_token, refresh_token, expires_at, scope, athlete_id
		FROM settings
		WHERE id = 1
	`)

	var c Credentials
	err := row.Scan(&c.ClientID, &c.ClientSecret, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt, &c.Scope, &c.AthleteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCredentials stores or replaces the credentials.
func (s *Store) SaveCredentials(ctx context.Context, c *Credentials) error {
	return saveCredentials(ctx, s.db, c)
}

func saveCredentials(ctx context.Context, db execer, c *Credentials) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO settings (id, client_id, client_secret, access_token, refresh_token, expires_at, scope, athlete_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			athlete_id = excluded.athlete_id,
			updated_at = CURRENT_TIMESTAMP
	`, c.ClientID, c.ClientSecret, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.Scope, c.AthleteID)
	return err
}

// UpdateTokens updates just the token fields of the stored credentials.
func (s *Store) UpdateTokens(ctx context.Context, accessToken, refreshToken string, expiresAt int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE settings
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, accessToken, refreshToken, expiresAt)
	if err != nil {
		return err
	}
	return requireRow(result, ErrNoCredentials)
}

// DeleteCredentials removes the stored credentials, if any.
func (s *Store) DeleteCredentials(ctx context.Context) error {
	return s.clearTable(ctx, TableSettings)
}

// ListCredentials returns the settings table contents (zero or one record).
func (s *Store) ListCredentials(ctx context.Context) ([]Credentials, error) {
	c, err := s.GetCredentials(ctx)
	if errors.Is(err, ErrNoCredentials) {
		return []Credentials{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []Credentials{*c}, nil
}
