// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lifehubhq/lifehub/internal/credential"
)

const credentialColumns = "id, owner_id, kind, api_key, preferred_model, is_default, created_at"

func scanCredential(row interface{ Scan(...any) error }) (*credential.Credential, error) {
	var c credential.Credential
	var created sql.NullTime
	err := row.Scan(&c.ID, &c.OwnerID, &c.Kind, &c.APIKey, &c.PreferredModel, &c.IsDefault, &created)
	if err != nil {
		return nil, err
	}
	if created.Valid {
		c.CreatedAt = created.Time
	}
	return &c, nil
}

// GetCredential returns one credential record, or nil when unknown.
func (s *SQLStore) GetCredential(ctx context.Context, id int64) (*credential.Credential, error) {
	query := s.rebind("SELECT " + credentialColumns + " FROM ai_credentials WHERE id = ?")
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get credential %d: %w", id, err)
	}
	return c, nil
}

// DefaultCredential returns the designated default for (kind, owner), or nil.
func (s *SQLStore) DefaultCredential(ctx context.Context, kind string, ownerID int64) (*credential.Credential, error) {
	query := s.rebind("SELECT " + credentialColumns + " FROM ai_credentials WHERE kind = ? AND owner_id = ? AND is_default = ? LIMIT 1")
	c, err := scanCredential(s.db.QueryRowContext(ctx, query, kind, ownerID, true))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: default credential %s/%d: %w", kind, ownerID, err)
	}
	return c, nil
}

// ListCredentials returns the owner's records ordered by id.
func (s *SQLStore) ListCredentials(ctx context.Context, ownerID int64) ([]*credential.Credential, error) {
	query := s.rebind("SELECT " + credentialColumns + " FROM ai_credentials WHERE owner_id = ? ORDER BY id")
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", err)
	}
	defer rows.Close()

	var out []*credential.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan credential: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertCredential writes the record inside one transaction. When the record
// is marked default, any previous default for the same (kind, owner) pair is
// demoted first, preserving the single-default invariant.
func (s *SQLStore) UpsertCredential(ctx context.Context, c *credential.Credential) (*credential.Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if c.IsDefault {
		demote := s.rebind("UPDATE ai_credentials SET is_default = ? WHERE kind = ? AND owner_id = ? AND id != ?")
		if _, err := tx.ExecContext(ctx, demote, false, c.Kind, c.OwnerID, c.ID); err != nil {
			return nil, fmt.Errorf("store: demote defaults: %w", err)
		}
	}

	if c.ID == 0 {
		if s.postgres {
			query := s.rebind(`INSERT INTO ai_credentials (owner_id, kind, api_key, preferred_model, is_default)
				VALUES (?, ?, ?, ?, ?) RETURNING id`)
			if err := tx.QueryRowContext(ctx, query, c.OwnerID, c.Kind, c.APIKey, c.PreferredModel, c.IsDefault).Scan(&c.ID); err != nil {
				return nil, fmt.Errorf("store: insert credential: %w", err)
			}
		} else {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO ai_credentials (owner_id, kind, api_key, preferred_model, is_default) VALUES (?, ?, ?, ?, ?)`,
				c.OwnerID, c.Kind, c.APIKey, c.PreferredModel, c.IsDefault)
			if err != nil {
				return nil, fmt.Errorf("store: insert credential: %w", err)
			}
			c.ID, _ = res.LastInsertId()
		}
	} else {
		query := s.rebind(`UPDATE ai_credentials SET api_key = ?, preferred_model = ?, is_default = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, c.APIKey, c.PreferredModel, c.IsDefault, c.ID); err != nil {
			return nil, fmt.Errorf("store: update credential %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return c, nil
}

// DeleteCredential removes the record.
func (s *SQLStore) DeleteCredential(ctx context.Context, id int64) error {
	query := s.rebind("DELETE FROM ai_credentials WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("store: delete credential %d: %w", id, err)
	}
	return nil
}
