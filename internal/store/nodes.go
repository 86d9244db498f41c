// Copyright 2026 The LifeHub Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/lifehubhq/lifehub/internal/node"
)

const nodeColumns = "id, name, kind, address, active, public, owner_id, status, last_seen_at, snapshot, meta"

func scanNode(row interface{ Scan(...any) error }) (*node.Node, error) {
	var n node.Node
	var kind, status string
	var lastSeen sql.NullTime
	var snapshot sql.NullString
	err := row.Scan(&n.ID, &n.Name, &kind, &n.Address, &n.Active, &n.Public, &n.OwnerID, &status, &lastSeen, &snapshot, &n.Meta)
	if err != nil {
		return nil, err
	}
	n.Kind = node.Kind(kind)
	n.Status = node.Status(status)
	if lastSeen.Valid {
		n.LastSeenAt = lastSeen.Time
	}
	if snapshot.Valid && snapshot.String != "" {
		var snap node.Snapshot
		if err := json.Unmarshal([]byte(snapshot.String), &snap); err == nil {
			n.Snapshot = &snap
		}
	}
	return &n, nil
}

// GetNode returns one node, or nil when the id is unknown.
func (s *SQLStore) GetNode(ctx context.Context, id int64) (*node.Node, error) {
	query := s.rebind("SELECT " + nodeColumns + " FROM ai_nodes WHERE id = ?")
	n, err := scanNode(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get node %d: %w", id, err)
	}
	return n, nil
}

// ListNodes returns every node ordered by id.
func (s *SQLStore) ListNodes(ctx context.Context) ([]*node.Node, error) {
	query := "SELECT " + nodeColumns + " FROM ai_nodes ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: list nodes: %w", err)
	}
	defer rows.Close()

	var out []*node.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpsertNode inserts (id == 0) or updates a node record.
func (s *SQLStore) UpsertNode(ctx context.Context, n *node.Node) (*node.Node, error) {
	snapJSON, err := marshalSnapshot(n.Snapshot)
	if err != nil {
		return nil, err
	}

	if n.ID == 0 {
		if s.postgres {
			query := s.rebind(`INSERT INTO ai_nodes (name, kind, address, active, public, owner_id, status, last_seen_at, snapshot, meta)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
			err = s.db.QueryRowContext(ctx, query,
				n.Name, string(n.Kind), n.Address, n.Active, n.Public, n.OwnerID,
				string(n.Status), nullTime(n.LastSeenAt), snapJSON, n.Meta).Scan(&n.ID)
			if err != nil {
				return nil, fmt.Errorf("store: insert node: %w", err)
			}
			return n, nil
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO ai_nodes (name, kind, address, active, public, owner_id, status, last_seen_at, snapshot, meta)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.Name, string(n.Kind), n.Address, n.Active, n.Public, n.OwnerID,
			string(n.Status), nullTime(n.LastSeenAt), snapJSON, n.Meta)
		if err != nil {
			return nil, fmt.Errorf("store: insert node: %w", err)
		}
		n.ID, _ = res.LastInsertId()
		return n, nil
	}

	query := s.rebind(`UPDATE ai_nodes SET name = ?, kind = ?, address = ?, active = ?, public = ?, owner_id = ?, status = ?, last_seen_at = ?, snapshot = ?, meta = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query,
		n.Name, string(n.Kind), n.Address, n.Active, n.Public, n.OwnerID,
		string(n.Status), nullTime(n.LastSeenAt), snapJSON, n.Meta, n.ID); err != nil {
		return nil, fmt.Errorf("store: update node %d: %w", n.ID, err)
	}
	return n, nil
}

// DeleteNode removes the node record.
func (s *SQLStore) DeleteNode(ctx context.Context, id int64) error {
	query := s.rebind("DELETE FROM ai_nodes WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("store: delete node %d: %w", id, err)
	}
	return nil
}

// UpdateNodeHealth persists one probe attempt: status always, the snapshot
// column only when a replacement snapshot is supplied, so a failed probe
// leaves the last good capability view in place.
func (s *SQLStore) UpdateNodeHealth(ctx context.Context, id int64, status node.Status, lastSeen time.Time, snap *node.Snapshot) error {
	if snap != nil {
		snapJSON, err := marshalSnapshot(snap)
		if err != nil {
			return err
		}
		query := s.rebind("UPDATE ai_nodes SET status = ?, last_seen_at = ?, snapshot = ? WHERE id = ?")
		if _, err := s.db.ExecContext(ctx, query, string(status), nullTime(lastSeen), snapJSON, id); err != nil {
			return fmt.Errorf("store: update node %d health: %w", id, err)
		}
		return nil
	}
	query := s.rebind("UPDATE ai_nodes SET status = ?, last_seen_at = ? WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, query, string(status), nullTime(lastSeen), id); err != nil {
		return fmt.Errorf("store: update node %d health: %w", id, err)
	}
	return nil
}

func marshalSnapshot(snap *node.Snapshot) (sql.NullString, error) {
	if snap == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("store: encoding snapshot: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
