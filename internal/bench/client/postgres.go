// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS kvbench_records (
//   namespace TEXT NOT NULL,
//   set_name  TEXT NOT NULL,
//   key       BIGINT NOT NULL,
//   record    JSONB NOT NULL,
//   PRIMARY KEY (namespace, set_name, key)
// );

// PostgresClient implements KvClient against Postgres via database/sql,
// storing each record as a single JSONB column. The *sql.DB is supplied by
// the caller, already wired to a real driver (e.g. lib/pq), matching the
// rest of this codebase's preference for constructor-injected
// collaborators over package-level globals.
type PostgresClient struct {
	AsyncAdapter

	db        *sql.DB
	Namespace string
	Set       string
}

// NewPostgresClient wraps an existing *sql.DB.
func NewPostgresClient(db *sql.DB, namespace, set string) *PostgresClient {
	c := &PostgresClient{db: db, Namespace: namespace, Set: set}
	c.AsyncAdapter = AsyncAdapter{Sync: c}
	return c
}

func (c *PostgresClient) Put(ctx context.Context, key int64, record map[string]any, policy Policy) error {
	blob, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("kvbench: encoding record: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO kvbench_records (namespace, set_name, key, record)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, set_name, key) DO UPDATE SET record = EXCLUDED.record
	`, c.Namespace, c.Set, key, blob)
	if err != nil {
		return translatePostgresErr(ctx, err)
	}
	return nil
}

func (c *PostgresClient) Get(ctx context.Context, key int64, policy Policy) (map[string]any, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT record FROM kvbench_records WHERE namespace = $1 AND set_name = $2 AND key = $3
	`, c.Namespace, c.Set, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translatePostgresErr(ctx, err)
	}
	record := make(map[string]any)
	if err := json.Unmarshal(blob, &record); err != nil {
		return nil, fmt.Errorf("kvbench: decoding record: %w", err)
	}
	return record, nil
}

func (c *PostgresClient) Delete(ctx context.Context, key int64, policy Policy) error {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM kvbench_records WHERE namespace = $1 AND set_name = $2 AND key = $3
	`, c.Namespace, c.Set, key)
	if err != nil {
		return translatePostgresErr(ctx, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translatePostgresErr(ctx, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *PostgresClient) BatchRead(ctx context.Context, keys []int64, policy Policy) ([]BatchResult, error) {
	results := make([]BatchResult, len(keys))
	for i, k := range keys {
		rec, err := c.Get(ctx, k, policy)
		results[i] = BatchResult{Key: k, Record: rec, Err: err}
	}
	return results, nil
}

func (c *PostgresClient) UDFApply(ctx context.Context, key int64, module, function string, args map[string]any, policy Policy) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE kvbench_records
		SET record = record || jsonb_build_object('_udf', $4::text)
		WHERE namespace = $1 AND set_name = $2 AND key = $3
	`, c.Namespace, c.Set, key, module+"."+function)
	if err != nil {
		return translatePostgresErr(ctx, err)
	}
	return nil
}

func translatePostgresErr(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}
	return &OpError{Code: 2, Msg: err.Error()}
}
