/*
Copyright 2026 Pextra Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package zone

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	ilog "github.com/PextraCloud/pce-zonetable/internal/log"
	"github.com/PextraCloud/pce-zonetable/internal/zonetable"
	"github.com/lib/pq"
	"github.com/miekg/dns"
)

const DefaultTable = "records"

const recordsQuery = `SELECT name, type, ttl, content FROM %s WHERE zone = $1`

// serialQuery yields a value that moves whenever a row of the zone changes.
const serialQuery = `SELECT COALESCE(CAST(EXTRACT(EPOCH FROM MAX(updated_at)) * 1000 AS BIGINT), 0) FROM %s WHERE zone = $1`

var sqlOpen = sql.Open

// Open connects to the PostgreSQL database holding zone records.
func Open(dataSource string) (*sql.DB, error) {
	ilog.Log.Debugf("sql: opening connection")
	db, err := sqlOpen("postgres", dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetConnMaxLifetime(time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ilog.Log.Infof("sql: connection established")
	return db, nil
}

// SQL is a zone whose records live in a PostgreSQL table with the columns
// zone, name, type, ttl, content and updated_at.
type SQL struct {
	store

	origin string
	db     *sql.DB
	ttl    uint32

	recordsQuery string
	serialQuery  string

	loadMu sync.Mutex
	serial int64
}

// NewSQL returns a zone reading rows for origin from table. Rows without a
// TTL get ttl.
func NewSQL(origin string, db *sql.DB, table string, ttl uint32) *SQL {
	if table == "" {
		table = DefaultTable
	}
	quoted := pq.QuoteIdentifier(table)
	return &SQL{
		origin:       dns.CanonicalName(origin),
		db:           db,
		ttl:          ttl,
		recordsQuery: fmt.Sprintf(recordsQuery, quoted),
		serialQuery:  fmt.Sprintf(serialQuery, quoted),
	}
}

func (z *SQL) Origin() string { return z.origin }

func (z *SQL) SOA() *dns.SOA { return z.soaAt(z.origin) }

func (z *SQL) Load(ctx context.Context, mode zonetable.LoadMode) error {
	z.loadMu.Lock()
	defer z.loadMu.Unlock()

	if mode == zonetable.LoadUnloaded && z.Loaded() {
		return zonetable.ErrUpToDate
	}

	var serial int64
	if err := z.db.QueryRowContext(ctx, z.serialQuery, z.origin).Scan(&serial); err != nil {
		return loadFailed(z.origin, fmt.Errorf("failed to read zone serial: %w", err))
	}
	if z.Loaded() && serial == z.serial {
		return zonetable.ErrUpToDate
	}

	rrs, err := z.loadRecords(ctx)
	if err != nil {
		return loadFailed(z.origin, err)
	}

	z.replace(z.origin, rrs)
	z.serial = serial
	ilog.Log.Infof("zone: %s: loaded %d record(s) from database", z.origin, len(rrs))
	return nil
}

func (z *SQL) loadRecords(ctx context.Context) ([]dns.RR, error) {
	rows, err := z.db.QueryContext(ctx, z.recordsQuery, z.origin)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var rrs []dns.RR
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.Name, &r.Type, &r.TTL, &r.Content); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rr, err := r.toRR(z.origin, z.ttl)
		if err != nil {
			ilog.Log.Warningf("sql: %s: skipping record: %v", z.origin, err)
			continue
		}
		rrs = append(rrs, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return rrs, nil
}

// Flush drops the cached rows; the database stays authoritative.
func (z *SQL) Flush() error {
	z.loadMu.Lock()
	defer z.loadMu.Unlock()

	z.clear()
	z.serial = 0
	return nil
}
