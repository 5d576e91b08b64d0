package db

import (
	"context"
	"fmt"
	"hash/fnv"
)

// leaseKey maps a jd_hash to the int64 keyspace of Postgres advisory locks.
func leaseKey(jdHash string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(jdHash))
	return int64(h.Sum64())
}

// AcquireJobLease takes a session-level advisory lock keyed on jd_hash, so
// at most one pipeline execution runs per job description at a time, across
// processes and not just within this one. Returns ok=false without blocking if
// another execution already holds the lease.
//
// The lock is session-scoped, so it is held on a dedicated pooled connection
// until release is called (or the connection dies, which also frees it).
func (db *DB) AcquireJobLease(ctx context.Context, jdHash string) (release func(), ok bool, err error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for lease: %w", err)
	}

	key := leaseKey(jdHash)
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		// Unlock on the same session that took the lock. Best effort: if the
		// unlock fails the connection is released anyway and the session-level
		// lock dies with it.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return release, true, nil
}
