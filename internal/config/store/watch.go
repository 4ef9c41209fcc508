package store

import (
	"context"
	"database/sql"
	"time"
)

// ChangeSnapshot captures update markers for the options table.
type ChangeSnapshot struct {
	LastUpdated string
	Count       int
}

// ChangeEvent describes a change to the site's options since the last snapshot.
type ChangeEvent struct {
	Snapshot ChangeSnapshot
}

// Watch polls the store for option changes and emits events on the returned channel.
// The caller must cancel ctx to terminate the watcher. The provided interval is clamped to
// a minimum of 500ms to avoid excessive polling.
func (s *Store) Watch(ctx context.Context, interval time.Duration) (<-chan ChangeEvent, error) {
	if s == nil {
		return nil, sql.ErrConnDone
	}

	if interval <= 0 {
		interval = time.Second
	}
	if interval < 500*time.Millisecond {
		interval = 500 * time.Millisecond
	}

	out := make(chan ChangeEvent, 1)

	initial, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(out)

		last := initial
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				next, err := s.snapshot(ctx)
				if err != nil {
					continue
				}
				if next == last {
					continue
				}
				select {
				case out <- ChangeEvent{Snapshot: next}:
				case <-ctx.Done():
					return
				}
				last = next
			}
		}
	}()

	return out, nil
}

// Deletions change Count, updates change LastUpdated.
func (s *Store) snapshot(ctx context.Context) (ChangeSnapshot, error) {
	var snap ChangeSnapshot
	if err := s.db.QueryRowContext(ctx, `
		SELECT IFNULL(MAX(updated_at), ''), COUNT(1)
		FROM options
		WHERE site = ?
	`, s.site).Scan(&snap.LastUpdated, &snap.Count); err != nil {
		return ChangeSnapshot{}, err
	}
	return snap, nil
}
