package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Option is one persisted option blob.
type Option struct {
	Name      string
	Value     map[string]string
	UpdatedAt string
}

// GetOption returns the blob stored under name. A missing option yields a
// NotFoundError; callers that want an empty map should check IsNotFound.
func (s *Store) GetOption(ctx context.Context, name string) (map[string]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("config: get option: name required")
	}

	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM options WHERE site = ? AND name = ?
	`, s.site, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFoundError{Entity: "option", Key: name}
	}
	if err != nil {
		return nil, fmt.Errorf("config: get option %q: %w", name, err)
	}

	value, err := DecodeJSON[map[string]string](raw)
	if err != nil {
		return nil, fmt.Errorf("config: decode option %q: %w", name, err)
	}
	if value == nil {
		value = map[string]string{}
	}
	return value, nil
}

// SetOption replaces the whole blob stored under name.
func (s *Store) SetOption(ctx context.Context, name string, value map[string]string) error {
	if s.readOnly {
		return fmt.Errorf("config: set option: store opened read-only")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("config: set option: name required")
	}
	if value == nil {
		value = map[string]string{}
	}

	payload, err := encodeJSON(value, nil)
	if err != nil {
		return fmt.Errorf("config: encode option %q: %w", name, err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO options (site, name, value, updated_at)
		VALUES (?, ?, ?, `+nowMillis+`)
		ON CONFLICT(site, name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.site, name, payload); err != nil {
		return fmt.Errorf("config: set option %q: %w", name, err)
	}
	return nil
}

// DeleteOption removes the option stored under name.
func (s *Store) DeleteOption(ctx context.Context, name string) error {
	if s.readOnly {
		return fmt.Errorf("config: delete option: store opened read-only")
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE site = ? AND name = ?`, s.site, name)
	if err != nil {
		return fmt.Errorf("config: delete option %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("config: delete option %q: rows affected: %w", name, err)
	}
	if n == 0 {
		return NotFoundError{Entity: "option", Key: name}
	}
	return nil
}

// ListOptions returns every option whose name starts with prefix, ordered by name.
// An empty prefix lists all options of the site.
func (s *Store) ListOptions(ctx context.Context, prefix string) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, updated_at
		FROM options
		WHERE site = ? AND name LIKE ? ESCAPE '\'
		ORDER BY name
	`, s.site, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("config: list options: %w", err)
	}
	defer rows.Close()

	result := []Option{}
	for rows.Next() {
		var (
			opt Option
			raw sql.NullString
		)
		if err := rows.Scan(&opt.Name, &raw, &opt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("config: scan option row: %w", err)
		}
		if opt.Value, err = DecodeJSON[map[string]string](raw); err != nil {
			return nil, fmt.Errorf("config: decode option %q: %w", opt.Name, err)
		}
		if opt.Value == nil {
			opt.Value = map[string]string{}
		}
		result = append(result, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("config: iterate option rows: %w", err)
	}
	return result, nil
}

// DeleteOptionsWithPrefix removes every option whose name starts with prefix
// and returns the number of rows removed. An empty prefix is rejected so a
// typo cannot wipe the whole site.
func (s *Store) DeleteOptionsWithPrefix(ctx context.Context, prefix string) (int64, error) {
	if s.readOnly {
		return 0, fmt.Errorf("config: delete options: store opened read-only")
	}
	if strings.TrimSpace(prefix) == "" {
		return 0, fmt.Errorf("config: delete options: prefix required")
	}

	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM options WHERE site = ? AND name LIKE ? ESCAPE '\'
		`, s.site, escapeLike(prefix)+"%")
		if err != nil {
			return fmt.Errorf("config: delete options with prefix %q: %w", prefix, err)
		}
		removed, err = result.RowsAffected()
		return err
	})
	return removed, err
}
