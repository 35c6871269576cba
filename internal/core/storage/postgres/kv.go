package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (a *Adapter) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := a.stmtKVGet.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (a *Adapter) Set(ctx context.Context, key, value string) error {
	if _, err := a.stmtKVSet.ExecContext(ctx, key, value, a.now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	if _, err := a.stmtKVDelete.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
