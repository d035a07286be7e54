package store

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nukeythenuke/torygg/pkg/errors"
)

const catalogSchema = `
	CREATE TABLE IF NOT EXISTS mods (
		name TEXT PRIMARY KEY,
		installed_at TEXT NOT NULL,
		payload_root TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS plugins (
		mod_name TEXT NOT NULL,
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (mod_name, idx)
	);
`

// catalog is the SQLite-backed record of installed mods
type catalog struct {
	db *sql.DB
}

func openCatalog(path string) (*catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIOFailure, "failed to open catalog %s", path)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to set WAL mode on catalog")
	}
	if _, err := db.Exec(catalogSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to create catalog tables")
	}

	return &catalog{db: db}, nil
}

func (c *catalog) Close() error {
	return c.db.Close()
}

func (c *catalog) exists(ctx context.Context, name string) (bool, error) {
	var found string
	err := c.db.QueryRowContext(ctx, "SELECT name FROM mods WHERE name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrIOFailure, "failed to query catalog")
	}
	return true, nil
}

func (c *catalog) insert(ctx context.Context, mod *Mod, payloadRoot string) error {
	return c.write(ctx, mod, payloadRoot, false)
}

func (c *catalog) update(ctx context.Context, mod *Mod, payloadRoot string) error {
	return c.write(ctx, mod, payloadRoot, true)
}

func (c *catalog) write(ctx context.Context, mod *Mod, payloadRoot string, replace bool) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrIOFailure, "failed to begin catalog transaction")
	}
	defer func() { _ = tx.Rollback() }()

	installedAt := mod.InstalledAt.UTC().Format(time.RFC3339)
	if replace {
		if _, err := tx.ExecContext(ctx,
			"UPDATE mods SET installed_at = ?, payload_root = ? WHERE name = ?",
			installedAt, payloadRoot, mod.Name); err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to update mod %s", mod.Name)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM plugins WHERE mod_name = ?", mod.Name); err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to clear plugins of %s", mod.Name)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO mods (name, installed_at, payload_root) VALUES (?, ?, ?)",
			mod.Name, installedAt, payloadRoot); err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to insert mod %s", mod.Name)
		}
	}

	for idx, plugin := range mod.Plugins {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO plugins (mod_name, idx, name) VALUES (?, ?, ?)",
			mod.Name, idx, plugin); err != nil {
			return errors.Wrapf(err, errors.ErrIOFailure, "failed to insert plugin %s", plugin)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrIOFailure, "failed to commit catalog transaction")
	}
	return nil
}

func (c *catalog) remove(ctx context.Context, name string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrIOFailure, "failed to begin catalog transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM plugins WHERE mod_name = ?", name); err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to delete plugins of %s", name)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM mods WHERE name = ?", name)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIOFailure, "failed to delete mod %s", name)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrIOFailure, "failed to read catalog result")
	}
	if affected == 0 {
		return errors.Newf(errors.ErrNotFound, "mod %q is not installed", name).
			WithDetail("mod", name)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrIOFailure, "failed to commit catalog transaction")
	}
	return nil
}

func (c *catalog) get(ctx context.Context, name string) (*Mod, error) {
	var installedAt string
	err := c.db.QueryRowContext(ctx,
		"SELECT installed_at FROM mods WHERE name = ?", name).Scan(&installedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrNotFound, "mod %q is not installed", name).
			WithDetail("mod", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to query catalog")
	}

	mod := &Mod{Name: name}
	mod.InstalledAt, err = time.Parse(time.RFC3339, installedAt)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInternal, "corrupt timestamp for mod %s", name)
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM plugins WHERE mod_name = ? ORDER BY idx", name)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to query plugins")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var plugin string
		if err := rows.Scan(&plugin); err != nil {
			return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to scan plugin row")
		}
		mod.Plugins = append(mod.Plugins, plugin)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to iterate plugins")
	}

	return mod, nil
}

func (c *catalog) list(ctx context.Context) ([]Mod, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name, installed_at FROM mods ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to query catalog")
	}
	defer func() { _ = rows.Close() }()

	var mods []Mod
	index := make(map[string]int)
	for rows.Next() {
		var name, installedAt string
		if err := rows.Scan(&name, &installedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to scan mod row")
		}
		mod := Mod{Name: name}
		mod.InstalledAt, err = time.Parse(time.RFC3339, installedAt)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrInternal, "corrupt timestamp for mod %s", name)
		}
		index[name] = len(mods)
		mods = append(mods, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to iterate mods")
	}

	pluginRows, err := c.db.QueryContext(ctx,
		"SELECT mod_name, name FROM plugins ORDER BY mod_name, idx")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to query plugins")
	}
	defer func() { _ = pluginRows.Close() }()

	for pluginRows.Next() {
		var modName, plugin string
		if err := pluginRows.Scan(&modName, &plugin); err != nil {
			return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to scan plugin row")
		}
		if i, ok := index[modName]; ok {
			mods[i].Plugins = append(mods[i].Plugins, plugin)
		}
	}
	if err := pluginRows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to iterate plugins")
	}

	return mods, nil
}
