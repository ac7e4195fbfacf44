package geometry

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS polygons (
	seq        INTEGER PRIMARY KEY,
	id         TEXT NOT NULL,
	geom       BLOB,
	centroid_x REAL NOT NULL,
	centroid_y REAL NOT NULL,
	attrs      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_polygons_id ON polygons(id);
`

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "geometry: exec %s", pragma)
		}
	}
	return db, nil
}

// SaveSQLite writes the collection to a single-file cache at path. An
// existing cache at the same path is replaced. The cache loads faster than
// the source shapefile and round-trips the collection exactly.
func SaveSQLite(ctx context.Context, path string, coll *Collection) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "geometry: migrate cache")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "geometry: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM polygons`); err != nil {
		return eris.Wrap(err, "geometry: clear polygons")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meta`); err != nil {
		return eris.Wrap(err, "geometry: clear meta")
	}

	schemaJSON, err := json.Marshal(coll.Schema())
	if err != nil {
		return eris.Wrap(err, "geometry: marshal schema")
	}
	for key, value := range map[string]string{
		"srid":       "4326",
		"attributes": string(schemaJSON),
	} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return eris.Wrapf(err, "geometry: insert meta %s", key)
		}
	}

	for seq := range coll.Records {
		r := &coll.Records[seq]

		var geomBlob []byte
		if r.Geom != nil {
			geomBlob, err = ewkb.Marshal(r.Geom, ewkb.NDR)
			if err != nil {
				return eris.Wrapf(err, "geometry: encode record %s", r.ID)
			}
		}

		attrsJSON, err := json.Marshal(r.Attrs)
		if err != nil {
			return eris.Wrapf(err, "geometry: marshal attrs for %s", r.ID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO polygons (seq, id, geom, centroid_x, centroid_y, attrs) VALUES (?, ?, ?, ?, ?, ?)`,
			seq, r.ID, geomBlob, r.Centroid[0], r.Centroid[1], string(attrsJSON),
		)
		if err != nil {
			return eris.Wrapf(err, "geometry: insert record %s", r.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "geometry: commit cache")
	}

	zap.L().Info("geometry: cache written",
		zap.String("path", path),
		zap.Int("records", coll.Len()),
	)
	return nil
}

// loadSQLite reads a cache written by SaveSQLite, preserving record order.
func loadSQLite(ctx context.Context, path string, opts LoadOptions) (*Collection, error) {
	// sql.Open creates the file on first use; a missing cache must fail instead.
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "geometry: stat cache %s", path)
	}

	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var schemaJSON string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'attributes'`).Scan(&schemaJSON)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: read cache schema")
	}
	var schema []string
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return nil, eris.Wrap(err, "geometry: unmarshal cache schema")
	}

	keep, err := keepSet(schema, opts)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, geom, centroid_x, centroid_y, attrs FROM polygons ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: query polygons")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id        string
			geomBlob  []byte
			cx, cy    float64
			attrsJSON string
		)
		if err := rows.Scan(&id, &geomBlob, &cx, &cy, &attrsJSON); err != nil {
			return nil, eris.Wrap(err, "geometry: scan polygon")
		}

		var mp *geom.MultiPolygon
		if len(geomBlob) > 0 {
			g, decErr := ewkb.Unmarshal(geomBlob)
			if decErr != nil {
				return nil, eris.Wrapf(decErr, "geometry: decode record %s", id)
			}
			var ok bool
			mp, ok = g.(*geom.MultiPolygon)
			if !ok {
				return nil, eris.Errorf("geometry: record %s has %T geometry, want multipolygon", id, g)
			}
		}

		all := make(map[string]float64)
		if err := json.Unmarshal([]byte(attrsJSON), &all); err != nil {
			return nil, eris.Wrapf(err, "geometry: unmarshal attrs for %s", id)
		}

		attrs := all
		if keep != nil {
			attrs = make(map[string]float64, len(keep))
			for name := range keep {
				v, ok := all[name]
				if !ok {
					return nil, eris.Errorf("geometry: record %s missing attribute %q", id, name)
				}
				attrs[name] = v
			}
		}

		records = append(records, Record{
			ID:       id,
			Geom:     mp,
			Centroid: geom.Coord{cx, cy},
			Attrs:    attrs,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geometry: iterate polygons")
	}

	coll, err := NewCollection(records)
	if err != nil {
		return nil, err
	}

	zap.L().Info("geometry: cache loaded",
		zap.String("path", path),
		zap.Int("records", coll.Len()),
		zap.Int("attributes", len(coll.Schema())),
	)
	return coll, nil
}

// keepSet resolves the requested attribute subset against the cache schema.
// nil means keep everything.
func keepSet(schema []string, opts LoadOptions) (map[string]struct{}, error) {
	if len(opts.Attributes) == 0 {
		return nil, nil
	}
	have := make(map[string]struct{}, len(schema))
	for _, name := range schema {
		have[name] = struct{}{}
	}
	keep := make(map[string]struct{}, len(opts.Attributes))
	for _, want := range opts.Attributes {
		name := strings.ToLower(want)
		if _, ok := have[name]; !ok {
			return nil, eris.Errorf("geometry: attribute %q not in cache", want)
		}
		keep[name] = struct{}{}
	}
	return keep, nil
}
