package persist

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/physim/studio/internal/scene"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type SceneRow struct {
	ID        uuid.UUID
	Name      string
	Digest    string
	Entities  int
	CreatedAt time.Time
}

type SceneRepo struct {
	db *DB
}

func NewSceneRepo(db *DB) *SceneRepo {
	return &SceneRepo{db: db}
}

// Save stores doc under name. Scenes are content addressed: saving a document
// whose digest is already stored returns the existing row.
func (r *SceneRepo) Save(ctx context.Context, name string, doc *scene.Document) (*SceneRow, error) {
	digest, err := scene.Digest(doc)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "encode scene")
	}

	var row *SceneRow
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanScene(tx.QueryRow(ctx,
			`SELECT id, name, digest, entities, created_at FROM scenes WHERE digest = $1`, digest,
		))
		if err != nil {
			return err
		}
		if existing != nil {
			r.db.log.Debug("scene already stored", zap.String("digest", digest), zap.Stringer("id", existing.ID))
			row = existing
			return nil
		}

		row = &SceneRow{
			ID:       uuid.New(),
			Name:     name,
			Digest:   digest,
			Entities: len(doc.Entities),
		}
		return eris.Wrap(tx.QueryRow(ctx,
			`INSERT INTO scenes (id, name, digest, entities, document)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			row.ID, row.Name, row.Digest, row.Entities, data,
		).Scan(&row.CreatedAt), "scene insert")
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Load returns the document stored under id, or nil when there is none.
func (r *SceneRepo) Load(ctx context.Context, id uuid.UUID) (*scene.Document, error) {
	return r.loadDocument(ctx, `SELECT document FROM scenes WHERE id = $1`, id)
}

// LoadLatest returns the newest document saved under name, or nil.
func (r *SceneRepo) LoadLatest(ctx context.Context, name string) (*scene.Document, error) {
	return r.loadDocument(ctx,
		`SELECT document FROM scenes WHERE name = $1 ORDER BY created_at DESC LIMIT 1`, name)
}

func (r *SceneRepo) loadDocument(ctx context.Context, query string, arg any) (*scene.Document, error) {
	var data []byte
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scene load")
	}
	return scene.Unmarshal(data, scene.FormatJSON)
}

// List returns the newest scenes first.
func (r *SceneRepo) List(ctx context.Context, limit int) ([]SceneRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, digest, entities, created_at FROM scenes
		 ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "scene list")
	}
	defer rows.Close()

	var out []SceneRow
	for rows.Next() {
		var row SceneRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Digest, &row.Entities, &row.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "scene list scan")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Delete removes a stored scene and reports whether it existed.
func (r *SceneRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1`, id)
	if err != nil {
		return false, eris.Wrap(err, "scene delete")
	}
	return tag.RowsAffected() > 0, nil
}

func scanScene(row pgx.Row) (*SceneRow, error) {
	s := &SceneRow{}
	err := row.Scan(&s.ID, &s.Name, &s.Digest, &s.Entities, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scene scan")
	}
	return s, nil
}
