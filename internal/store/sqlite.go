package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/CanoaPBC/speckle-server/internal/core"
)

const objectColumns = `o.id, o.speckle_type, o.application_id, o.description, o.author,
       o.total_children_count, o.children_count_by_depth, o.data, o.created_at`

// SQLiteRepository implements Repository using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite repository
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	// The busy timeout rides on the DSN so every pooled connection gets it,
	// not just the one the pragma statement below happens to run on.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// Verify connectivity
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	repo := &SQLiteRepository{db: db}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return repo, nil
}

// Close closes the SQLite connection
func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

// CreateObject inserts a single object row, ignoring a duplicate id. The id
// is returned either way.
func (r *SQLiteRepository) CreateObject(ctx context.Context, obj *core.Object) (string, error) {
	ids, err := r.CreateObjects(ctx, []*core.Object{obj})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CreateObjects bulk-inserts object rows with ignore-on-conflict semantics.
// Returned ids match input order.
func (r *SQLiteRepository) CreateObjects(ctx context.Context, objs []*core.Object) ([]string, error) {
	if len(objs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(objs))
	placeholders := make([]string, 0, len(objs))
	args := make([]any, 0, len(objs)*9)

	for _, obj := range objs {
		data, err := json.Marshal(obj.Data)
		if err != nil {
			return nil, fmt.Errorf("marshaling object data: %w", err)
		}
		var byDepth []byte
		if len(obj.ChildrenCountByDepth) > 0 {
			byDepth, err = json.Marshal(obj.ChildrenCountByDepth)
			if err != nil {
				return nil, fmt.Errorf("marshaling depth counts: %w", err)
			}
		}
		createdAt := obj.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			obj.ID,
			obj.SpeckleType,
			nullString(obj.ApplicationID),
			nullString(obj.Description),
			nullString(obj.Author),
			obj.TotalChildrenCount,
			nullString(string(byDepth)),
			string(data),
			createdAt.Format(time.RFC3339),
		)
		ids = append(ids, obj.ID)
	}

	query := `
		INSERT INTO objects (id, speckle_type, application_id, description, author,
		                     total_children_count, children_count_by_depth, data, created_at)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT(id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("inserting objects: %w", err)
	}
	return ids, nil
}

// GetObject retrieves an object by id
func (r *SQLiteRepository) GetObject(ctx context.Context, id string) (*core.Object, error) {
	query := `SELECT ` + objectColumns + ` FROM objects o WHERE o.id = ?`
	obj, err := scanObject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return obj, err
}

// GetObjects retrieves the objects whose ids exist, preserving input order
// and silently omitting missing ids.
func (r *SQLiteRepository) GetObjects(ctx context.Context, ids []string) ([]*core.Object, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + objectColumns + ` FROM objects o WHERE o.id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying objects: %w", err)
	}
	defer rows.Close()

	found, err := scanObjects(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*core.Object, len(found))
	for _, obj := range found {
		byID[obj.ID] = obj
	}
	result := make([]*core.Object, 0, len(found))
	for _, id := range ids {
		if obj, ok := byID[id]; ok {
			result = append(result, obj)
			delete(byID, id)
		}
	}
	return result, nil
}

// UpdateObject is contractually unsupported: content-addressed rows are
// never mutated in place.
func (r *SQLiteRepository) UpdateObject(ctx context.Context, obj *core.Object) error {
	return fmt.Errorf("updating objects: %w", core.ErrNotImplemented)
}

// DeleteObject is contractually unsupported: no cascade over the closure
// index exists.
func (r *SQLiteRepository) DeleteObject(ctx context.Context, id string) error {
	return fmt.Errorf("deleting objects: %w", core.ErrNotImplemented)
}

// CreateClosures bulk-inserts closure edges, ignoring duplicate
// (parent, child) pairs. An empty edge list issues no write. Depths are
// persisted as supplied, never validated against the graph.
func (r *SQLiteRepository) CreateClosures(ctx context.Context, edges []core.ClosureEdge) error {
	if len(edges) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(edges))
	args := make([]any, 0, len(edges)*3)
	for _, e := range edges {
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, e.Parent, e.Child, e.MinDepth)
	}

	query := `
		INSERT INTO object_children_closure (parent, child, min_depth)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT(parent, child) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting closures: %w", err)
	}
	return nil
}

// Children answers the simple depth-bounded children query: descendants of
// the object at min_depth < depth, ordered by id ascending, resuming after
// the cursor id. An empty page carries no cursor and is the terminal page.
func (r *SQLiteRepository) Children(ctx context.Context, q core.ChildrenQuery) (*core.ChildrenPage, error) {
	q.Normalize()

	query := `
		SELECT ` + objectColumns + `
		FROM object_children_closure c
		JOIN objects o ON o.id = c.child
		WHERE c.parent = ? AND c.min_depth < ? AND o.id > ?
		ORDER BY o.id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, q.ObjectID, q.Depth, q.Cursor, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	objs, err := scanObjects(rows)
	if err != nil {
		return nil, err
	}

	page := &core.ChildrenPage{Objects: objs}
	if len(objs) > 0 {
		page.Cursor = objs[len(objs)-1].ID
	}
	return page, nil
}

// ChildrenFiltered answers the filtered, sorted, keyset-paginated children
// query. Filter and cursor operators are validated before any statement is
// issued; TotalCount is the cardinality of the full filtered set.
func (r *SQLiteRepository) ChildrenFiltered(ctx context.Context, q core.ChildrenFilterQuery) (*core.ChildrenResult, error) {
	q.Normalize()

	var filterSQL string
	var filterArgs []any
	if len(q.Filters) > 0 {
		var err error
		filterSQL, filterArgs, err = buildFilters(q.Filters)
		if err != nil {
			return nil, err
		}
	}

	var cursorSQL string
	var cursorArgs []any
	if q.Cursor != "" {
		cursor, err := core.DecodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		cursorSQL, cursorArgs, err = buildCursor(cursor)
		if err != nil {
			return nil, err
		}
	}

	base := `
		FROM object_children_closure c
		JOIN objects o ON o.id = c.child
		WHERE c.parent = ? AND c.min_depth < ?
	`
	baseArgs := []any{q.ObjectID, q.Depth}
	if filterSQL != "" {
		base += " AND " + filterSQL
		baseArgs = append(baseArgs, filterArgs...)
	}

	result := &core.ChildrenResult{}
	countQuery := `SELECT COUNT(*) ` + base
	if err := r.db.QueryRowContext(ctx, countQuery, baseArgs...).Scan(&result.TotalCount); err != nil {
		return nil, fmt.Errorf("counting children: %w", err)
	}

	pageQuery := `SELECT ` + objectColumns + " " + base
	pageArgs := append([]any{}, baseArgs...)
	if cursorSQL != "" {
		pageQuery += " AND " + cursorSQL
		pageArgs = append(pageArgs, cursorArgs...)
	}

	orderSQL, orderArgs := buildOrder(q.OrderBy)
	pageQuery += " ORDER BY " + orderSQL + " LIMIT ?"
	pageArgs = append(pageArgs, orderArgs...)
	pageArgs = append(pageArgs, q.Limit)

	rows, err := r.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	result.Objects, err = scanObjects(rows)
	if err != nil {
		return nil, err
	}

	if len(result.Objects) == q.Limit {
		result.Cursor = nextCursor(q.OrderBy, result.Objects[len(result.Objects)-1]).Encode()
	}
	return result, nil
}

// CreateCommit idempotently links a stream to a commit object.
func (r *SQLiteRepository) CreateCommit(ctx context.Context, streamID, commitID string) error {
	query := `
		INSERT INTO stream_commits (stream_id, commit_id)
		VALUES (?, ?)
		ON CONFLICT(stream_id, commit_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, streamID, commitID); err != nil {
		return fmt.Errorf("inserting stream commit: %w", err)
	}
	return nil
}

// CommitsByStream returns the full commit objects linked to a stream. The
// inner join guarantees a link whose object row is gone never surfaces.
func (r *SQLiteRepository) CommitsByStream(ctx context.Context, streamID string) ([]*core.Object, error) {
	query := `
		SELECT ` + objectColumns + `
		FROM stream_commits sc
		JOIN objects o ON o.id = sc.commit_id
		WHERE sc.stream_id = ?
		ORDER BY o.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, streamID)
	if err != nil {
		return nil, fmt.Errorf("querying stream commits: %w", err)
	}
	defer rows.Close()

	return scanObjects(rows)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (*core.Object, error) {
	var obj core.Object
	var applicationID, description, author, byDepth, data sql.NullString
	var createdAt string

	if err := row.Scan(&obj.ID, &obj.SpeckleType, &applicationID, &description, &author,
		&obj.TotalChildrenCount, &byDepth, &data, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning object: %w", err)
	}

	obj.ApplicationID = applicationID.String
	obj.Description = description.String
	obj.Author = author.String

	if byDepth.Valid && byDepth.String != "" {
		if err := json.Unmarshal([]byte(byDepth.String), &obj.ChildrenCountByDepth); err != nil {
			return nil, fmt.Errorf("parsing depth counts: %w", err)
		}
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &obj.Data); err != nil {
			return nil, fmt.Errorf("parsing object data: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		obj.CreatedAt = t
	}

	return &obj, nil
}

func scanObjects(rows *sql.Rows) ([]*core.Object, error) {
	var objs []*core.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objs = append(objs, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating objects: %w", err)
	}
	return objs, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
