// Package store persists objects, closure edges and stream-commit links in a
// relational backend and answers descendant queries over the closure index.
package store

import (
	"context"

	"github.com/CanoaPBC/speckle-server/internal/core"
)

// Repository is the storage contract injected into every component. The
// SQLite implementation is the only backend; nothing reaches an ambient
// process-wide handle.
type Repository interface {
	// Lifecycle
	Close(ctx context.Context) error

	// Object rows. Writes are idempotent: inserting an id that already
	// exists changes nothing and is not an error.
	CreateObject(ctx context.Context, obj *core.Object) (string, error)
	CreateObjects(ctx context.Context, objs []*core.Object) ([]string, error)
	GetObject(ctx context.Context, id string) (*core.Object, error)
	GetObjects(ctx context.Context, ids []string) ([]*core.Object, error)

	// Contractually unsupported: both fail with core.ErrNotImplemented.
	UpdateObject(ctx context.Context, obj *core.Object) error
	DeleteObject(ctx context.Context, id string) error

	// Closure index maintenance. Duplicate (parent, child) pairs are
	// ignored; an empty edge list issues no write. Depths are trusted.
	CreateClosures(ctx context.Context, edges []core.ClosureEdge) error

	// Descendant queries over the closure index scoped to
	// parent = objectID and min_depth < depth.
	Children(ctx context.Context, q core.ChildrenQuery) (*core.ChildrenPage, error)
	ChildrenFiltered(ctx context.Context, q core.ChildrenFilterQuery) (*core.ChildrenResult, error)

	// Stream-commit links.
	CreateCommit(ctx context.Context, streamID, commitID string) error
	CommitsByStream(ctx context.Context, streamID string) ([]*core.Object, error)
}
