package objects

import (
	"context"

	"github.com/CanoaPBC/speckle-server/internal/core"
	"github.com/CanoaPBC/speckle-server/internal/store"
)

// Service exposes the object store's operations to the calling layer. All
// storage access goes through the injected Repository.
type Service struct {
	repo         store.Repository
	maxBatchSize int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxBatchSize overrides the default sub-batch bound for ingestion.
func WithMaxBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// NewService creates a service over the given repository.
func NewService(repo store.Repository, opts ...Option) *Service {
	s := &Service{repo: repo, maxBatchSize: DefaultMaxBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateObject persists a single raw document and returns its id.
func (s *Service) CreateObject(ctx context.Context, raw core.Document) (string, error) {
	ids, err := ingest(ctx, s.repo, []core.Document{raw}, s.maxBatchSize)
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// CreateObjects persists a collection of raw documents through the batch
// ingestor and returns their ids in input order.
func (s *Service) CreateObjects(ctx context.Context, raws []core.Document) ([]string, error) {
	return ingest(ctx, s.repo, raws, s.maxBatchSize)
}

// GetObject retrieves one object; absent ids yield core.ErrNotFound.
func (s *Service) GetObject(ctx context.Context, id string) (*core.Object, error) {
	return s.repo.GetObject(ctx, id)
}

// GetObjects retrieves the objects that exist, silently omitting missing ids.
func (s *Service) GetObjects(ctx context.Context, ids []string) ([]*core.Object, error) {
	return s.repo.GetObjects(ctx, ids)
}

// GetObjectChildren answers the simple depth-bounded children query,
// projecting payloads when fields are requested.
func (s *Service) GetObjectChildren(ctx context.Context, q core.ChildrenQuery) (*core.ChildrenPage, error) {
	page, err := s.repo.Children(ctx, q)
	if err != nil {
		return nil, err
	}
	projectAll(page.Objects, q.Fields)
	return page, nil
}

// GetObjectChildrenQuery answers the filtered, sorted, paginated children
// query, projecting payloads when fields are requested.
func (s *Service) GetObjectChildrenQuery(ctx context.Context, q core.ChildrenFilterQuery) (*core.ChildrenResult, error) {
	result, err := s.repo.ChildrenFiltered(ctx, q)
	if err != nil {
		return nil, err
	}
	projectAll(result.Objects, q.Fields)
	return result, nil
}

// CreateCommit tags the raw document as a commit authored by the given
// user, persists it, and idempotently links it to the stream.
func (s *Service) CreateCommit(ctx context.Context, streamID, userID string, raw core.Document) (string, error) {
	doc := make(core.Document, len(raw)+2)
	for k, v := range raw {
		doc[k] = v
	}
	doc["speckle_type"] = core.SpeckleTypeCommit
	doc["author"] = userID

	id, err := s.CreateObject(ctx, doc)
	if err != nil {
		return "", err
	}
	if err := s.repo.CreateCommit(ctx, streamID, id); err != nil {
		return "", err
	}
	return id, nil
}

// GetCommitsByStreamID returns the full commit objects linked to a stream.
func (s *Service) GetCommitsByStreamID(ctx context.Context, streamID string) ([]*core.Object, error) {
	return s.repo.CommitsByStream(ctx, streamID)
}

func projectAll(objs []*core.Object, fields []string) {
	if len(fields) == 0 {
		return
	}
	for _, obj := range objs {
		obj.Data = obj.Data.Project(fields)
	}
}
