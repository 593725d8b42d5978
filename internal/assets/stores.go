package assets

import "context"

// LibraryStore reads and writes the canonical corpus. Implementations return
// assets in a stable corpus order so search results are deterministic.
type LibraryStore interface {
	// Assets returns every canonical asset in corpus order.
	Assets(ctx context.Context) ([]CanonicalAsset, error)
	// Asset returns the asset with the given id, or nil when absent.
	Asset(ctx context.Context, assetID string) (*CanonicalAsset, error)
	// UpdateQuestion overwrites the shared fields of one canonical question.
	// Returns false when the asset or question does not exist.
	UpdateQuestion(ctx context.Context, key QuestionKey, fields SharedFields) (bool, error)
}

// DeskStore reads and writes desk-owned question copies. Records returns a
// snapshot: mutations performed while a caller iterates the returned slice
// are not reflected in it.
type DeskStore interface {
	Records(ctx context.Context, kind DeskKind) ([]DeskRecord, error)
	Record(ctx context.Context, kind DeskKind, recordID string) (*DeskRecord, error)
	Update(ctx context.Context, record DeskRecord) error
	Insert(ctx context.Context, record DeskRecord) error
}

// RemotePersister mirrors coaching-desk records to the remote document store.
// Enqueue must not block the synchronization path; delivery happens later and
// its failure never revises an already returned sync result.
type RemotePersister interface {
	Enqueue(ctx context.Context, collection string, recordID string, record DeskRecord) error
}
