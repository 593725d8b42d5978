package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingLibraryStore = errors.New("library store is required")
	errMissingDeskStore    = errors.New("desk store is required")
	errMissingIDProvider   = errors.New("record id provider is required")
	noOpLogger             = zap.NewNop()
)

// ServiceError wraps a store failure with a stable operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "assets.service.new"
	opResolve    = "assets.resolve"
	opBroadcast  = "assets.broadcast"
	opReverse    = "assets.reverse_sync"
	opSearch     = "assets.search"
	opImport     = "assets.import"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig carries the collaborators the synchronization engine needs.
// Remote may be nil when no remote document store is configured; coaching
// writes then stay local.
type ServiceConfig struct {
	Library          LibraryStore
	Desks            DeskStore
	Remote           RemotePersister
	RemoteCollection string
	Clock            func() time.Time
	IDProvider       RecordIDProvider
	Logger           *zap.Logger
}

// Service is the asset synchronization engine: reference resolution,
// library-to-desk broadcast, desk-to-library push, corpus search, and import.
type Service struct {
	library          LibraryStore
	desks            DeskStore
	remote           RemotePersister
	remoteCollection string
	clock            func() time.Time
	idProvider       RecordIDProvider
	logger           *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Library == nil {
		return nil, newServiceError(opServiceNew, "missing_library_store", errMissingLibraryStore)
	}
	if cfg.Desks == nil {
		return nil, newServiceError(opServiceNew, "missing_desk_store", errMissingDeskStore)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewRecordIDProvider(clock)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	collection := cfg.RemoteCollection
	if collection == "" {
		collection = "coaching_questions"
	}

	return &Service{
		library:          cfg.Library,
		desks:            cfg.Desks,
		remote:           cfg.Remote,
		remoteCollection: collection,
		clock:            clock,
		idProvider:       idProvider,
		logger:           logger,
	}, nil
}

// BroadcastCounts reports how many records each desk updated during a
// library-to-desks broadcast.
type BroadcastCounts struct {
	Personal int
	Group    int
	Coaching int
	Total    int
}

// SyncLibraryToDesk pushes the current canonical values of one question to
// every record on the given desk whose AssetRef points at it. A dangling key
// yields a zero count and mutates nothing. Desk-local fields are never
// touched.
func (s *Service) SyncLibraryToDesk(ctx context.Context, kind DeskKind, key QuestionKey) (int, error) {
	canonical, err := s.resolveKey(ctx, key)
	if err != nil {
		return 0, err
	}
	if canonical == nil {
		return 0, nil
	}
	return s.broadcastToDesk(ctx, kind, key.Ref(), canonical.Shared())
}

// SyncAllDesks broadcasts one canonical question to every desk and reports
// per-desk and total update counts. The canonical question is resolved once;
// a dangling key yields all-zero counts.
func (s *Service) SyncAllDesks(ctx context.Context, key QuestionKey) (BroadcastCounts, error) {
	canonical, err := s.resolveKey(ctx, key)
	if err != nil {
		return BroadcastCounts{}, err
	}
	if canonical == nil {
		return BroadcastCounts{}, nil
	}

	shared := canonical.Shared()
	ref := key.Ref()
	counts := BroadcastCounts{}
	for _, kind := range DeskKinds {
		updated, err := s.broadcastToDesk(ctx, kind, ref, shared)
		if err != nil {
			return BroadcastCounts{}, err
		}
		switch kind {
		case DeskPersonal:
			counts.Personal = updated
		case DeskGroup:
			counts.Group = updated
		case DeskCoaching:
			counts.Coaching = updated
		}
		counts.Total += updated
	}
	return counts, nil
}

func (s *Service) broadcastToDesk(ctx context.Context, kind DeskKind, ref Reference, shared SharedFields) (int, error) {
	records, err := s.desks.Records(ctx, kind)
	if err != nil {
		s.logError(opBroadcast, "records_load_failed", err, zap.String("desk", string(kind)))
		return 0, newServiceError(opBroadcast, "records_load_failed", err)
	}

	updated := 0
	for i := range records {
		if records[i].AssetRef != ref {
			continue
		}
		record := records[i]
		record.applyShared(shared)
		record.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := s.desks.Update(ctx, record); err != nil {
			s.logError(opBroadcast, "record_update_failed", err,
				zap.String("desk", string(kind)),
				zap.String("record_id", record.ID))
			return updated, newServiceError(opBroadcast, "record_update_failed", err)
		}
		updated++

		// Coaching copies are additionally mirrored to the remote document
		// store. Personal and group desks persist through their own paths.
		if kind == DeskCoaching {
			s.persistRemote(ctx, opBroadcast, record)
		}
	}
	return updated, nil
}

// SyncDeskToLibrary pushes one desk record's shared fields back to its
// canonical origin. Returns false with no side effect when the record is
// absent, carries no reference, the reference fails to decode, or the
// canonical target no longer exists. Never fans out: exactly one canonical
// question is updated on success.
func (s *Service) SyncDeskToLibrary(ctx context.Context, kind DeskKind, recordID string) (bool, error) {
	record, err := s.desks.Record(ctx, kind, recordID)
	if err != nil {
		s.logError(opReverse, "record_load_failed", err,
			zap.String("desk", string(kind)),
			zap.String("record_id", recordID))
		return false, newServiceError(opReverse, "record_load_failed", err)
	}
	if record == nil || record.AssetRef == "" {
		return false, nil
	}

	key, ok := record.AssetRef.Decode()
	if !ok {
		return false, nil
	}

	updated, err := s.library.UpdateQuestion(ctx, key, record.Shared())
	if err != nil {
		s.logError(opReverse, "question_update_failed", err,
			zap.String("asset_id", key.AssetID),
			zap.String("question_id", key.QuestionID))
		return false, newServiceError(opReverse, "question_update_failed", err)
	}
	return updated, nil
}

// ImportRequest carries the desk-scoped identifiers supplied by the caller
// when instantiating a canonical question onto a desk.
type ImportRequest struct {
	Key        QuestionKey
	CourseID   string
	GroupID    string
	CategoryID string
	CreatedBy  string
}

// ImportToDesk creates a new desk record bound to a canonical question. The
// record gets a freshly generated id, the caller's desk-scoped identifiers,
// the canonical shared fields copied verbatim, and AssetRef set to the
// question's reference. A nil result means the canonical question could not
// be resolved; nothing is inserted in that case.
func (s *Service) ImportToDesk(ctx context.Context, kind DeskKind, req ImportRequest) (*DeskRecord, error) {
	canonical, err := s.resolveKey(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if canonical == nil {
		return nil, nil
	}

	recordID, err := s.idProvider.NewRecordID(kind)
	if err != nil {
		s.logError(opImport, "id_generation_failed", err, zap.String("desk", string(kind)))
		return nil, newServiceError(opImport, "id_generation_failed", err)
	}

	now := s.clock().UTC().Unix()
	record := DeskRecord{
		ID:               recordID,
		Desk:             kind,
		CourseID:         req.CourseID,
		GroupID:          req.GroupID,
		CategoryID:       req.CategoryID,
		CreatedBy:        req.CreatedBy,
		AssetRef:         req.Key.Ref(),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	record.applyShared(canonical.Shared())

	if err := s.desks.Insert(ctx, record); err != nil {
		s.logError(opImport, "record_insert_failed", err,
			zap.String("desk", string(kind)),
			zap.String("record_id", recordID))
		return nil, newServiceError(opImport, "record_insert_failed", err)
	}

	if kind == DeskCoaching {
		s.persistRemote(ctx, opImport, record)
	}

	return &record, nil
}

// persistRemote hands a coaching record to the remote persister. Enqueue
// failure is logged and swallowed: the local mutation already succeeded and
// is not revised.
func (s *Service) persistRemote(ctx context.Context, operation string, record DeskRecord) {
	if s.remote == nil {
		return
	}
	if err := s.remote.Enqueue(ctx, s.remoteCollection, record.ID, record); err != nil {
		s.logError(operation, "remote_enqueue_failed", err,
			zap.String("collection", s.remoteCollection),
			zap.String("record_id", record.ID))
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("assets service error", attrs...)
}
