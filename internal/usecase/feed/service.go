package feed

import (
	"errors"
	stdsync "sync"
	"time"

	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/ports"
	livesync "campussync/internal/usecase/sync"
)

// Service is the single write path into the document store. It enforces
// authentication, the admin gate on emergency alerts, denormalization
// invariants, and at-most-one-in-flight-write-per-entity. Reads come from
// the synchronizer's latest snapshot: eventually consistent, never assumed
// to reflect the very next write.
type Service struct {
	store    ports.DocumentStore
	identity ports.Identity
	syncer   *livesync.Synchronizer
	images   ports.ImageCache
	blobs    ports.BlobStore

	inflightMu stdsync.Mutex
	inflight   map[string]struct{}
}

func NewService(store ports.DocumentStore, identity ports.Identity, syncer *livesync.Synchronizer, images ports.ImageCache, blobs ports.BlobStore) *Service {
	return &Service{
		store:    store,
		identity: identity,
		syncer:   syncer,
		images:   images,
		blobs:    blobs,
		inflight: make(map[string]struct{}),
	}
}

// beginWrite reserves the entity for one in-flight write.
func (s *Service) beginWrite(entityID string) error {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[entityID]; busy {
		return domainfeed.ErrWriteInFlight
	}
	s.inflight[entityID] = struct{}{}
	return nil
}

func (s *Service) endWrite(entityID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, entityID)
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

var errStoreRequired = errors.New("document store is required")
