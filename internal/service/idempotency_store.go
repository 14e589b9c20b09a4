package service

import (
	"context"
	"sync"
	"time"
)

type IdempotencyState string

const (
	IdempotencyStateNew        IdempotencyState = "new"
	IdempotencyStateReplay     IdempotencyState = "replay"
	IdempotencyStateConflict   IdempotencyState = "conflict"
	IdempotencyStateInProgress IdempotencyState = "in_progress"
)

type CachedHTTPResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type IdempotencyBeginResult struct {
	State  IdempotencyState
	Cached *CachedHTTPResponse
}

// IdempotencyStore records the outcome of a mutating request keyed by
// (scope, key). Begin atomically claims the key: exactly one caller observes
// "new" and executes the mutation; Complete persists the response snapshot for
// replay; Abort releases the claim so a failed mutation can be retried
// (failures are never cached).
type IdempotencyStore interface {
	Begin(ctx context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error)
	Complete(ctx context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error
	Abort(ctx context.Context, scope, key, fingerprint string) error
}

type localIdempotencyRecord struct {
	fingerprint string
	completed   bool
	cached      CachedHTTPResponse
	expiresAt   time.Time
}

// LocalIdempotencyStore is a single-process implementation used in tests and
// Redis-less development. Production runs the Redis store.
type LocalIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*localIdempotencyRecord
}

func NewLocalIdempotencyStore() *LocalIdempotencyStore {
	return &LocalIdempotencyStore{records: make(map[string]*localIdempotencyRecord)}
}

func localKey(scope, key string) string { return scope + "\x00" + key }

func (s *LocalIdempotencyStore) Begin(_ context.Context, scope, key, fingerprint string, ttl time.Duration) (IdempotencyBeginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	k := localKey(scope, key)
	rec, ok := s.records[k]
	if ok && now.After(rec.expiresAt) {
		delete(s.records, k)
		ok = false
	}
	if !ok {
		s.records[k] = &localIdempotencyRecord{fingerprint: fingerprint, expiresAt: now.Add(ttl)}
		return IdempotencyBeginResult{State: IdempotencyStateNew}, nil
	}
	if rec.fingerprint != fingerprint {
		return IdempotencyBeginResult{State: IdempotencyStateConflict}, nil
	}
	if !rec.completed {
		return IdempotencyBeginResult{State: IdempotencyStateInProgress}, nil
	}
	cached := rec.cached
	return IdempotencyBeginResult{State: IdempotencyStateReplay, Cached: &cached}, nil
}

func (s *LocalIdempotencyStore) Complete(_ context.Context, scope, key, fingerprint string, response CachedHTTPResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[localKey(scope, key)]
	if !ok || rec.fingerprint != fingerprint {
		return nil
	}
	rec.completed = true
	rec.cached = response
	rec.expiresAt = time.Now().Add(ttl)
	return nil
}

func (s *LocalIdempotencyStore) Abort(_ context.Context, scope, key, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := localKey(scope, key)
	rec, ok := s.records[k]
	if ok && !rec.completed && rec.fingerprint == fingerprint {
		delete(s.records, k)
	}
	return nil
}
