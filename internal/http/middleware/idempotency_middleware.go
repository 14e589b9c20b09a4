package middleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/observability"
	"transport-pricing-service/internal/security"
	"transport-pricing-service/internal/service"
)

const (
	maxIdempotentBodyBytes = 1 << 20
	claimPollInterval      = 100 * time.Millisecond
)

type IdempotencyConfig struct {
	TTL         time.Duration
	WaitTimeout time.Duration
	RequireKey  bool
}

type Idempotency struct {
	store  service.IdempotencyStore
	cfg    IdempotencyConfig
	logger *slog.Logger
}

func NewIdempotency(store service.IdempotencyStore, cfg IdempotencyConfig, logger *slog.Logger) *Idempotency {
	return &Idempotency{store: store, cfg: cfg, logger: logger}
}

// captureWriter buffers the downstream response so it can be persisted as the
// replay snapshot before reaching the client.
type captureWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header), status: http.StatusOK}
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) WriteHeader(status int) { c.status = status }

func (c *captureWriter) Write(p []byte) (int, error) { return c.body.Write(p) }

// Middleware makes mutating requests safe to retry. Failure policy is
// explicit: only 2xx/3xx outcomes are persisted for replay; anything else
// aborts the claim so the caller's retry re-executes the mutation. A claim
// held in_progress longer than WaitTimeout is treated as non-duplicate and
// the request executes unrecorded.
func (i *Idempotency) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				if i.cfg.RequireKey {
					response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing Idempotency-Key header", nil)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyBytes+1))
			if err != nil {
				response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "unreadable request body", nil)
				return
			}
			if len(body) > maxIdempotentBodyBytes {
				response.Error(w, r, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "request body too large for idempotent replay", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := idempotencyScope(r)
			fingerprint := security.HashRequestFingerprint(r.Method, r.URL.Path, body)

			begin, err := i.store.Begin(r.Context(), scope, key, fingerprint, i.cfg.TTL)
			if err != nil {
				i.logger.Error("idempotency begin failed, executing unrecorded", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			switch begin.State {
			case service.IdempotencyStateReplay:
				observability.RecordIdempotencyOutcome(r.Context(), "replay")
				i.writeCached(w, begin.Cached)
				return
			case service.IdempotencyStateConflict:
				observability.RecordIdempotencyOutcome(r.Context(), "conflict")
				response.Error(w, r, http.StatusConflict, "CONFLICT", "Idempotency-Key reused with a different request", nil)
				return
			case service.IdempotencyStateInProgress:
				cached, claimed := i.awaitWinner(r, scope, key, fingerprint)
				if cached != nil {
					observability.RecordIdempotencyOutcome(r.Context(), "replay")
					i.writeCached(w, cached)
					return
				}
				if !claimed {
					// Bounded wait elapsed: treat as non-duplicate and execute
					// without recording.
					observability.RecordIdempotencyOutcome(r.Context(), "wait_timeout")
					next.ServeHTTP(w, r)
					return
				}
				// The winner aborted and our poll re-claimed the key; fall
				// through and execute as the recorded owner.
			}

			observability.RecordIdempotencyOutcome(r.Context(), "first_execution")
			i.executeRecorded(w, r, next, scope, key, fingerprint)
		})
	}
}

func (i *Idempotency) executeRecorded(w http.ResponseWriter, r *http.Request, next http.Handler, scope, key, fingerprint string) {
	capture := newCaptureWriter()

	// A panicking handler is a failed mutation: release the claim before the
	// panic continues to the recoverer, so the caller's retry re-executes
	// instead of stalling on a dangling in_progress record.
	defer func() {
		if rec := recover(); rec != nil {
			if err := i.store.Abort(r.Context(), scope, key, fingerprint); err != nil {
				i.logger.Error("idempotency abort failed", "error", err, "scope", scope)
			}
			panic(rec)
		}
	}()

	next.ServeHTTP(capture, r)

	if capture.status < 200 || capture.status >= 400 {
		if err := i.store.Abort(r.Context(), scope, key, fingerprint); err != nil {
			i.logger.Error("idempotency abort failed", "error", err, "scope", scope)
		}
	} else {
		snapshot := service.CachedHTTPResponse{
			StatusCode:  capture.status,
			ContentType: capture.header.Get("Content-Type"),
			Body:        capture.body.Bytes(),
		}
		if err := i.store.Complete(r.Context(), scope, key, fingerprint, snapshot, i.cfg.TTL); err != nil {
			i.logger.Error("idempotency complete failed", "error", err, "scope", scope)
		}
	}

	copyHeader(w.Header(), capture.header)
	w.WriteHeader(capture.status)
	_, _ = w.Write(capture.body.Bytes())
}

// awaitWinner polls for the claim holder's snapshot. It returns the snapshot
// when the winner completes, or claimed=true when the winner aborted and this
// request took over the claim.
func (i *Idempotency) awaitWinner(r *http.Request, scope, key, fingerprint string) (*service.CachedHTTPResponse, bool) {
	deadline := time.Now().Add(i.cfg.WaitTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-r.Context().Done():
			return nil, false
		case <-time.After(claimPollInterval):
		}
		begin, err := i.store.Begin(r.Context(), scope, key, fingerprint, i.cfg.TTL)
		if err != nil {
			return nil, false
		}
		switch begin.State {
		case service.IdempotencyStateReplay:
			return begin.Cached, false
		case service.IdempotencyStateNew:
			return nil, true
		}
	}
	return nil, false
}

func (i *Idempotency) writeCached(w http.ResponseWriter, cached *service.CachedHTTPResponse) {
	if cached == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if cached.ContentType != "" {
		w.Header().Set("Content-Type", cached.ContentType)
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

// idempotencyScope keys records per principal and endpoint so the same token
// on a different route or from a different caller is a distinct record.
func idempotencyScope(r *http.Request) string {
	principalID := uint(0)
	if p, ok := PrincipalFromContext(r.Context()); ok {
		principalID = p.UserID
	}
	return fmt.Sprintf("%d:%s %s", principalID, r.Method, r.URL.Path)
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func copyHeader(dst, src http.Header) {
	for k, values := range src {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}
