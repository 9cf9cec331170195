package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type sessionKey struct{}

type writeKind int

const (
	writeSet writeKind = iota
	writeCreate
	writeDelete
)

type pendingWrite struct {
	ref   *firestore.DocumentRef
	kind  writeKind
	value any
}

// Session adapts a Firestore transaction to interleaved reads and writes. Reads are cached per
// document and observe earlier writes of the same session; writes are buffered and applied when
// the transaction function returns, so every transactional read precedes every write.
type Session struct {
	tx     *firestore.Transaction
	reads  map[string]*firestore.DocumentSnapshot
	writes map[string]*pendingWrite
	order  []string
}

func newSession(tx *firestore.Transaction) *Session {
	return &Session{
		tx:     tx,
		reads:  make(map[string]*firestore.DocumentSnapshot),
		writes: make(map[string]*pendingWrite),
	}
}

// SessionFrom returns the session bound to ctx, if any.
func SessionFrom(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// RunInSession executes fn inside a transaction with a session on the context. Calls made
// with a context that already carries a session join it. fn may be replayed when Firestore
// aborts the transaction because of contention.
func (p *Provider) RunInSession(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error {
	if fn == nil {
		return WrapError("session", errors.New("firestore: session function is nil"))
	}
	if SessionFrom(ctx) != nil {
		return fn(ctx)
	}
	return p.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		session := newSession(tx)
		if err := fn(context.WithValue(ctx, sessionKey{}, session)); err != nil {
			return err
		}
		return session.flush()
	}, opts...)
}

// GetDoc decodes the document at ref. Inside a session the read is transactional and sees the
// session's pending writes; outside it reads the latest committed version. The boolean reports
// whether the document exists.
func GetDoc[T any](ctx context.Context, ref *firestore.DocumentRef) (T, bool, error) {
	var zero T
	session := SessionFrom(ctx)
	if session == nil {
		snap, err := ref.Get(ctx)
		if status.Code(err) == codes.NotFound {
			return zero, false, nil
		}
		if err != nil {
			return zero, false, WrapError("get "+ref.Path, err)
		}
		return decodeSnapshot[T](snap)
	}

	if pending, ok := session.writes[ref.Path]; ok {
		if pending.kind == writeDelete {
			return zero, false, nil
		}
		value, ok := pending.value.(T)
		if !ok {
			return zero, false, fmt.Errorf("firestore: pending write for %s has type %T", ref.Path, pending.value)
		}
		return value, true, nil
	}

	snap, cached := session.reads[ref.Path]
	if !cached {
		var err error
		snap, err = session.tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			snap = nil
		} else if err != nil {
			return zero, false, WrapError("get "+ref.Path, err)
		}
		session.reads[ref.Path] = snap
	}
	if snap == nil || !snap.Exists() {
		return zero, false, nil
	}
	return decodeSnapshot[T](snap)
}

func decodeSnapshot[T any](snap *firestore.DocumentSnapshot) (T, bool, error) {
	var value T
	if err := snap.DataTo(&value); err != nil {
		return value, false, fmt.Errorf("firestore: decode %s: %w", snap.Ref.Path, err)
	}
	return value, true, nil
}

// Set buffers an overwrite of the document.
func (s *Session) Set(ref *firestore.DocumentRef, value any) {
	s.record(ref, writeSet, value)
}

// Create buffers a create that fails at commit when the document already exists.
func (s *Session) Create(ref *firestore.DocumentRef, value any) {
	s.record(ref, writeCreate, value)
}

// Delete buffers a deletion of the document.
func (s *Session) Delete(ref *firestore.DocumentRef) {
	s.record(ref, writeDelete, nil)
}

func (s *Session) record(ref *firestore.DocumentRef, kind writeKind, value any) {
	if existing, ok := s.writes[ref.Path]; ok {
		// A create followed by further writes stays a create so the precondition still applies;
		// a create over a pending delete becomes a plain set.
		switch {
		case existing.kind == writeCreate && kind == writeSet:
			kind = writeCreate
		case existing.kind == writeDelete && kind == writeCreate:
			kind = writeSet
		}
		existing.kind = kind
		existing.value = value
		return
	}
	s.writes[ref.Path] = &pendingWrite{ref: ref, kind: kind, value: value}
	s.order = append(s.order, ref.Path)
}

func (s *Session) flush() error {
	for _, path := range s.order {
		pending := s.writes[path]
		var err error
		switch pending.kind {
		case writeSet:
			err = s.tx.Set(pending.ref, pending.value)
		case writeCreate:
			err = s.tx.Create(pending.ref, pending.value)
		case writeDelete:
			err = s.tx.Delete(pending.ref)
		}
		if err != nil {
			return WrapError("flush "+path, err)
		}
	}
	return nil
}
