// Package id implements the process-wide, typed identifier interning
// store: a pair (internal uint64, external string) per namespace, with
// internals dense and assigned in insertion order so that a parallel
// run deterministically reproduces the same internals on every
// worker, given the same load order.
package id

import (
	"fmt"
	"sync"
)

// Internal is the dense, namespace-local numeric id used for equality
// and hashing everywhere in the hot path.
type Internal = uint64

// namespace holds one type's bidirectional mapping. Reads only need a
// read lock; writes (interning a never-seen string) take the write
// lock. Lazily creating ids on the hot path (e.g. for modes and
// activity types) is explicitly permitted by the spec, so this type
// must be safe to write to concurrently from multiple partition
// workers.
type namespace struct {
	mu       sync.RWMutex
	byString map[string]Internal
	byInt    []string // dense, index == Internal
}

func newNamespace() *namespace {
	return &namespace{byString: make(map[string]Internal)}
}

func (n *namespace) internFor(external string) Internal {
	n.mu.RLock()
	if v, ok := n.byString[external]; ok {
		n.mu.RUnlock()
		return v
	}
	n.mu.RUnlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	// re-check: another goroutine may have interned it while we
	// waited for the write lock.
	if v, ok := n.byString[external]; ok {
		return v
	}
	next := Internal(len(n.byInt))
	n.byInt = append(n.byInt, external)
	n.byString[external] = next
	return next
}

func (n *namespace) externalFor(internal Internal) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if int(internal) >= len(n.byInt) {
		return "", false
	}
	return n.byInt[internal], true
}

func (n *namespace) lookup(external string) (Internal, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.byString[external]
	return v, ok
}

func (n *namespace) len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.byInt)
}

// snapshot returns the externals in internal-id order. Used by the
// file codec in file.go.
func (n *namespace) snapshot() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.byInt))
	copy(out, n.byInt)
	return out
}

// Store is the process-wide interning store. One namespace per type
// name (e.g. "node", "link", "person", "mode", "activity-type"). The
// zero value is not usable; use NewStore.
type Store struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{namespaces: make(map[string]*namespace)}
}

// Global is a process-wide Store instance. Nothing in this package
// reads it implicitly: Of and FromInternal take their store as an
// argument. Workers in different processes (real MPI-style
// deployments) rely on the serialized store file (see file.go) being
// loaded identically everywhere so internals line up.
var Global = NewStore()

func (s *Store) namespaceFor(typ string) *namespace {
	s.mu.RLock()
	ns, ok := s.namespaces[typ]
	s.mu.RUnlock()
	if ok {
		return ns
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.namespaces[typ]; ok {
		return ns
	}
	ns = newNamespace()
	s.namespaces[typ] = ns
	return ns
}

// Intern returns the internal id for external within typ's namespace,
// creating it (in insertion order) if it has never been seen.
func (s *Store) Intern(typ, external string) Internal {
	return s.namespaceFor(typ).internFor(external)
}

// External returns the external string for internal within typ's
// namespace.
func (s *Store) External(typ string, internal Internal) (string, bool) {
	return s.namespaceFor(typ).externalFor(internal)
}

// Lookup returns the internal id for external if it has already been
// interned, without creating it.
func (s *Store) Lookup(typ, external string) (Internal, bool) {
	return s.namespaceFor(typ).lookup(external)
}

// Len returns how many ids have been interned for typ.
func (s *Store) Len(typ string) int {
	return s.namespaceFor(typ).len()
}

// Types returns the namespace names known to the store, in no
// particular order.
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.namespaces))
	for t := range s.namespaces {
		out = append(out, t)
	}
	return out
}

// ID is a typed, interned identifier: the same external string
// interned under different type parameters lands in different
// namespaces and is never comparable across them. The zero value is
// not a valid ID; use Of.
type ID[T any] struct {
	internal Internal
	external string
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

// Of interns external in T's namespace on the given store and returns
// the resulting ID.
func Of[T any](s *Store, external string) ID[T] {
	typ := typeName[T]()
	internal := s.Intern(typ, external)
	return ID[T]{internal: internal, external: external}
}

// FromInternal looks an already-interned ID back up by its internal
// value. Panics if it was never interned — this is a programmer
// error (an internal id is only ever produced by Of/Intern).
func FromInternal[T any](s *Store, internal Internal) ID[T] {
	typ := typeName[T]()
	external, ok := s.External(typ, internal)
	if !ok {
		panic(fmt.Sprintf("id: unknown internal %d in namespace %s", internal, typ))
	}
	return ID[T]{internal: internal, external: external}
}

// Internal returns the dense namespace-local numeric id. Equality and
// hashing must use this, never External().
func (i ID[T]) Internal() Internal { return i.internal }

// External returns the original scenario-file string.
func (i ID[T]) External() string { return i.external }

func (i ID[T]) String() string { return i.external }
