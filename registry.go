package wiregen

import (
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/wiregen/wiregen/internal/gen"
)

// FuncHandle is a stable reference to an interned generated function, usable
// as a call target in other generated code.
type FuncHandle struct {
	Module string
	Name   string
}

// String returns the call-target name.
func (h FuncHandle) String() string { return h.Name }

// BuildFunc materializes the body of one generated function. It runs at most
// once per (module, name) key for the lifetime of a Registry.
type BuildFunc func(w *gen.Writer) error

type funcKey struct {
	module string
	name   string
}

const (
	stateBuilding int32 = iota
	stateDone
	stateFailed
)

type regEntry struct {
	state atomic.Int32
	fn    gen.Func
	err   error
}

// Registry deduplicates generated helper functions. It grows monotonically
// during a single generation run and is flushed once at the end. Interning is
// safe for concurrent use, and safe for re-entrant use: a builder generating
// a recursive shape may request its own key and receives the handle
// immediately, since the name is deterministic before the body exists.
type Registry struct {
	entries *xsync.MapOf[funcKey, *regEntry]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: xsync.NewMapOf[funcKey, *regEntry]()}
}

// Intern returns a handle for (module, name). The caller that first inserts
// the key runs build on a fresh writer, exactly once; everyone else gets the
// handle without waiting. Two requests that would produce byte-identical code
// must use the same key; callers derive names deterministically from the
// shape/member path and protocol context, never from counters, so repeated
// runs are byte-for-byte reproducible.
//
// A builder error poisons only its own entry: the failed function is dropped
// from Flush and the error surfaces to the owning caller; unrelated keys are
// unaffected. A concurrent or re-entrant caller may have embedded a call to
// a handle whose builder later fails; every such failure also surfaces as an
// error from the Intern that ran the builder, so a run that produced a
// dangling reference never reports overall success (Generate returns the
// flushed artifacts together with a non-nil error, and callers must treat
// them as partial).
func (r *Registry) Intern(module, name string, build BuildFunc) (FuncHandle, error) {
	key := funcKey{module: module, name: name}
	handle := FuncHandle{Module: module, Name: name}

	entry, loaded := r.entries.LoadOrCompute(key, func() *regEntry { return &regEntry{} })
	if loaded {
		if entry.state.Load() == stateFailed {
			return FuncHandle{}, entry.err
		}
		return handle, nil
	}

	w := gen.NewWriter()
	if err := build(w); err != nil {
		entry.err = Issues{{Code: CodeGeneratorFailure, Message: "function builder failed: " + name, Cause: err}}
		entry.state.Store(stateFailed)
		return FuncHandle{}, entry.err
	}
	entry.fn = gen.Func{Module: module, Name: name, Body: w.String(), Imports: w.Imports()}
	entry.state.Store(stateDone)
	return handle, nil
}

// Len reports the number of interned keys, including poisoned ones.
func (r *Registry) Len() int { return r.entries.Size() }

// Flush returns every successfully materialized function grouped by module.
// Functions within a module are sorted by name so output is deterministic
// even when operations were generated concurrently. Flush does not validate
// cross-references: a body may name a function whose entry was poisoned, and
// the builder failure that caused it has already been reported through
// Intern — rendering a flushed module after generation reported an error is
// on the caller.
func (r *Registry) Flush() map[string][]gen.Func {
	out := map[string][]gen.Func{}
	r.entries.Range(func(k funcKey, e *regEntry) bool {
		if e.state.Load() == stateDone {
			out[k.module] = append(out[k.module], e.fn)
		}
		return true
	})
	for _, fns := range out {
		sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	}
	return out
}
