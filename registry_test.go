package wiregen

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/wiregen/wiregen/internal/gen"
)

func TestInternRunsBuilderOnce(t *testing.T) {
	r := NewRegistry()
	var calls int
	build := func(w *gen.Writer) error {
		calls++
		w.W("func serializeTestThing() {}")
		return nil
	}
	h1, err := r.Intern("serializers", "serializeTestThing", build)
	if err != nil {
		t.Fatalf("first intern: %v", err)
	}
	h2, err := r.Intern("serializers", "serializeTestThing", build)
	if err != nil {
		t.Fatalf("second intern: %v", err)
	}
	if calls != 1 {
		t.Fatalf("builder ran %d times, want 1", calls)
	}
	if h1 != h2 {
		t.Fatalf("handles differ: %v vs %v", h1, h2)
	}
	if fmt.Sprintf("%s", h1) != "serializeTestThing" {
		t.Fatalf("handle should format as its name, got %s", h1)
	}
}

func TestInternConcurrent(t *testing.T) {
	r := NewRegistry()
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Intern("deserializers", "parseTestThing", func(w *gen.Writer) error {
				calls.Add(1)
				w.W("func parseTestThing() {}")
				return nil
			})
			if err != nil {
				t.Errorf("intern: %v", err)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Fatalf("builder ran %d times under contention, want 1", n)
	}
	if r.Len() != 1 {
		t.Fatalf("want 1 entry, got %d", r.Len())
	}
}

func TestInternReentrant(t *testing.T) {
	r := NewRegistry()
	_, err := r.Intern("serializers", "serializeOuter", func(w *gen.Writer) error {
		// A recursive shape asks for its own key while its body is being
		// built; the handle must come back without blocking.
		h, err := r.Intern("serializers", "serializeOuter", func(w *gen.Writer) error {
			t.Error("inner builder must not run")
			return nil
		})
		if err != nil {
			return err
		}
		w.W("func %s() {", h)
		w.W("%s()", h)
		w.W("}")
		return nil
	})
	if err != nil {
		t.Fatalf("reentrant intern: %v", err)
	}
}

func TestInternPoisonsOnlyFailedEntry(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	if _, err := r.Intern("serializers", "serializeBad", func(w *gen.Writer) error { return boom }); err == nil {
		t.Fatalf("want builder error")
	}
	// The poisoned key keeps failing without re-running the builder.
	if _, err := r.Intern("serializers", "serializeBad", func(w *gen.Writer) error {
		t.Error("poisoned builder must not re-run")
		return nil
	}); err == nil {
		t.Fatalf("want cached error from poisoned entry")
	}
	if _, err := r.Intern("serializers", "serializeGood", func(w *gen.Writer) error {
		w.W("func serializeGood() {}")
		return nil
	}); err != nil {
		t.Fatalf("unrelated entry affected: %v", err)
	}
	mods := r.Flush()
	if len(mods["serializers"]) != 1 || mods["serializers"][0].Name != "serializeGood" {
		t.Fatalf("flush should drop poisoned entries: %v", mods["serializers"])
	}
}

func TestFlushGroupsAndSorts(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"serializeB", "serializeA"} {
		name := name
		if _, err := r.Intern("serializers", name, func(w *gen.Writer) error {
			w.W("func %s() {}", name)
			return nil
		}); err != nil {
			t.Fatalf("intern %s: %v", name, err)
		}
	}
	if _, err := r.Intern("deserializers", "parseA", func(w *gen.Writer) error {
		w.W("func parseA() {}")
		return nil
	}); err != nil {
		t.Fatalf("intern parseA: %v", err)
	}
	mods := r.Flush()
	ser := mods["serializers"]
	if len(ser) != 2 || ser[0].Name != "serializeA" || ser[1].Name != "serializeB" {
		t.Fatalf("serializers not sorted: %v", ser)
	}
	if len(mods["deserializers"]) != 1 {
		t.Fatalf("deserializers missing: %v", mods)
	}
}
