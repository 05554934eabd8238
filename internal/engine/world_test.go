package engine

import (
	"testing"

	"github.com/bryanchriswhite/nativeshot/internal/handle"
)

func TestSpawnNeverReusesIDs(t *testing.T) {
	w := NewWorld()
	a := w.Spawn()
	b := w.Spawn()
	if a == b {
		t.Fatalf("spawn returned duplicate id %v", a)
	}
	w.Despawn(b)
	c := w.Spawn()
	if c == b || c == a {
		t.Fatalf("despawned id reused: %v", c)
	}
	if w.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", w.Len())
	}
}

func TestDespawnClearsComponents(t *testing.T) {
	w := NewWorld()
	e := w.SpawnWindow(Window{Title: "demo"}, handle.FromXcb(7))

	if !w.Windows.Has(e) || !w.Handles.Has(e) {
		t.Fatalf("expected window components on %v", e)
	}
	if !w.Despawn(e) {
		t.Fatalf("despawn of live entity reported false")
	}
	if w.Windows.Has(e) || w.Handles.Has(e) {
		t.Fatalf("components survived despawn")
	}
	if w.Despawn(e) {
		t.Fatalf("second despawn reported true")
	}
}

func TestSpawnWindowWithoutHandle(t *testing.T) {
	w := NewWorld()
	e := w.SpawnWindow(Window{Title: "headless"}, handle.RawHandle{})
	if w.Handles.Has(e) {
		t.Fatalf("unknown handle should not be attached")
	}
}

func TestStoreInsertRequiresLiveEntity(t *testing.T) {
	w := NewWorld()
	s := NewStore[int](w)
	if s.Insert(Entity(42), 1) {
		t.Fatalf("insert on unknown entity succeeded")
	}
	e := w.Spawn()
	if !s.Insert(e, 1) {
		t.Fatalf("insert on live entity failed")
	}
	if v, ok := s.Get(e); !ok || v != 1 {
		t.Fatalf("Get() = (%d, %v)", v, ok)
	}
}

func TestStoreAdded(t *testing.T) {
	w := NewWorld()
	s := NewStore[string](w)

	a, b, c := w.Spawn(), w.Spawn(), w.Spawn()
	s.Insert(a, "a")
	s.Insert(b, "b")
	s.Insert(a, "a2") // replace, not a new addition
	s.Insert(c, "c")
	w.Despawn(b)

	got := s.Added()
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("Added() = %v, want [%v %v]", got, a, c)
	}
	if again := s.Added(); len(again) != 0 {
		t.Fatalf("Added() not reset: %v", again)
	}

	s.Remove(a)
	s.Insert(a, "back")
	if got := s.Added(); len(got) != 1 || got[0] != a {
		t.Fatalf("re-insert after remove not reported: %v", got)
	}
}

func TestStoreEntitiesSorted(t *testing.T) {
	w := NewWorld()
	s := NewStore[bool](w)
	var want []Entity
	for i := 0; i < 5; i++ {
		e := w.Spawn()
		want = append(want, e)
	}
	for i := len(want) - 1; i >= 0; i-- {
		s.Insert(want[i], true)
	}
	got := s.Entities()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Entities() = %v, want %v", got, want)
		}
	}
	if s.Len() != 5 {
		t.Fatalf("Len() = %d", s.Len())
	}
}
