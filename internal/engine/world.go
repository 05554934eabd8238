// Package engine is a small single-threaded entity world plus the tick loop
// that drives it. All World access happens on the goroutine calling
// App.Tick; other goroutines reach the world only through App.Send.
package engine

import (
	"fmt"
	"sort"

	"github.com/bryanchriswhite/nativeshot/internal/handle"
)

// Entity identifies a record in the World. Ids are allocated monotonically
// and never reused.
type Entity uint64

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%d)", uint64(e))
}

// Window describes a host window entity
type Window struct {
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type componentStore interface {
	remove(Entity) bool
}

// World owns entities and the component stores registered against it
type World struct {
	next   Entity
	alive  map[Entity]struct{}
	stores []componentStore

	Windows *Store[Window]
	Handles *Store[handle.RawHandle]
}

// NewWorld creates an empty world with the window component stores
func NewWorld() *World {
	w := &World{
		alive: make(map[Entity]struct{}),
	}
	w.Windows = NewStore[Window](w)
	w.Handles = NewStore[handle.RawHandle](w)
	return w
}

// Spawn allocates a fresh entity
func (w *World) Spawn() Entity {
	w.next++
	e := w.next
	w.alive[e] = struct{}{}
	return e
}

// Despawn removes the entity and every component attached to it. It
// reports whether the entity was alive.
func (w *World) Despawn(e Entity) bool {
	if _, ok := w.alive[e]; !ok {
		return false
	}
	delete(w.alive, e)
	for _, s := range w.stores {
		s.remove(e)
	}
	return true
}

// Alive reports whether e has been spawned and not despawned
func (w *World) Alive(e Entity) bool {
	_, ok := w.alive[e]
	return ok
}

// Len returns the number of live entities
func (w *World) Len() int {
	return len(w.alive)
}

// SpawnWindow registers a host window with its native handle. A zero
// handle (Kind Unknown) is not attached.
func (w *World) SpawnWindow(win Window, h handle.RawHandle) Entity {
	e := w.Spawn()
	w.Windows.Insert(e, win)
	if h.Kind != handle.Unknown {
		w.Handles.Insert(e, h)
	}
	return e
}

// Store holds one component type keyed by entity. It remembers which
// entities gained the component so a single reader can react to additions.
type Store[T any] struct {
	world *World
	items map[Entity]T
	added []Entity
}

// NewStore creates a store and registers it with w so Despawn clears it
func NewStore[T any](w *World) *Store[T] {
	s := &Store[T]{
		world: w,
		items: make(map[Entity]T),
	}
	w.stores = append(w.stores, s)
	return s
}

// Insert attaches or replaces the component on a live entity
func (s *Store[T]) Insert(e Entity, v T) bool {
	if !s.world.Alive(e) {
		return false
	}
	if _, exists := s.items[e]; !exists {
		s.added = append(s.added, e)
	}
	s.items[e] = v
	return true
}

// Get returns the component for e
func (s *Store[T]) Get(e Entity) (T, bool) {
	v, ok := s.items[e]
	return v, ok
}

// Has reports whether e carries the component
func (s *Store[T]) Has(e Entity) bool {
	_, ok := s.items[e]
	return ok
}

// Remove detaches the component from e
func (s *Store[T]) Remove(e Entity) bool {
	return s.remove(e)
}

func (s *Store[T]) remove(e Entity) bool {
	if _, ok := s.items[e]; !ok {
		return false
	}
	delete(s.items, e)
	return true
}

// Added returns, in insertion order, the entities that gained the
// component since the previous call and still carry it.
func (s *Store[T]) Added() []Entity {
	if len(s.added) == 0 {
		return nil
	}
	out := make([]Entity, 0, len(s.added))
	for _, e := range s.added {
		if _, ok := s.items[e]; ok {
			out = append(out, e)
		}
	}
	s.added = s.added[:0]
	return out
}

// Entities returns all entities carrying the component in ascending order
func (s *Store[T]) Entities() []Entity {
	out := make([]Entity, 0, len(s.items))
	for e := range s.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of entities carrying the component
func (s *Store[T]) Len() int {
	return len(s.items)
}
