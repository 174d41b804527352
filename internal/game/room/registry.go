package room

import (
	"sync"

	"github.com/scrawl-game/scrawl/internal/game/words"
)

// Registry is the process-wide mapping from room identifier to its single
// live Room. Rooms are created lazily on first reference and deregistered
// once their roster empties. All methods are safe for concurrent use.
type Registry struct {
	words   *words.Bank
	winning int

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry creates an empty Registry.
//
// Precondition: bank must be non-nil; winningScore must be >= 1.
func NewRegistry(bank *words.Bank, winningScore int) *Registry {
	return &Registry{
		words:   bank,
		winning: winningScore,
		rooms:   make(map[string]*Room),
	}
}

// GetOrCreate returns the Room for roomID, constructing and registering an
// empty one if none exists. Racing calls for the same unknown roomID all
// observe the one Room created.
func (g *Registry) GetOrCreate(roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rm, ok := g.rooms[roomID]; ok {
		return rm
	}
	rm := newRoom(roomID, g.words, g.winning)
	g.rooms[roomID] = rm
	return rm
}

// Join resolves the Room for roomID, creating it if absent, and applies
// the membership transition in one step. Holding the registry lock across
// the transition closes the window in which a concurrent Remove could
// deregister the room between resolution and the roster insert, stranding
// a populated room outside the registry.
//
// Postcondition: The returned plan's room is registered and non-empty, so
// a Remove racing this call declines.
func (g *Registry) Join(roomID, connID, playerID, label string) Plan {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		rm = newRoom(roomID, g.words, g.winning)
		g.rooms[roomID] = rm
	}
	return rm.Join(connID, playerID, label)
}

// Get returns the Room for roomID, or nil if none is registered.
func (g *Registry) Get(roomID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rooms[roomID]
}

// Remove deregisters the Room for roomID. A room that has gained a
// participant since the caller observed it empty is left registered;
// an absent roomID is a no-op.
func (g *Registry) Remove(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm, ok := g.rooms[roomID]
	if !ok {
		return
	}
	if !rm.Empty() {
		return
	}
	delete(g.rooms, roomID)
}

// Count returns the number of registered rooms.
func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
