// Package rooms scopes broadcasts to a two-party conversation. The pair key
// is derived from the participant IDs alone, so both sides compute the same
// room no matter who joins first.
package rooms

import (
	"sort"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

const separator = "_"

// PairKey returns the deterministic, order-independent key for a and b.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, separator)
}

// Index tracks which connections joined which rooms.
type Index struct {
	members map[string]mapset.Set[string] // room -> connection IDs
	joined  map[string]mapset.Set[string] // connection ID -> rooms

	mu sync.RWMutex
}

func NewIndex() *Index {
	return &Index{
		members: make(map[string]mapset.Set[string]),
		joined:  make(map[string]mapset.Set[string]),
	}
}

func (i *Index) Join(room, connID string) {
	if room == "" || connID == "" {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	set, ok := i.members[room]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		i.members[room] = set
	}
	set.Add(connID)

	rooms, ok := i.joined[connID]
	if !ok {
		rooms = mapset.NewThreadUnsafeSet[string]()
		i.joined[connID] = rooms
	}
	rooms.Add(room)
}

// Members returns the connection IDs currently in room.
func (i *Index) Members(room string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	set, ok := i.members[room]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

// Evict removes a connection from every room it joined. Called on
// disconnect; unknown connections are a no-op.
func (i *Index) Evict(connID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	rooms, ok := i.joined[connID]
	if !ok {
		return
	}
	delete(i.joined, connID)

	for _, room := range rooms.ToSlice() {
		set, ok := i.members[room]
		if !ok {
			continue
		}
		set.Remove(connID)
		if set.Cardinality() == 0 {
			delete(i.members, room)
		}
	}
}
