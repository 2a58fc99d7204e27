// Package registry maps user identities to their live transport connections.
// A user may hold several connections at once (multiple devices or tabs);
// the user counts as online while at least one connection remains.
package registry

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

type Registry struct {
	// userID -> set of connection IDs
	conns map[string]mapset.Set[string]

	// connection ID -> owning userID
	owners map[string]string

	mu sync.RWMutex
}

func New() *Registry {
	return &Registry{
		conns:  make(map[string]mapset.Set[string]),
		owners: make(map[string]string),
	}
}

// Register records connID as belonging to userID. It returns true when this
// was the user's first live connection (offline -> online transition).
// Registering the same connection twice is a no-op.
func (r *Registry) Register(userID, connID string) bool {
	if userID == "" || connID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = mapset.NewThreadUnsafeSet[string]()
		r.conns[userID] = set
	}
	set.Add(connID)
	r.owners[connID] = userID

	return !ok
}

// Unregister removes connID from its owner's set. It returns the owning
// userID and whether this was the user's last connection (online -> offline
// transition). Unknown connection IDs are a silent no-op.
func (r *Registry) Unregister(connID string) (userID string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[connID]
	if !ok {
		return "", false
	}
	delete(r.owners, connID)

	set, ok := r.conns[userID]
	if !ok {
		return userID, false
	}
	set.Remove(connID)
	if set.Cardinality() == 0 {
		delete(r.conns, userID)
		return userID, true
	}

	return userID, false
}

// ConnectionsFor returns every live connection ID owned by userID. Unknown
// or offline users yield an empty slice, never an error.
func (r *Registry) ConnectionsFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.conns[userID]
	if !ok {
		return nil
	}
	return set.ToSlice()
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[userID]
	return ok
}

// Owner returns the userID a connection was registered under, if any.
func (r *Registry) Owner(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.owners[connID]
	return userID, ok
}

// Online returns the sorted list of online user IDs.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}
