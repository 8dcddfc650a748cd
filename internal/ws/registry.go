package ws

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Registry maps authenticated users to their live connections. A user may
// hold several at once (multiple tabs or devices). It is shared by every
// connection goroutine, so all access goes through the mutex.
//
// Instantiated once per process and injected where needed; never a package
// global.
type Registry struct {
	mu sync.Mutex
	// userID -> connID -> Conn
	conns map[string]map[string]Conn
	// connID -> userID, for O(1) unregister
	owners map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]map[string]Conn),
		owners: make(map[string]string),
	}
}

// Register binds a connection to a user. Calling it twice for the same
// connection is a no-op.
func (r *Registry) Register(userID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[c.ID()]; ok {
		return
	}
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[string]Conn)
	}
	r.conns[userID][c.ID()] = c
	r.owners[c.ID()] = userID

	log.WithFields(log.Fields{
		"userID": userID,
		"connID": c.ID(),
		"total":  len(r.conns[userID]),
	}).Info("Connection registered")
}

// Unregister removes a connection from whatever user it was bound to.
// Unknown connections are a benign no-op: a socket closing in a race with a
// dispatch is expected, not exceptional.
func (r *Registry) Unregister(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[c.ID()]
	if !ok {
		return
	}
	delete(r.owners, c.ID())
	if set := r.conns[userID]; set != nil {
		delete(set, c.ID())
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}

	log.WithFields(log.Fields{
		"userID": userID,
		"connID": c.ID(),
	}).Info("Connection unregistered")
}

// ConnectionsFor returns a snapshot of the user's live connections. Callers
// iterate the snapshot freely while connections churn underneath.
func (r *Registry) ConnectionsFor(userID string) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Len reports the number of live connections across all users.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
