package identity

import (
	"context"
	"sync"
)

// AccessChecker decides whether a user may open a document.
type AccessChecker interface {
	CanRead(ctx context.Context, userID, documentID string) bool
}

// AllowAll grants every authenticated user access to every document.
type AllowAll struct{}

func (AllowAll) CanRead(context.Context, string, string) bool { return true }

// Grants restricts documents to listed users. Documents nobody was granted
// stay open to everyone.
type Grants struct {
	mu     sync.RWMutex
	grants map[string]map[string]bool
}

func NewGrants() *Grants {
	return &Grants{grants: make(map[string]map[string]bool)}
}

func (g *Grants) Grant(documentID string, userIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	users := g.grants[documentID]
	if users == nil {
		users = make(map[string]bool)
		g.grants[documentID] = users
	}
	for _, id := range userIDs {
		users[id] = true
	}
}

func (g *Grants) Revoke(documentID, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.grants[documentID], userID)
}

func (g *Grants) CanRead(_ context.Context, userID, documentID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	users, ok := g.grants[documentID]
	if !ok {
		return true
	}
	return users[userID]
}
