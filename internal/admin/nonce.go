package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Nonce actions.
const (
	ActionSettings = "settings"
	ActionAjax     = "ajax"
)

// NonceManager issues tokens bound to an action. A token stays valid for
// its TTL and may be presented more than once.
type NonceManager struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	tokens map[string]nonceEntry
}

type nonceEntry struct {
	action  string
	expires time.Time
}

// NewNonceManager creates a manager whose tokens expire after ttl.
func NewNonceManager(ttl time.Duration) *NonceManager {
	return &NonceManager{
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]nonceEntry),
	}
}

// Issue returns a fresh token for action.
func (n *NonceManager) Issue(action string) string {
	token := uuid.NewString()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sweepLocked()
	n.tokens[token] = nonceEntry{action: action, expires: n.now().Add(n.ttl)}
	return token
}

// Verify reports whether token was issued for action and has not expired.
func (n *NonceManager) Verify(action, token string) bool {
	if token == "" {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.tokens[token]
	if !ok {
		return false
	}
	if !n.now().Before(e.expires) {
		delete(n.tokens, token)
		return false
	}
	return e.action == action
}

func (n *NonceManager) sweepLocked() {
	now := n.now()
	for token, e := range n.tokens {
		if !now.Before(e.expires) {
			delete(n.tokens, token)
		}
	}
}
