package admin

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuseinfotech/send2crm/internal/notice"
)

// flashStore keeps the notices of a commit until the redirected page
// request picks them up.
type flashStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]flashEntry
}

type flashEntry struct {
	notices []notice.Notice
	expires time.Time
}

func newFlashStore(ttl time.Duration) *flashStore {
	return &flashStore{ttl: ttl, now: time.Now, entries: make(map[string]flashEntry)}
}

// Put stores notices and returns the id to redeem them with. Nothing is
// stored for an empty list.
func (f *flashStore) Put(notices []notice.Notice) string {
	if len(notices) == 0 {
		return ""
	}
	id := uuid.NewString()
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	for k, e := range f.entries {
		if !now.Before(e.expires) {
			delete(f.entries, k)
		}
	}
	f.entries[id] = flashEntry{notices: notices, expires: now.Add(f.ttl)}
	return id
}

// Take returns and forgets the notices stored under id.
func (f *flashStore) Take(id string) []notice.Notice {
	if id == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil
	}
	delete(f.entries, id)
	if !f.now().Before(e.expires) {
		return nil
	}
	return e.notices
}
