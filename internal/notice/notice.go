// Package notice collects user-visible settings messages during one request.
package notice

import (
	"context"
	"sync"
)

// Type is the severity of a notice, matching the admin CSS classes.
type Type string

const (
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeSuccess Type = "success"
	TypeInfo    Type = "info"
)

// Notice is a single message attached to a setting.
type Notice struct {
	Setting string `json:"setting"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    Type   `json:"type"`
}

// List is a request-scoped, append-only collection of notices.
// The zero value is ready to use.
type List struct {
	mu      sync.Mutex
	notices []Notice
}

// Add appends a notice.
func (l *List) Add(setting, code, message string, typ Type) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, Notice{Setting: setting, Code: code, Message: message, Type: typ})
}

// All returns a copy of the collected notices in insertion order.
func (l *List) All() []Notice {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notice, len(l.notices))
	copy(out, l.notices)
	return out
}

// For returns the notices attached to setting.
func (l *List) For(setting string) []Notice {
	var out []Notice
	for _, n := range l.All() {
		if n.Setting == setting {
			out = append(out, n)
		}
	}
	return out
}

// HasErrors reports whether any error notice was recorded.
func (l *List) HasErrors() bool {
	for _, n := range l.All() {
		if n.Type == TypeError {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithList attaches l to ctx.
func WithList(ctx context.Context, l *List) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the list attached to ctx, or nil. Add on a nil list is a no-op,
// so callers may record notices without checking.
func FromContext(ctx context.Context) *List {
	l, _ := ctx.Value(contextKey{}).(*List)
	return l
}

// Add records a notice on the list carried by ctx, if any.
func Add(ctx context.Context, setting, code, message string, typ Type) {
	FromContext(ctx).Add(setting, code, message, typ)
}
