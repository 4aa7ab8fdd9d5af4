package protocol

import "encoding/json"

// HandlerFunc processes one inbound event. The session argument is typed as
// any so the registry can serve both the server (gameserver session) and the
// client (replica client) dispatch tables; the registering side asserts the
// concrete type.
type HandlerFunc func(sess any, data json.RawMessage)

// Registry maps event names to handlers. Registration happens once at boot;
// dispatch is read-only after that, so no locking is needed.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

func (r *Registry) Register(event string, fn HandlerFunc) {
	r.handlers[event] = fn
}

// Dispatch routes one event to its handler. Unknown event names are ignored:
// garbage input must never crash or disconnect a session.
func (r *Registry) Dispatch(event string, sess any, data json.RawMessage) {
	if fn, ok := r.handlers[event]; ok {
		fn(sess, data)
	}
}
