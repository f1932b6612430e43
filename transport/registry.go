package transport

// Registry maps login names to their currently-connected Client (spec
// §4.3). It must only be touched from the owning Factory's event-loop
// goroutine — Server hands login registration off onto that loop rather
// than mutating it directly from an accept goroutine.
type Registry struct {
	clients map[string]*Client
	logf    func(string, ...any)
}

// NewRegistry builds an empty Registry.
func NewRegistry(logf func(string, ...any)) *Registry {
	return &Registry{clients: make(map[string]*Client), logf: logf}
}

// Register installs c under its login, evicting and disconnecting any
// prior holder of that login (spec §4.3 "Login collisions", scenario 6).
func (r *Registry) Register(c *Client) {
	if prev, ok := r.clients[c.Login]; ok {
		if r.logf != nil {
			r.logf("transport: login %q reconnected, evicting previous session %s", c.Login, prev.ID)
		}
		prev.disconnect("evicted by a new login with the same name")
	}
	r.clients[c.Login] = c
}

// Unregister removes c if it is still the active holder of its login
// (a disconnect of a session that was already evicted is a no-op).
func (r *Registry) Unregister(c *Client) {
	if cur, ok := r.clients[c.Login]; ok && cur == c {
		delete(r.clients, c.Login)
	}
}

// Lookup returns the active Client for login, if any.
func (r *Registry) Lookup(login string) (*Client, bool) {
	c, ok := r.clients[login]
	return c, ok
}

// All returns every currently-registered Client, in no particular order.
func (r *Registry) All() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
