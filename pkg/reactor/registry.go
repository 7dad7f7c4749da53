package reactor

import "sync"

// firstRegistryID keeps registration ids from colliding with stdin/stdout/
// stderr, per spec §4.9: "never collide with 0/1/2".
const firstRegistryID = 3

// Registry hands out connection ids from a freelist so ids stay stable
// for user callbacks across the life of a connection and are reused only
// after a full unregister/register cycle.
type Registry struct {
	mu    sync.Mutex
	free  []int64
	next  int64
	conns map[int64]*Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{next: firstRegistryID, conns: make(map[int64]*Conn)}
}

// Register assigns c an id and makes it visible to Get.
func (r *Registry) Register(c *Conn) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var id int64
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		id = r.next
		r.next++
	}
	c.ID = id
	r.conns[id] = c
	return id
}

// Unregister removes id from the registry and returns it to the freelist.
func (r *Registry) Unregister(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		return
	}
	delete(r.conns, id)
	r.free = append(r.free, id)
}

// Get looks up a connection by id.
func (r *Registry) Get(id int64) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	return c, ok
}

// Len reports the number of currently registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
