package sessions

import (
	"sort"
	"sync"
)

var _ Repo = (*InMemoryRepo)(nil)

type InMemoryRepo struct {
	nodes map[string]Node
	lock  sync.RWMutex
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		nodes: make(map[string]Node),
	}
}

func (r *InMemoryRepo) Get(key string) (Node, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	node, ok := r.nodes[key]
	if !ok {
		return nil, ErrNotFound
	}
	return node, nil
}

func (r *InMemoryRepo) Set(key string, node Node) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.nodes[key] = node
	return nil
}

// Keys returns every stored key in sorted order.
func (r *InMemoryRepo) Keys() ([]string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	keys := make([]string, 0, len(r.nodes))
	for k := range r.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
