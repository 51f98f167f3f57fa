package state

import (
	"errors"

	"badgeforge/storage"
)

// Transition is a buffered overlay over a backing store. Reads fall through
// to the parent until a key has been written; writes are staged in memory
// and only reach the parent on Commit. Discarding the transition without
// committing is the rollback path for an aborted settlement, which is how
// the engine guarantees that a failed call leaves no observable state.
type Transition struct {
	parent KV
	order  []string
	writes map[string][]byte
}

// Begin opens a transition over the manager's backing store and returns a
// manager view that stages every write into it.
func (m *Manager) Begin() (*Manager, *Transition) {
	txn := &Transition{
		parent: m.kv,
		writes: make(map[string][]byte),
	}
	return NewManager(txn), txn
}

func (t *Transition) Put(key []byte, value []byte) error {
	k := string(key)
	if _, seen := t.writes[k]; !seen {
		t.order = append(t.order, k)
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	t.writes[k] = buf
	return nil
}

func (t *Transition) Get(key []byte) ([]byte, error) {
	if value, ok := t.writes[string(key)]; ok {
		return value, nil
	}
	return t.parent.Get(key)
}

func (t *Transition) Has(key []byte) (bool, error) {
	if _, ok := t.writes[string(key)]; ok {
		return true, nil
	}
	has, err := t.parent.Has(key)
	if err != nil && errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return has, err
}

// Commit flushes the staged writes to the parent in write order. A partial
// flush error is returned as-is; callers treat it as fatal since the store
// below is expected to be durable.
func (t *Transition) Commit() error {
	for _, k := range t.order {
		if err := t.parent.Put([]byte(k), t.writes[k]); err != nil {
			return err
		}
	}
	t.order = nil
	t.writes = make(map[string][]byte)
	return nil
}
