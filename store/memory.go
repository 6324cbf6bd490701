package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/strangelove-ventures/cctp-orchestrator/types"
)

// MemoryStore keeps transfers in process memory. Records are cloned on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	transfers map[string]*types.TransferState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{transfers: make(map[string]*types.TransferState)}
}

func (m *MemoryStore) Create(_ context.Context, st *types.TransferState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transfers[st.ID]; ok {
		return types.NewTransferError(types.CodeTransferExists, "transfer %s already exists", st.ID)
	}
	m.transfers[st.ID] = st.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*types.TransferState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.transfers[id]
	if !ok {
		return nil, notFound(id)
	}
	return st.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, st *types.TransferState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transfers[st.ID]; !ok {
		return notFound(st.ID)
	}
	m.transfers[st.ID] = st.Clone()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*types.TransferState, error) {
	m.mu.RLock()
	out := make([]*types.TransferState, 0, len(m.transfers))
	for _, st := range m.transfers {
		out = append(out, st.Clone())
	}
	m.mu.RUnlock()
	sortByCreated(out)
	return out, nil
}

func (m *MemoryStore) DeleteTerminal(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, st := range m.transfers {
		if st.Stage.Terminal() && st.Updated.Before(cutoff) {
			delete(m.transfers, id)
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }

func notFound(id string) error {
	return types.NewTransferError(types.CodeTransferNotFound, "transfer %s not found", id)
}

func sortByCreated(states []*types.TransferState) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].Created.Equal(states[j].Created) {
			return states[i].ID < states[j].ID
		}
		return states[i].Created.Before(states[j].Created)
	})
}
