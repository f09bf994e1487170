// Package memstore is an in-memory Store, useful for tests and for
// engines that accept losing history across restarts in exchange for
// zero setup.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quantbridge/fixgo/pkg/store"
)

type epochState struct {
	nextIncoming uint32
	nextOutgoing uint32
	outgoing     []store.Message
	lastSendTime time.Time
	hasSendTime  bool
}

// Store keeps one epochState per epoch behind a single mutex. It never
// touches disk.
type Store struct {
	mu     sync.Mutex
	epochs map[string]*epochState
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{epochs: make(map[string]*epochState)}
}

func (s *Store) stateFor(epoch string) *epochState {
	st, ok := s.epochs[epoch]
	if !ok {
		st = &epochState{nextIncoming: 1, nextOutgoing: 1}
		s.epochs[epoch] = st
	}
	return st
}

func (s *Store) StoreOutgoing(_ context.Context, epoch string, msgSeqNum uint32, sendTime time.Time, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(epoch)
	cp := make([]byte, len(payload))
	copy(cp, payload)
	st.outgoing = append(st.outgoing, store.Message{MsgSeqNum: msgSeqNum, Payload: cp})
	st.lastSendTime = sendTime
	st.hasSendTime = true
	return nil
}

func (s *Store) GetSequences(_ context.Context, epoch string) (uint32, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(epoch)
	return st.nextIncoming, st.nextOutgoing, nil
}

func (s *Store) SetSequences(_ context.Context, epoch string, nextIncoming, nextOutgoing uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(epoch)
	st.nextIncoming = nextIncoming
	st.nextOutgoing = nextOutgoing
	return nil
}

// GetPrevMessages restricts to the newest last rows before filtering by
// [beginSeqNo, endSeqNo], matching the bounded-history-window semantics
// of the durable stores.
func (s *Store) GetPrevMessages(_ context.Context, epoch string, beginSeqNo, endSeqNo, last uint32) ([]store.Message, error) {
	s.mu.Lock()
	all := append([]store.Message(nil), s.stateFor(epoch).outgoing...)
	s.mu.Unlock()

	if uint32(len(all)) > last {
		all = all[uint32(len(all))-last:]
	}

	out := make([]store.Message, 0, len(all))
	for _, m := range all {
		if m.MsgSeqNum >= beginSeqNo && m.MsgSeqNum <= endSeqNo {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MsgSeqNum > out[j].MsgSeqNum })
	return out, nil
}

func (s *Store) LastSendTime(_ context.Context, epoch string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(epoch)
	if !st.hasSendTime {
		return time.Time{}, store.ErrNotFound
	}
	return st.lastSendTime, nil
}

func (s *Store) Disconnect(_ context.Context) error { return nil }

var _ store.Store = (*Store)(nil)
