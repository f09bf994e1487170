package session

import "fmt"

// Sequences tracks the next expected incoming MsgSeqNum and the next
// outgoing MsgSeqNum this session will use. The Rust original backs these
// with a pair of atomics behind a tuple constructor that inverts
// (incoming, outgoing) into (outgoing, incoming) storage order — a sharp
// edge with no payoff here, since the engine is the single owner of this
// state (see the concurrency model: one goroutine per session drives the
// state machine to completion before the next event is handled). Plain
// fields are simpler and exactly as correct.
type Sequences struct {
	nextIncoming uint32
	nextOutgoing uint32
}

// NewSequences builds a Sequences starting both cursors at the given
// values (typically loaded from the store, or 1/1 for a fresh epoch).
func NewSequences(nextIncoming, nextOutgoing uint32) Sequences {
	return Sequences{nextIncoming: nextIncoming, nextOutgoing: nextOutgoing}
}

// NextOutgoing returns the current outgoing sequence number and advances
// it by one.
func (s *Sequences) NextOutgoing() uint32 {
	n := s.nextOutgoing
	s.nextOutgoing++
	return n
}

// IncrIncoming advances the expected incoming sequence number by one.
func (s *Sequences) IncrIncoming() {
	s.nextIncoming++
}

// PeekIncoming returns the next expected incoming sequence number without
// advancing it.
func (s *Sequences) PeekIncoming() uint32 { return s.nextIncoming }

// PeekOutgoing returns the next outgoing sequence number without
// advancing it.
func (s *Sequences) PeekOutgoing() uint32 { return s.nextOutgoing }

// ResetIncoming sets the expected incoming sequence number to newValue.
// It refuses to move the cursor backward: a SequenceReset(4) with a
// NewSeqNo at or below the current value is a protocol violation, not a
// valid reset.
func (s *Sequences) ResetIncoming(newValue uint32) error {
	if s.nextIncoming > newValue {
		return fmt.Errorf("value is incorrect (out of range) for this tag")
	}
	s.nextIncoming = newValue
	return nil
}

// Reset sets both cursors to 1, for a fresh epoch (ResetSeqNumFlag=Y).
func (s *Sequences) Reset() {
	s.nextIncoming = 1
	s.nextOutgoing = 1
}
