package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantbridge/fixgo/pkg/store"
)

func TestGetSequencesDefaultsToOneOne(t *testing.T) {
	s := New()
	in, out, err := s.GetSequences(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), in)
	assert.Equal(t, uint32(1), out)
}

func TestSetSequencesRoundTrips(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.SetSequences(ctx, "E1", 7, 12))
	in, out, err := s.GetSequences(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), in)
	assert.Equal(t, uint32(12), out)
}

func TestLastSendTimeNotFoundUntilStored(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.LastSendTime(ctx, "E1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	now := time.Now()
	require.NoError(t, s.StoreOutgoing(ctx, "E1", 1, now, []byte("msg")))
	got, err := s.LastSendTime(ctx, "E1")
	require.NoError(t, err)
	assert.WithinDuration(t, now, got, time.Millisecond)
}

func TestGetPrevMessagesFiltersRangeAndOrdersNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := uint32(1); i <= 5; i++ {
		require.NoError(t, s.StoreOutgoing(ctx, "E1", i, time.Now(), []byte("m")))
	}

	msgs, err := s.GetPrevMessages(ctx, "E1", 2, 4, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []uint32{4, 3, 2}, []uint32{msgs[0].MsgSeqNum, msgs[1].MsgSeqNum, msgs[2].MsgSeqNum})
}

func TestGetPrevMessagesRestrictsToLastBeforeFiltering(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := uint32(1); i <= 5; i++ {
		require.NoError(t, s.StoreOutgoing(ctx, "E1", i, time.Now(), []byte("m")))
	}

	msgs, err := s.GetPrevMessages(ctx, "E1", 1, 5, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, uint32(5), msgs[0].MsgSeqNum)
	assert.Equal(t, uint32(4), msgs[1].MsgSeqNum)
}

func TestEpochsAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.SetSequences(ctx, "E1", 3, 3))
	in, _, err := s.GetSequences(ctx, "E2")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), in)
}
