// Package badgerstore is a Store backed by an embedded BadgerDB instance,
// giving each epoch its own durable sequence cursors and outgoing-message
// history without requiring an external database.
//
// Keys are namespaced by prefix, following the same convention the rest
// of the project's metadata stores use:
//
//	Data                  Prefix   Key format                      Value
//	====================================================================
//	Sequences             "sq:"    sq:<epoch>                      nextIncoming,nextOutgoing (8 bytes)
//	Outgoing message      "og:"    og:<epoch>:<seq>                msgSeqNum (4 bytes) ++ payload
//	Last send time        "lt:"    lt:<epoch>                      unix nanos (8 bytes)
package badgerstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/quantbridge/fixgo/pkg/store"
)

const (
	prefixSequences = "sq:"
	prefixOutgoing  = "og:"
	prefixLastSend  = "lt:"
)

func keySequences(epoch string) []byte { return []byte(prefixSequences + epoch) }
func keyLastSend(epoch string) []byte  { return []byte(prefixLastSend + epoch) }

func keyOutgoing(epoch string, seq uint32) []byte {
	k := make([]byte, 0, len(prefixOutgoing)+len(epoch)+1+4)
	k = append(k, prefixOutgoing...)
	k = append(k, epoch...)
	k = append(k, ':')
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], seq)
	return append(k, buf[:]...)
}

// Store is a Store backed by a *badgerdb.DB.
type Store struct {
	db *badgerdb.DB
}

// Open opens (creating if necessary) a BadgerDB instance at dir.
func Open(dir string) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) StoreOutgoing(ctx context.Context, epoch string, msgSeqNum uint32, sendTime time.Time, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		value := make([]byte, 4+len(payload))
		binary.BigEndian.PutUint32(value[:4], msgSeqNum)
		copy(value[4:], payload)
		if err := txn.Set(keyOutgoing(epoch, msgSeqNum), value); err != nil {
			return err
		}
		var tbuf [8]byte
		binary.BigEndian.PutUint64(tbuf[:], uint64(sendTime.UnixNano()))
		return txn.Set(keyLastSend(epoch), tbuf[:])
	})
	if err != nil {
		return fmt.Errorf("badgerstore: store outgoing: %w", err)
	}
	return nil
}

func (s *Store) GetSequences(ctx context.Context, epoch string) (uint32, uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	var nextIncoming, nextOutgoing uint32 = 1, 1
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keySequences(epoch))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("badgerstore: corrupt sequences row for %q", epoch)
			}
			nextIncoming = binary.BigEndian.Uint32(val[0:4])
			nextOutgoing = binary.BigEndian.Uint32(val[4:8])
			return nil
		})
	})
	if err != nil {
		return 0, 0, fmt.Errorf("badgerstore: get sequences: %w", err)
	}
	return nextIncoming, nextOutgoing, nil
}

func (s *Store) SetSequences(ctx context.Context, epoch string, nextIncoming, nextOutgoing uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var val [8]byte
	binary.BigEndian.PutUint32(val[0:4], nextIncoming)
	binary.BigEndian.PutUint32(val[4:8], nextOutgoing)
	if err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keySequences(epoch), val[:])
	}); err != nil {
		return fmt.Errorf("badgerstore: set sequences: %w", err)
	}
	return nil
}

// GetPrevMessages scans the epoch's outgoing-message prefix range, takes
// the newest last entries, then filters to [beginSeqNo, endSeqNo] and
// returns newest-first.
func (s *Store) GetPrevMessages(ctx context.Context, epoch string, beginSeqNo, endSeqNo, last uint32) ([]store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var all []store.Message
	prefix := []byte(prefixOutgoing + epoch + ":")
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				if len(val) < 4 {
					return fmt.Errorf("badgerstore: corrupt outgoing row")
				}
				all = append(all, store.Message{
					MsgSeqNum: binary.BigEndian.Uint32(val[0:4]),
					Payload:   append([]byte(nil), val[4:]...),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: get prev messages: %w", err)
	}

	if uint32(len(all)) > last {
		all = all[uint32(len(all))-last:]
	}
	out := make([]store.Message, 0, len(all))
	for _, m := range all {
		if m.MsgSeqNum >= beginSeqNo && m.MsgSeqNum <= endSeqNo {
			out = append(out, m)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) LastSendTime(ctx context.Context, epoch string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	var t time.Time
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyLastSend(epoch))
		if err == badgerdb.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("badgerstore: corrupt last-send row for %q", epoch)
			}
			t = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
			return nil
		})
	})
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *Store) Disconnect(_ context.Context) error {
	return s.db.Close()
}

var _ store.Store = (*Store)(nil)
