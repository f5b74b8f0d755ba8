// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"encoding/binary"
	"errors"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/resourcevm/types"
)

var (
	errEventWrongVersion = errors.New("wrong event version")

	_ EventState = &eventState{}
)

// EventState stores events under their key, ordered by sequence number
type EventState interface {
	GetEvents(key []byte) ([]types.Event, error)
	PutEvents(events []types.Event) error
}

type storedEvent struct {
	Type string `serialize:"true"`
	Data []byte `serialize:"true"`
}

type eventState struct {
	eventDB database.Database
}

func NewEventState(db database.Database) EventState {
	return &eventState{eventDB: db}
}

// eventPrefix length-prefixes [key] so no key is a prefix of another
func eventPrefix(key []byte) []byte {
	p := make([]byte, wrappers.IntLen, wrappers.IntLen+len(key)+wrappers.LongLen)
	binary.BigEndian.PutUint32(p, uint32(len(key)))
	return append(p, key...)
}

func eventKey(key []byte, seq uint64) []byte {
	k := eventPrefix(key)
	var b [wrappers.LongLen]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return append(k, b[:]...)
}

func (s *eventState) PutEvents(events []types.Event) error {
	for _, e := range events {
		bytes, err := Codec.Marshal(CodecVersion, &storedEvent{
			Type: e.Type.String(),
			Data: e.Data,
		})
		if err != nil {
			return err
		}
		if err := s.eventDB.Put(eventKey(e.Key, e.SequenceNumber), bytes); err != nil {
			return err
		}
	}
	return nil
}

func (s *eventState) GetEvents(key []byte) ([]types.Event, error) {
	prefix := eventPrefix(key)
	it := s.eventDB.NewIteratorWithPrefix(prefix)
	defer it.Release()

	var events []types.Event
	for it.Next() {
		stored := storedEvent{}
		parsedVersion, err := Codec.Unmarshal(it.Value(), &stored)
		if err != nil {
			return nil, err
		}
		if parsedVersion != CodecVersion {
			return nil, errEventWrongVersion
		}
		tag, err := types.ParseTypeTag(stored.Type)
		if err != nil {
			return nil, err
		}
		k := it.Key()
		events = append(events, types.Event{
			Key:            append([]byte(nil), key...),
			SequenceNumber: binary.BigEndian.Uint64(k[len(prefix):]),
			Type:           tag,
			Data:           stored.Data,
		})
	}
	return events, it.Error()
}
