package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBMessage struct {
	ID            string       `msgpack:"id"`
	UserID        string       `msgpack:"userId"`
	Username      string       `msgpack:"username"`
	Text          string       `msgpack:"text"`
	Time          string       `msgpack:"time"`
	Timestamp     int64        `msgpack:"timestamp"`
	Color         string       `msgpack:"color"`
	Image         string       `msgpack:"image"`
	MessageImage  string       `msgpack:"messageImage"`
	Audio         string       `msgpack:"audio"`
	AudioWaveform string       `msgpack:"audioWaveform"`
	AudioDuration int          `msgpack:"audioDuration"`
	IsVisio       bool         `msgpack:"isVisio"`
	RoomID        string       `msgpack:"roomId"`
	Bio           string       `msgpack:"bio"`
	Status        string       `msgpack:"status"`
	Reactions     []DBReaction `msgpack:"reactions"`
	ReplyTo       *DBReplyRef  `msgpack:"replyTo"`
}

type DBReaction struct {
	UserID string `msgpack:"userId"`
	Emoji  string `msgpack:"emoji"`
}

type DBReplyRef struct {
	Username  string `msgpack:"username"`
	Text      string `msgpack:"text"`
	Timestamp int64  `msgpack:"timestamp"`
}

func (m *DBMessage) Key() []byte {
	return timestampKey(m.Timestamp)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBGroupInfo struct {
	Name        string `msgpack:"name"`
	Description string `msgpack:"description"`
	Image       string `msgpack:"image"`
}

func (g *DBGroupInfo) Key() []byte {
	return []byte("info")
}

func (g *DBGroupInfo) MarshalBinary() (data []byte, err error) {
	type alias DBGroupInfo
	return msgpack.Marshal((*alias)(g))
}

func (g *DBGroupInfo) UnmarshalBinary(data []byte) error {
	type alias DBGroupInfo
	return msgpack.Unmarshal(data, (*alias)(g))
}

// timestampKey encodes a millisecond timestamp as a big-endian uint64 so
// bbolt cursors iterate messages in chronological order.
func timestampKey(ts int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(ts))
	return key
}

func keyTimestamp(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}
