package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// TurnMUS is the MUS serializer for Turn. Timestamps are encoded as Unix microseconds.
var TurnMUS = turnMUS{}

type turnMUS struct{}

// Marshal writes v into bs, which must hold at least Size(v) bytes.
func (s turnMUS) Marshal(v Turn, bs []byte) (n int) {
	n = ord.String.Marshal(v.Query, bs)
	n += ord.String.Marshal(v.Answer, bs[n:])
	n += ord.String.Marshal(v.ReferencedDocuments, bs[n:])
	return n + varint.Int64.Marshal(v.Timestamp.UnixMicro(), bs[n:])
}

// Unmarshal reads a Turn from bs and reports the number of bytes consumed.
func (s turnMUS) Unmarshal(bs []byte) (v Turn, n int, err error) {
	v.Query, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Answer, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ReferencedDocuments, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Timestamp = time.UnixMicro(micros).UTC()
	return
}

// Size returns the encoded size of v.
func (s turnMUS) Size(v Turn) (size int) {
	size = ord.String.Size(v.Query)
	size += ord.String.Size(v.Answer)
	size += ord.String.Size(v.ReferencedDocuments)
	return size + varint.Int64.Size(v.Timestamp.UnixMicro())
}

// Skip advances past an encoded Turn without keeping it.
func (s turnMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}
