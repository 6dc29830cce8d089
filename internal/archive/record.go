// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Framed archives prefix every sample with a fixed big-endian header:
//
//	0  magic   uint32 "XGA1"
//	4  flags   uint32 (bit 0: keyframe)
//	8  length  uint64 payload bytes
//	16 pts     int64  nanoseconds relative to the stream start offset
//	24 dur     int64  nanoseconds
const (
	RecordHeaderSize = 32
	recordMagic      = 0x58474131 // "XGA1"
	flagKeyframe     = 1 << 0
)

// ErrBadRecord is returned when a framed record header is malformed.
var ErrBadRecord = errors.New("archive: malformed record header")

// RecordHeader describes one framed sample.
type RecordHeader struct {
	Keyframe bool
	Length   uint64
	PTS      time.Duration
	Duration time.Duration
}

func (h RecordHeader) put(b []byte) {
	var flags uint32
	if h.Keyframe {
		flags |= flagKeyframe
	}
	binary.BigEndian.PutUint32(b[0:4], recordMagic)
	binary.BigEndian.PutUint32(b[4:8], flags)
	binary.BigEndian.PutUint64(b[8:16], h.Length)
	binary.BigEndian.PutUint64(b[16:24], uint64(h.PTS))
	binary.BigEndian.PutUint64(b[24:32], uint64(h.Duration))
}

// encodeRecord returns header and payload as one buffer so a sample reaches
// the destination in a single Write.
func encodeRecord(s *Sample, startOffset time.Duration) []byte {
	buf := make([]byte, RecordHeaderSize+len(s.Data))
	RecordHeader{
		Keyframe: s.Keyframe,
		Length:   uint64(len(s.Data)),
		PTS:      s.Time - startOffset,
		Duration: s.Duration,
	}.put(buf)
	copy(buf[RecordHeaderSize:], s.Data)
	return buf
}

// ReadRecord reads the next framed record from r. It returns io.EOF at a
// clean end of archive and io.ErrUnexpectedEOF for a truncated one.
func ReadRecord(r io.Reader) (RecordHeader, []byte, error) {
	var b [RecordHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return RecordHeader{}, nil, err
	}
	if binary.BigEndian.Uint32(b[0:4]) != recordMagic {
		return RecordHeader{}, nil, ErrBadRecord
	}
	h := RecordHeader{
		Keyframe: binary.BigEndian.Uint32(b[4:8])&flagKeyframe != 0,
		Length:   binary.BigEndian.Uint64(b[8:16]),
		PTS:      time.Duration(binary.BigEndian.Uint64(b[16:24])),
		Duration: time.Duration(binary.BigEndian.Uint64(b[24:32])),
	}
	const maxRecord = 1 << 30
	if h.Length > maxRecord {
		return RecordHeader{}, nil, fmt.Errorf("%w: length %d", ErrBadRecord, h.Length)
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return RecordHeader{}, nil, err
	}
	return h, payload, nil
}
