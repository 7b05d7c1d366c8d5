// Copyright 2026 The Project Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wire implements the tag-addressed, length-prefixed decoder that
// the bundle verifier reads metadata through. It plays the role the design
// calls "MessageCursor": lazy, byte-interval-backed views over a seekable
// stream, built on the wire primitives from
// google.golang.org/protobuf/encoding/protowire rather than a bespoke byte
// scanner.
//
// Every accessor re-scans its message's interval from the underlying
// stream; nothing is cached, and nothing is copied except the handful of
// small fixed-size fields (key ids, signatures, key values, names) that the
// verifier needs to hold in memory to pass to the crypto primitives.
package wire

import (
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/usbarmory/armory-bundle-verify/status"
)

// Stream is the minimal seekable-stream capability the decoder needs. A
// *io.SectionReader, an open *os.File, or an in-memory backing all satisfy
// it.
type Stream interface {
	io.ReaderAt
}

// Interval is a byte-range descriptor into a Stream: {reader, offset,
// length}. It owns nothing; its validity is tied to the lifetime of the
// underlying Stream.
type Interval struct {
	r      Stream
	offset int64
	length int64
}

// Len returns the interval's length in bytes.
func (iv Interval) Len() int64 { return iv.length }

// Reader returns a streaming reader over the interval's bytes. Use this for
// anything that might be large (payloads); never call Bytes on such data.
func (iv Interval) Reader() io.Reader {
	if iv.r == nil {
		return io.LimitReader(nil, 0)
	}
	return io.NewSectionReader(iv.r, iv.offset, iv.length)
}

// Bytes reads the full interval into memory. Only safe for fields the
// format bounds to a small fixed size (key ids, signatures, key values,
// names) — never for target payloads.
func (iv Interval) Bytes() ([]byte, error) {
	buf := make([]byte, iv.length)
	if iv.length == 0 {
		return buf, nil
	}
	if _, err := iv.r.ReadAt(buf, iv.offset); err != nil {
		return nil, status.Wrap(status.Decode, "read interval: %v", err)
	}
	return buf, nil
}

// ReadExact reads the interval into buf, failing with status.Internal if
// the lengths don't match exactly. This is the buffer-size discipline
// calls for: a 32-byte key id, a 64-byte signature, a 65-byte key value.
func (iv Interval) ReadExact(buf []byte) error {
	if int64(len(buf)) != iv.length {
		return status.Wrap(status.Internal, "expected exactly %d bytes, interval has %d", len(buf), iv.length)
	}
	_, err := iv.r.ReadAt(buf, iv.offset)
	if err != nil {
		return status.Wrap(status.Decode, "read interval: %v", err)
	}
	return nil
}

// cursor is a forward-only scanner over a fixed byte range of a Stream. It
// never buffers more than one varint (at most 10 bytes) at a time, and it
// skips fields it isn't interested in by advancing pos without reading.
type cursor struct {
	r   Stream
	pos int64
	end int64
}

func (c *cursor) readByte() (byte, error) {
	if c.pos >= c.end {
		return 0, io.EOF
	}
	var b [1]byte
	if _, err := c.r.ReadAt(b[:], c.pos); err != nil {
		return 0, err
	}
	c.pos++
	return b[0], nil
}

// readVarint implements the base-128 varint decode protowire.ConsumeVarint
// performs on a slice, but streamed one byte at a time so we never need the
// whole message resident in memory just to walk its tags.
func (c *cursor) readVarint() (uint64, error) {
	var v uint64
	for shift := uint(0); shift < 64; shift += 7 {
		b, err := c.readByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, status.Wrap(status.Decode, "varint too long")
}

func (c *cursor) skip(n int64) error {
	if n < 0 || c.pos+n > c.end {
		return io.ErrUnexpectedEOF
	}
	c.pos += n
	return nil
}

// interval carves out the next n bytes as an Interval and advances past them.
func (c *cursor) interval(n int64) (Interval, error) {
	if n < 0 || c.pos+n > c.end {
		return Interval{}, io.ErrUnexpectedEOF
	}
	iv := Interval{r: c.r, offset: c.pos, length: n}
	c.pos += n
	return iv, nil
}

// field is one decoded (tag, value) pair from a single scan step.
type field struct {
	num protowire.Number
	typ protowire.Type

	varint uint64
	bytes  Interval
}

// next decodes the next field in the message, or returns io.EOF once the
// cursor reaches the end of its interval.
func (c *cursor) next() (field, error) {
	if c.pos >= c.end {
		return field{}, io.EOF
	}
	tag, err := c.readVarint()
	if err != nil {
		return field{}, status.Wrap(status.Decode, "read tag: %v", err)
	}
	num, typ := protowire.DecodeTag(tag)
	if num < 1 {
		return field{}, status.Wrap(status.Decode, "invalid field number %d", num)
	}

	f := field{num: num, typ: typ}
	switch typ {
	case protowire.VarintType:
		v, err := c.readVarint()
		if err != nil {
			return field{}, status.Wrap(status.Decode, "read varint field %d: %v", num, err)
		}
		f.varint = v
	case protowire.Fixed64Type:
		if err := c.skip(8); err != nil {
			return field{}, status.Wrap(status.Decode, "skip fixed64 field %d: %v", num, err)
		}
	case protowire.Fixed32Type:
		if err := c.skip(4); err != nil {
			return field{}, status.Wrap(status.Decode, "skip fixed32 field %d: %v", num, err)
		}
	case protowire.BytesType:
		n, err := c.readVarint()
		if err != nil {
			return field{}, status.Wrap(status.Decode, "read length field %d: %v", num, err)
		}
		iv, err := c.interval(int64(n))
		if err != nil {
			return field{}, status.Wrap(status.Decode, "read bytes field %d: %v", num, err)
		}
		f.bytes = iv
	default:
		return field{}, status.Wrap(status.Decode, "unsupported wire type %d on field %d", typ, num)
	}
	return f, nil
}
