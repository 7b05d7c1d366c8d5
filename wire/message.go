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

package wire

import (
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/usbarmory/armory-bundle-verify/status"
)

// Message is a lazy, tag-addressed view over one length-delimited region of
// a Stream. Every accessor below re-scans the region; a Message never
// caches a decoded value, matching the "entities are views, not owners"
// data model.
type Message struct {
	r      Stream
	offset int64
	length int64
}

// Open binds a top-level Message to the first limit bytes of r. This is the
// MessageCursor entry point: BundleAccessor.OpenAndVerify calls this once,
// through api.Open, on the blob store reader.
func Open(r Stream, limit int64) Message {
	return Message{r: r, offset: 0, length: limit}
}

// Interval returns the byte range backing this message, e.g. so a
// SignedRootMetadata's serialized_root_metadata bytes can be used as a
// verbatim signing preimage without re-encoding.
func (m Message) Interval() Interval {
	return Interval{r: m.r, offset: m.offset, length: m.length}
}

func (m Message) newCursor() *cursor {
	return &cursor{r: m.r, pos: m.offset, end: m.offset + m.length}
}

func fromInterval(iv Interval) Message {
	return Message{r: iv.r, offset: iv.offset, length: iv.length}
}

// SubMessage returns the last occurrence of fieldNum as a nested Message
// (protobuf singular-field semantics: last one wins).
func (m Message) SubMessage(fieldNum uint32) (Message, error) {
	iv, err := m.lastBytesField(fieldNum)
	if err != nil {
		return Message{}, err
	}
	return fromInterval(iv), nil
}

// Bytes returns the last occurrence of fieldNum as an Interval.
func (m Message) Bytes(fieldNum uint32) (Interval, error) {
	return m.lastBytesField(fieldNum)
}

// String returns the last occurrence of fieldNum decoded as a UTF-8 string,
// bounded by maxLen. ResourceExhausted is returned (not Decode) when the
// field does not fit, distinguishing an oversized field from a malformed one.
func (m Message) String(fieldNum uint32, maxLen int) (string, error) {
	iv, err := m.lastBytesField(fieldNum)
	if err != nil {
		return "", err
	}
	if iv.length > int64(maxLen) {
		return "", status.Wrap(status.ResourceExhausted, "field %d is %d bytes, buffer holds %d", fieldNum, iv.length, maxLen)
	}
	b, err := iv.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Uint32 returns the last occurrence of fieldNum as a uint32.
func (m Message) Uint32(fieldNum uint32) (uint32, error) {
	v, err := m.lastVarintField(fieldNum)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// Uint64 returns the last occurrence of fieldNum as a uint64.
func (m Message) Uint64(fieldNum uint32) (uint64, error) {
	return m.lastVarintField(fieldNum)
}

func (m Message) lastBytesField(fieldNum uint32) (Interval, error) {
	c := m.newCursor()
	found := false
	var result Interval
	want := protowire.Number(fieldNum)
	for {
		f, err := c.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Interval{}, err
		}
		if f.num != want {
			continue
		}
		if f.typ != protowire.BytesType {
			return Interval{}, status.Wrap(status.Internal, "field %d has wire type %d, expected bytes", fieldNum, f.typ)
		}
		result = f.bytes
		found = true
	}
	if !found {
		return Interval{}, status.Wrap(status.NotFound, "field %d not present", fieldNum)
	}
	return result, nil
}

func (m Message) lastVarintField(fieldNum uint32) (uint64, error) {
	c := m.newCursor()
	found := false
	var result uint64
	want := protowire.Number(fieldNum)
	for {
		f, err := c.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if f.num != want {
			continue
		}
		if f.typ != protowire.VarintType {
			return 0, status.Wrap(status.Internal, "field %d has wire type %d, expected varint", fieldNum, f.typ)
		}
		result = f.varint
		found = true
	}
	if !found {
		return 0, status.Wrap(status.NotFound, "field %d not present", fieldNum)
	}
	return result, nil
}

// RepeatedSubMessages returns every occurrence of fieldNum as a nested
// Message, in stream order.
func (m Message) RepeatedSubMessages(fieldNum uint32) ([]Message, error) {
	ivs, err := m.repeatedBytesField(fieldNum)
	if err != nil {
		return nil, err
	}
	out := make([]Message, len(ivs))
	for i, iv := range ivs {
		out[i] = fromInterval(iv)
	}
	return out, nil
}

// RepeatedBytes returns every occurrence of fieldNum as an Interval, in
// stream order.
func (m Message) RepeatedBytes(fieldNum uint32) ([]Interval, error) {
	return m.repeatedBytesField(fieldNum)
}

func (m Message) repeatedBytesField(fieldNum uint32) ([]Interval, error) {
	c := m.newCursor()
	var out []Interval
	want := protowire.Number(fieldNum)
	for {
		f, err := c.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if f.num != want {
			continue
		}
		if f.typ != protowire.BytesType {
			return nil, status.Wrap(status.Internal, "field %d has wire type %d, expected bytes", fieldNum, f.typ)
		}
		out = append(out, f.bytes)
	}
	return out, nil
}

// StringKeyedSubMessages decodes fieldNum as a protobuf map<string,
// Message>: each occurrence of the field is itself a 2-field submessage,
// {1: key string, 2: value message}, per the standard protobuf map wire
// encoding.
func (m Message) StringKeyedSubMessages(fieldNum int, keyField, valueField uint32, maxKeyLen int) (map[string]Message, error) {
	entries, err := m.repeatedBytesField(uint32(fieldNum))
	if err != nil {
		return nil, err
	}
	out := make(map[string]Message, len(entries))
	for _, iv := range entries {
		entry := fromInterval(iv)
		k, err := entry.String(keyField, maxKeyLen)
		if err != nil {
			return nil, status.Wrap(status.Decode, "map entry missing key: %v", err)
		}
		v, err := entry.SubMessage(valueField)
		if err != nil {
			return nil, status.Wrap(status.Decode, "map entry %q missing value: %v", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// StringKeyedBytes decodes fieldNum as a protobuf map<string, bytes>, the
// same entry shape as StringKeyedSubMessages but with a bytes value.
func (m Message) StringKeyedBytes(fieldNum int, keyField, valueField uint32, maxKeyLen int) (map[string]Interval, error) {
	entries, err := m.repeatedBytesField(uint32(fieldNum))
	if err != nil {
		return nil, err
	}
	out := make(map[string]Interval, len(entries))
	for _, iv := range entries {
		entry := fromInterval(iv)
		k, err := entry.String(keyField, maxKeyLen)
		if err != nil {
			return nil, status.Wrap(status.Decode, "map entry missing key: %v", err)
		}
		v, err := entry.Bytes(valueField)
		if err != nil {
			return nil, status.Wrap(status.Decode, "map entry %q missing value: %v", k, err)
		}
		out[k] = v
	}
	return out, nil
}
