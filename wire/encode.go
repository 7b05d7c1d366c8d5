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

import "google.golang.org/protobuf/encoding/protowire"

// Builder assembles a length-delimited message byte-by-byte using the same
// protowire primitives the decoder's tags are read with. It exists for
// tests and for the create_bundle tool; the verifier itself never encodes
// anything.
type Builder struct {
	buf []byte
}

// NewBuilder returns an empty message builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Bytes returns the bytes assembled so far.
func (b *Builder) Bytes() []byte { return b.buf }

// Raw appends already-encoded message bytes verbatim, with no tag of its
// own. It lets a caller splice a message it decoded or built elsewhere
// into a new message body unchanged — e.g. re-embedding an already-signed
// SignedRootMetadata without touching the bytes a signature covers.
func (b *Builder) Raw(data []byte) *Builder {
	b.buf = append(b.buf, data...)
	return b
}

// PutBytes appends a length-delimited bytes field.
func (b *Builder) PutBytes(fieldNum uint32, v []byte) *Builder {
	b.buf = protowire.AppendTag(b.buf, protowire.Number(fieldNum), protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
	return b
}

// PutString appends a length-delimited string field.
func (b *Builder) PutString(fieldNum uint32, v string) *Builder {
	return b.PutBytes(fieldNum, []byte(v))
}

// PutMessage appends a nested message field.
func (b *Builder) PutMessage(fieldNum uint32, v *Builder) *Builder {
	return b.PutBytes(fieldNum, v.Bytes())
}

// PutUint32 appends a varint-encoded uint32 field.
func (b *Builder) PutUint32(fieldNum uint32, v uint32) *Builder {
	b.buf = protowire.AppendTag(b.buf, protowire.Number(fieldNum), protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, uint64(v))
	return b
}

// PutUint64 appends a varint-encoded uint64 field.
func (b *Builder) PutUint64(fieldNum uint32, v uint64) *Builder {
	b.buf = protowire.AppendTag(b.buf, protowire.Number(fieldNum), protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
	return b
}

// PutStringKeyedMessage appends one entry of a map<string, Message> field:
// a nested 2-field submessage {1: key, 2: value}, per the standard
// protobuf map wire encoding that StringKeyedSubMessages decodes.
func (b *Builder) PutStringKeyedMessage(fieldNum int, keyField, valueField uint32, key string, value *Builder) *Builder {
	entry := NewBuilder().PutString(keyField, key).PutMessage(valueField, value)
	return b.PutMessage(uint32(fieldNum), entry)
}

// PutStringKeyedBytes appends one entry of a map<string, bytes> field.
func (b *Builder) PutStringKeyedBytes(fieldNum int, keyField, valueField uint32, key string, value []byte) *Builder {
	entry := NewBuilder().PutString(keyField, key).PutBytes(valueField, value)
	return b.PutMessage(uint32(fieldNum), entry)
}
