// Copyright 2025 Poiesic Systems
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


package storage

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/gentable/core"
)

// MarshalMeta serializes table metadata to bytes.
func MarshalMeta(meta *core.TableMeta) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalMeta deserializes table metadata from bytes.
func UnmarshalMeta(data []byte) (*core.TableMeta, error) {
	var meta core.TableMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &meta, nil
}

// storedRow is the on-disk form of a row. Values stay raw until the column
// type is known.
type storedRow struct {
	ID        string                     `json:"id"`
	UpdatedAt int64                      `json:"updated_at"`
	Values    map[string]json.RawMessage `json:"values"`
	State     map[string]core.CellState  `json:"state,omitempty"`
}

// MarshalRow serializes a row to bytes.
func MarshalRow(row *core.Row) ([]byte, error) {
	stored := storedRow{
		ID:        row.ID,
		UpdatedAt: row.UpdatedAt.UnixMicro(),
		Values:    make(map[string]json.RawMessage, len(row.Values)),
		State:     row.State,
	}
	for col, v := range row.Values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrSerializationFailed, col, err)
		}
		stored.Values[col] = raw
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalRow deserializes a row, decoding each value according to the
// column's data type. Values of columns missing from meta are dropped.
func UnmarshalRow(data []byte, meta *core.TableMeta) (*core.Row, error) {
	var stored storedRow
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	row := &core.Row{
		ID:        stored.ID,
		UpdatedAt: time.UnixMicro(stored.UpdatedAt).UTC(),
		Values:    make(map[string]any, len(stored.Values)),
		State:     stored.State,
	}
	for _, col := range meta.Columns {
		raw, ok := stored.Values[col.ID]
		if !ok {
			continue
		}
		v, err := decodeValue(raw, col.DataType)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrSerializationFailed, col.ID, err)
		}
		row.Values[col.ID] = v
	}
	return row, nil
}

func decodeValue(raw json.RawMessage, dtype core.DataType) (any, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	switch dtype {
	case core.DataVector:
		var v []float32
		err := json.Unmarshal(raw, &v)
		return v, err
	case core.DataInt:
		var v int64
		err := json.Unmarshal(raw, &v)
		return v, err
	case core.DataFloat:
		var v float64
		err := json.Unmarshal(raw, &v)
		return v, err
	case core.DataBool:
		var v bool
		err := json.Unmarshal(raw, &v)
		return v, err
	case core.DataString:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		var v any
		err := json.Unmarshal(raw, &v)
		return v, err
	}
}

// MarshalCounter serializes a counter value.
func MarshalCounter(n uint64) []byte {
	buf := make([]byte, varint.Uint64.Size(n))
	varint.Uint64.Marshal(n, buf)
	return buf
}

// UnmarshalCounter deserializes a counter value.
func UnmarshalCounter(data []byte) (uint64, error) {
	n, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	return n, nil
}

// FileHeaderMUS serializes file headers (everything except content).
var FileHeaderMUS = fileHeaderMUS{}

type fileHeaderMUS struct{}

// Marshal writes the header into bs and returns the number of bytes used.
func (s fileHeaderMUS) Marshal(v *core.FileRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Checksum, bs[n:])
	n += varint.Int64.Marshal(v.Size, bs[n:])
	n += varint.Int64.Marshal(v.CreatedAt.UnixMicro(), bs[n:])
	return
}

// Unmarshal reads a header from bs.
func (s fileHeaderMUS) Unmarshal(bs []byte) (v *core.FileRecord, n int, err error) {
	v = &core.FileRecord{}
	var n1 int
	if v.ID, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Checksum, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Size, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.CreatedAt = time.UnixMicro(micros).UTC()
	return
}

// Size returns the encoded size of the header.
func (s fileHeaderMUS) Size(v *core.FileRecord) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Name)
	size += ord.String.Size(v.Checksum)
	size += varint.Int64.Size(v.Size)
	return size + varint.Int64.Size(v.CreatedAt.UnixMicro())
}

// MarshalFileHeader serializes a file header to bytes.
func MarshalFileHeader(file *core.FileRecord) []byte {
	buf := make([]byte, FileHeaderMUS.Size(file))
	FileHeaderMUS.Marshal(file, buf)
	return buf
}

// UnmarshalFileHeader deserializes a file header from bytes.
func UnmarshalFileHeader(data []byte) (*core.FileRecord, error) {
	file, _, err := FileHeaderMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	return file, nil
}
