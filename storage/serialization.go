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
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/poiesic/membank/core"
)

type recordDoc struct {
	ID       string          `json:"id"`
	Vector   []float32       `json:"vector"`
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type tableDoc struct {
	Name       string    `json:"name"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
}

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(record *core.Record) ([]byte, error) {
	doc := recordDoc{
		ID:     record.ID,
		Vector: record.Vector,
		Text:   record.Text,
	}
	if record.Metadata != nil {
		metadata, err := MarshalMetadata(record.Metadata)
		if err != nil {
			return nil, err
		}
		doc.Metadata = metadata
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalRecord deserializes a Record from bytes.
// Metadata is decoded as by UnmarshalMetadata.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	var doc recordDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	metadata, err := UnmarshalMetadata(doc.Metadata)
	if err != nil {
		return nil, err
	}
	return &core.Record{
		ID:       doc.ID,
		Vector:   doc.Vector,
		Text:     doc.Text,
		Metadata: metadata,
	}, nil
}

// MarshalMetadata serializes a metadata map to JSON.
func MarshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalMetadata deserializes a metadata map from JSON.
// Empty input yields a nil map.
//
// Known keys decode to the types ingestion writes them with: other_files is
// a []string, doc_info is a map[string]any whose pages_size and rows are ints.
// Any other value comes back in its JSON-decoded form (numbers as float64,
// lists as []any, objects as map[string]any).
func UnmarshalMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if len(metadata) == 0 {
		return nil, nil
	}
	for key, value := range metadata {
		metadata[key] = restoreMetadataValue(key, value)
	}
	return metadata, nil
}

// NormalizeMetadata passes metadata through the codec, returning the map a
// store hands back when reading the record.
func NormalizeMetadata(metadata map[string]any) (map[string]any, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := MarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return UnmarshalMetadata(data)
}

func restoreMetadataValue(key string, value any) any {
	switch key {
	case core.MetaOtherFiles:
		if files, ok := stringSlice(value); ok {
			return files
		}
	case core.MetaDocInfo:
		if info, ok := value.(map[string]any); ok {
			for k, v := range info {
				if n, ok := v.(json.Number); ok && (k == core.MetaPagesSize || k == core.MetaRows) {
					if i, err := n.Int64(); err == nil {
						info[k] = int(i)
						continue
					}
				}
				info[k] = plainJSON(v)
			}
			return info
		}
	}
	return plainJSON(value)
}

func stringSlice(value any) ([]string, bool) {
	items, ok := value.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// plainJSON replaces json.Number values with float64.
func plainJSON(value any) any {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case map[string]any:
		for k, item := range v {
			v[k] = plainJSON(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = plainJSON(item)
		}
		return v
	}
	return value
}

// MarshalTableInfo serializes a table schema to bytes.
func MarshalTableInfo(info core.TableInfo) ([]byte, error) {
	data, err := json.Marshal(tableDoc(info))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalTableInfo deserializes a table schema from bytes.
func UnmarshalTableInfo(data []byte) (core.TableInfo, error) {
	var doc tableDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.TableInfo{}, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.TableInfo(doc), nil
}
