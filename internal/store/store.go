// Package store is the entity store adapter: a narrow get/list/put/delete/
// subscribe contract over the five entity collections, with a single
// normalization boundary that turns store-specific result shapes into one
// canonical keyed-map representation.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"opsmap/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Record is one raw entity document.
type Record = json.RawMessage

// Store reads and writes the five entity collections. Implementations must
// return collections as id-keyed maps; consumers never re-sniff shapes.
type Store interface {
	GetAll(ctx context.Context, collection string) (map[string]Record, error)
	GetByID(ctx context.Context, collection, id string) (Record, error)
	Put(ctx context.Context, collection, id string, rec Record) error
	Delete(ctx context.Context, collection, id string) error
	// Subscribe registers fn to run with the full collection contents after
	// every mutation. The returned func unsubscribes.
	Subscribe(collection string, fn func(map[string]Record)) (unsubscribe func())
}

// ValidCollection reports whether name is one of the five known collections.
func ValidCollection(name string) bool {
	for _, c := range domain.Collections {
		if c == name {
			return true
		}
	}
	return false
}

// NormalizeCollection accepts a collection payload in either of the two
// shapes remote stores return (array of records carrying their own id, or a
// map keyed by id) and produces the canonical keyed map. Records in array
// form that carry no id are dropped rather than failing the whole
// collection. Any other top-level shape is a contract violation and errors.
func NormalizeCollection(raw json.RawMessage) (map[string]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]Record{}, nil
	}
	switch trimmed[0] {
	case '{':
		var keyed map[string]Record
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, fmt.Errorf("decode keyed collection: %w", err)
		}
		if keyed == nil {
			keyed = map[string]Record{}
		}
		return keyed, nil
	case '[':
		var list []Record
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode collection array: %w", err)
		}
		out := make(map[string]Record, len(list))
		for _, rec := range list {
			var withID struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(rec, &withID); err != nil || withID.ID == "" {
				continue
			}
			out[withID.ID] = rec
		}
		return out, nil
	default:
		return nil, fmt.Errorf("collection shape: expected array or object, got %q", trimmed[0])
	}
}
