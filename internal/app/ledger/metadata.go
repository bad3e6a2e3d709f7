package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jstz-labs/fa2-ledger/internal/app/domain/token"
	"github.com/jstz-labs/fa2-ledger/internal/kv"
)

// MetadataRegistry owns the persisted token metadata records, one per token
// id, last write wins.
type MetadataRegistry struct {
	store kv.Store
}

// NewMetadataRegistry creates a metadata registry over the given store handle.
func NewMetadataRegistry(store kv.Store) *MetadataRegistry {
	return &MetadataRegistry{store: store}
}

func (r *MetadataRegistry) load(ctx context.Context) (map[int64]token.Metadata, error) {
	raw, ok, err := r.store.Get(ctx, metadataKey)
	if err != nil {
		return nil, fmt.Errorf("load token metadata: %w", err)
	}
	if !ok {
		return make(map[int64]token.Metadata), nil
	}
	var records map[int64]token.Metadata
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode token metadata: %w", err)
	}
	return records, nil
}

func (r *MetadataRegistry) save(ctx context.Context, records map[int64]token.Metadata) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode token metadata: %w", err)
	}
	if err := r.store.Set(ctx, metadataKey, raw); err != nil {
		return fmt.Errorf("save token metadata: %w", err)
	}
	return nil
}

// Get returns the metadata record for tokenID.
func (r *MetadataRegistry) Get(ctx context.Context, tokenID int64) (token.Metadata, error) {
	records, err := r.load(ctx)
	if err != nil {
		return token.Metadata{}, err
	}
	meta, ok := records[tokenID]
	if !ok {
		return token.Metadata{}, NewNotFoundError("token metadata", strconv.FormatInt(tokenID, 10))
	}
	return meta, nil
}

// Set upserts the metadata record unconditionally. Any caller may set
// metadata; the entrypoint is deliberately permissive.
func (r *MetadataRegistry) Set(ctx context.Context, meta token.Metadata) error {
	if meta.Symbol == "" {
		return RequiredError("symbol")
	}
	if meta.Name == "" {
		return RequiredError("name")
	}
	records, err := r.load(ctx)
	if err != nil {
		return err
	}
	records[meta.TokenID] = meta
	return r.save(ctx, records)
}
