// Package resolver turns an explorer query or an explicit selection into
// the flat list of media keys an action or preview acts on, grounded on
// action_service.py's _resolve_target_keys.
package resolver

import (
	"context"
	"fmt"

	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/store"
)

const maxResolvedKeys = 5000

// Resolver accumulates media keys for a query-or-selection target, capping
// accumulation at maxResolvedKeys for safety on broad queries.
type Resolver struct {
	store *store.Store
}

func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the deduplicated, order-preserving list of media keys a
// request targets, plus any truncation warnings. A non-empty selection
// always wins over a query.
func (r *Resolver) Resolve(ctx context.Context, accountID string, query *store.ExplorerQuery, selected []string) ([]string, []string, error) {
	if len(selected) > 0 {
		return dedup(selected), nil, nil
	}
	if query == nil {
		return nil, nil, nil
	}

	var collected []string
	var warnings []string
	cursor := query.PageCursor
	q := *query
	if q.PageSize <= 0 || q.PageSize > 500 {
		q.PageSize = 500
	}

	for len(collected) < maxResolvedKeys {
		q.PageCursor = cursor
		rows, next, err := r.store.QueryMediaIndex(ctx, accountID, q)
		if err != nil {
			return nil, nil, fmt.Errorf("resolver: query media index: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			collected = append(collected, row.MediaKey)
			if len(collected) >= maxResolvedKeys {
				warnings = append(warnings, "Result was truncated to 5000 items for safety")
				break
			}
		}
		if len(collected) >= maxResolvedKeys {
			break
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return dedup(collected), warnings, nil
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SampleRows materializes up to 12 indexed rows from mediaKeys, scanning at
// most limit*8 keys to bound the lookup on very large matches, mirroring
// action_service.py's _sample_rows.
func (r *Resolver) SampleRows(ctx context.Context, accountID string, mediaKeys []string, limit int) ([]model.MediaIndexRow, error) {
	if len(mediaKeys) == 0 {
		return nil, nil
	}
	scanLimit := limit * 8
	if scanLimit < 1 {
		scanLimit = 1
	}
	if scanLimit > len(mediaKeys) {
		scanLimit = len(mediaKeys)
	}
	rows, err := r.store.GetMediaIndexByKeys(ctx, accountID, mediaKeys[:scanLimit])
	if err != nil {
		return nil, fmt.Errorf("resolver: sample rows: %w", err)
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// DedupKeysFor translates media keys into their backing dedup keys via the
// local index, dropping rows with no dedup key on record.
func (r *Resolver) DedupKeysFor(ctx context.Context, accountID string, mediaKeys []string) ([]string, error) {
	rows, err := r.store.GetMediaIndexByKeys(ctx, accountID, mediaKeys)
	if err != nil {
		return nil, fmt.Errorf("resolver: dedup keys: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.DedupKey != "" {
			out = append(out, row.DedupKey)
		}
	}
	return out, nil
}
