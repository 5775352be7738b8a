// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package authstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/sablecast/sable/internal/models"
)

// MemoryRepository is a map-backed token store. Tokens do not survive a
// restart; clients re-authenticate on their next request.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]*models.AuthenticationInfo
}

// NewMemoryRepository creates an empty in-memory token store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.AuthenticationInfo)}
}

// Create stores a new token row.
func (r *MemoryRepository) Create(ctx context.Context, info *models.AuthenticationInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *info
	r.rows[info.ID] = &clone
	return nil
}

// Update rewrites an existing token row.
func (r *MemoryRepository) Update(ctx context.Context, info *models.AuthenticationInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[info.ID]; !ok {
		return fmt.Errorf("token row %s not found", info.ID)
	}
	clone := *info
	r.rows[info.ID] = &clone
	return nil
}

// Get returns token rows matching the query, newest first.
func (r *MemoryRepository) Get(ctx context.Context, query models.AuthenticationInfoQuery) (*models.QueryResult[*models.AuthenticationInfo], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rows []*models.AuthenticationInfo
	for _, info := range r.rows {
		if matchesQuery(info, query) {
			clone := *info
			rows = append(rows, &clone)
		}
	}
	return paginate(rows, query.Limit), nil
}
