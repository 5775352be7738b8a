// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package services

import (
	"context"
	"time"

	"github.com/sablecast/sable/internal/logging"
)

// TokenStoreGC is satisfied by *authstore.BadgerRepository.
type TokenStoreGC interface {
	RunValueLogGC(discardRatio float64) error
}

// TokenStoreGCService periodically reclaims Badger value-log space in the
// token store. Badger never runs value-log GC on its own, so a long-lived
// process needs this loop. Only deployed when the token store is
// Badger-backed.
type TokenStoreGCService struct {
	store        TokenStoreGC
	interval     time.Duration
	discardRatio float64
	name         string
}

// NewTokenStoreGCService creates the GC loop. A non-positive interval
// defaults to 5 minutes.
func NewTokenStoreGCService(store TokenStoreGC, interval time.Duration) *TokenStoreGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TokenStoreGCService{
		store:        store,
		interval:     interval,
		discardRatio: 0.5,
		name:         "token-store-gc",
	}
}

// Serve implements suture.Service. GC failures are logged, not returned:
// a failed pass costs disk space, and restarting the loop would not help.
func (s *TokenStoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunValueLogGC(s.discardRatio); err != nil {
				logging.Warn().Err(err).Msg("token store value-log gc pass failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *TokenStoreGCService) String() string {
	return s.name
}
