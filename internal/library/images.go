// Sable - Media Server Session Coordination Core
// Copyright 2026 Sable contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sablecast/sable

package library

import (
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/sablecast/sable/internal/models"
)

// ImageTagger derives stable cache tags for item artwork. Clients key their
// image caches on the tag, so it must be deterministic for an unchanged item
// and unique across items.
type ImageTagger struct{}

// NewImageTagger creates the tagger.
func NewImageTagger() *ImageTagger {
	return &ImageTagger{}
}

// GetImageCacheTag returns the cache tag for the item's primary image.
func (t *ImageTagger) GetImageCacheTag(item *models.BaseItem) (string, error) {
	if item == nil || item.ID == "" {
		return "", errors.New("image tag requires an item with an id")
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte("primary:" + item.ID))
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
