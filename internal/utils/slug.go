package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewSlug returns a fresh public slug for a trip's share link. A v4 UUID
// without dashes: unguessable, URL-safe, and cheap to index. The slug is the
// sole credential an anonymous visitor holds, so it comes from the same
// CSPRNG as every other token in the system.
func NewSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
