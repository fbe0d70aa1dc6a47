// Package queue defines message payloads exchanged over the message broker.
package queue

// VaultAccessedEvent is published after one or more secrets are successfully
// disclosed to a verified sitter. It carries enough for downstream consumers
// to notify the owner without querying the primary database. Only secret
// labels travel here, never values. A reveal-all sets ItemCount and leaves
// the per-secret fields empty.
type VaultAccessedEvent struct {
	TripID      uint64 `json:"trip_id"`
	PropertyID  uint64 `json:"property_id"`
	SecretID    uint64 `json:"secret_id,omitempty"`
	SecretLabel string `json:"secret_label,omitempty"`
	ItemCount   int    `json:"item_count"`
	SitterName  string `json:"sitter_name"`
	SitterPhone string `json:"sitter_phone"`
	AccessedAt  string `json:"accessed_at"`
}
