// Package share classifies what an anonymous visitor holding a public slug
// is allowed to see. The resolver is a pure function over a trip snapshot
// and is re-evaluated on every request (never cached server-side), so slug
// rotation and trip expiry take effect immediately for every holder of an
// old link.
package share

import "time"

// State is the single navigable state a slug resolves to.
type State string

const (
	StateNotFound         State = "NOT_FOUND"
	StateExpired          State = "EXPIRED"
	StatePasswordRequired State = "PASSWORD_REQUIRED"
	StateNotStarted       State = "NOT_STARTED"
	StateActive           State = "ACTIVE"
)

// TripSnapshot is the slice of trip data the resolver needs. PropertyName
// and PetNames are included so the NOT_STARTED teaser can be rendered
// without a second lookup.
type TripSnapshot struct {
	TripID       uint64
	Status       string // draft | active | expired | archived
	StartsOn     time.Time
	LinkExpiry   *time.Time
	HasPassword  bool
	PropertyName string
	PetNames     []string
}

// Resolution carries the resolved state plus only the data needed to render
// it. Fields irrelevant to the state are left zero. PASSWORD_REQUIRED carries
// nothing: the unlock flow is keyed by slug, not trip id.
type Resolution struct {
	State        State
	TripID       uint64    // ACTIVE
	StartsOn     time.Time // NOT_STARTED
	PropertyName string    // NOT_STARTED
	PetNames     []string  // NOT_STARTED
}

// Resolve classifies a trip for an anonymous visitor. A nil snapshot means
// the slug matched no trip. Rules are evaluated in order:
//
//  1. no trip, or a draft whose link was never published -> NOT_FOUND
//  2. status expired/archived, or link expiry passed -> EXPIRED; the expiry
//     check runs even when the status still reads active
//  3. password set and no valid link session -> PASSWORD_REQUIRED
//  4. today precedes the start date -> NOT_STARTED
//  5. otherwise -> ACTIVE
func Resolve(trip *TripSnapshot, sessionValid bool, now time.Time) Resolution {
	if trip == nil || trip.Status == "draft" {
		return Resolution{State: StateNotFound}
	}
	if trip.Status == "expired" || trip.Status == "archived" {
		return Resolution{State: StateExpired}
	}
	if trip.LinkExpiry != nil && now.After(*trip.LinkExpiry) {
		return Resolution{State: StateExpired}
	}
	if trip.HasPassword && !sessionValid {
		return Resolution{State: StatePasswordRequired}
	}
	if now.Before(trip.StartsOn) {
		return Resolution{
			State:        StateNotStarted,
			StartsOn:     trip.StartsOn,
			PropertyName: trip.PropertyName,
			PetNames:     trip.PetNames,
		}
	}
	return Resolution{State: StateActive, TripID: trip.TripID}
}
