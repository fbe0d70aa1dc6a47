// This file defines the public share-link endpoints: resolving a slug into
// the single state an anonymous visitor may see, and exchanging a link
// password for a session token. Resolution runs on every request (nothing
// is cached server-side) so slug rotation and trip expiry cut off old
// links immediately.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maribelle/sitterlink/internal/repository"
	"github.com/maribelle/sitterlink/internal/share"
	"github.com/maribelle/sitterlink/internal/utils"
)

// linkSessionHeader carries the opaque token issued by Unlock.
const linkSessionHeader = "X-Link-Session"

// linkSessionTTL bounds a link session independently of the trip. Slug
// rotation invalidates sessions earlier regardless of this value.
const linkSessionTTL = 72 * time.Hour

// ShareHandler aggregates repositories needed for the anonymous share-link
// flow.
type ShareHandler struct {
	Trips      *repository.TripRepo
	Properties *repository.PropertyRepo
	Sessions   *repository.SessionRepo
}

func NewShareHandler(t *repository.TripRepo, p *repository.PropertyRepo, s *repository.SessionRepo) *ShareHandler {
	return &ShareHandler{Trips: t, Properties: p, Sessions: s}
}

// ----- DTOs -----

type unlockReq struct {
	Password string `json:"password"`
}

type resolveResp struct {
	State        string     `json:"state"`
	TripID       uint64     `json:"trip_id,omitempty"`
	StartsOn     *time.Time `json:"starts_on,omitempty"`
	PropertyName string     `json:"property_name,omitempty"`
	PetNames     []string   `json:"pet_names,omitempty"`
}

// Resolve classifies the slug for an anonymous visitor. The response
// carries only the data needed to render the resolved state.
func (h *ShareHandler) Resolve(c echo.Context) error {
	slug := c.Param("slug")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	trip, err := h.Trips.GetBySlug(ctx, slug)
	if err != nil && err != repository.ErrTripNotFound {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	var snap *share.TripSnapshot
	sessionValid := false
	if trip != nil {
		prop, err := h.Properties.GetByID(ctx, trip.PropertyID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		pets, err := h.Properties.PetNames(ctx, trip.PropertyID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		snap = &share.TripSnapshot{
			TripID:       trip.ID,
			Status:       trip.Status,
			StartsOn:     trip.StartsOn,
			LinkExpiry:   trip.LinkExpiresAt,
			HasPassword:  trip.LinkPasswordHash != nil,
			PropertyName: prop.Name,
			PetNames:     pets,
		}
		sessionValid, err = h.Sessions.Valid(ctx, c.Request().Header.Get(linkSessionHeader), trip.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
	}

	res := share.Resolve(snap, sessionValid, time.Now().UTC())
	resp := resolveResp{State: string(res.State)}
	switch res.State {
	case share.StateNotFound:
		return c.JSON(http.StatusNotFound, resp)
	case share.StateExpired:
		return c.JSON(http.StatusGone, resp)
	case share.StatePasswordRequired:
		return c.JSON(http.StatusOK, resp)
	case share.StateNotStarted:
		starts := res.StartsOn
		resp.StartsOn = &starts
		resp.PropertyName = res.PropertyName
		resp.PetNames = res.PetNames
		return c.JSON(http.StatusOK, resp)
	default: // ACTIVE
		resp.TripID = res.TripID
		return c.JSON(http.StatusOK, resp)
	}
}

// Unlock verifies the trip's link password and issues an opaque session
// token scoped to (trip, current slug generation). Sessions die with the
// slug: rotating the link deletes them all.
func (h *ShareHandler) Unlock(c echo.Context) error {
	slug := c.Param("slug")
	var req unlockReq
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	trip, err := h.Trips.GetBySlug(ctx, slug)
	if err != nil {
		if err == repository.ErrTripNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// An expired link cannot be unlocked; report the same state Resolve would.
	res := share.Resolve(&share.TripSnapshot{
		TripID: trip.ID, Status: trip.Status, StartsOn: trip.StartsOn,
		LinkExpiry: trip.LinkExpiresAt, HasPassword: trip.LinkPasswordHash != nil,
	}, false, time.Now().UTC())
	if res.State == share.StateNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "NOT_FOUND"})
	}
	if res.State == share.StateExpired {
		return c.JSON(http.StatusGone, echo.Map{"error": "EXPIRED"})
	}
	if trip.LinkPasswordHash == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "link has no password"})
	}
	if !utils.VerifyPassword(*trip.LinkPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "reason": "INVALID_PASSWORD"})
	}

	token, err := utils.RandomHex(32)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	sess := &repository.LinkSession{
		Token:     token,
		TripID:    trip.ID,
		ExpiresAt: time.Now().UTC().Add(linkSessionTTL),
	}
	if err := h.Sessions.Create(ctx, sess); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"ok":            true,
		"session_token": token,
		"expires_at":    sess.ExpiresAt,
	})
}
