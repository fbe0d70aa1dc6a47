// This file defines the owner-side endpoints that touch the disclosure
// core: rotating a trip's share link (the sole revocation primitive),
// reading the audit trail, and authoring vault secrets. All routes here sit
// behind JWT auth; ownership is re-checked against the database on every
// call rather than trusted from the token.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maribelle/sitterlink/internal/middleware"
	"github.com/maribelle/sitterlink/internal/repository"
	"github.com/maribelle/sitterlink/internal/utils"
	"github.com/maribelle/sitterlink/internal/vault"
)

// OwnerHandler aggregates dependencies for owner-side vault management.
type OwnerHandler struct {
	Trips      *repository.TripRepo
	Properties *repository.PropertyRepo
	Secrets    *repository.SecretRepo
	Audits     *repository.AuditRepo
	Store      *vault.Store
}

func NewOwnerHandler(t *repository.TripRepo, p *repository.PropertyRepo,
	s *repository.SecretRepo, a *repository.AuditRepo, store *vault.Store) *OwnerHandler {
	return &OwnerHandler{Trips: t, Properties: p, Secrets: s, Audits: a, Store: store}
}

// paramID parses a numeric path parameter, returning 0 on garbage.
func paramID(c echo.Context, name string) uint64 {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// ----- DTOs -----

type createSecretReq struct {
	Category     string  `json:"category"`
	Label        string  `json:"label"`
	Instructions *string `json:"instructions"`
	SortOrder    uint32  `json:"sort_order"`
	Value        string  `json:"value"`
}
type updateValueReq struct {
	Value string `json:"value"`
}
type updateMetaReq struct {
	Label        string  `json:"label"`
	Instructions *string `json:"instructions"`
}
type secretMetaResp struct {
	ID           uint64  `json:"id"`
	PropertyID   uint64  `json:"property_id"`
	Category     string  `json:"category"`
	Label        string  `json:"label"`
	Instructions *string `json:"instructions,omitempty"`
	SortOrder    uint32  `json:"sort_order"`
}
type auditEntryResp struct {
	ID         uint64    `json:"id"`
	TripID     uint64    `json:"trip_id"`
	SecretID   *uint64   `json:"secret_id,omitempty"`
	Phone      string    `json:"phone"`
	Name       *string   `json:"name,omitempty"`
	Verified   bool      `json:"verified"`
	AccessedAt time.Time `json:"accessed_at"`
}

// RotateLink replaces the trip's public slug and, with it, invalidates
// every outstanding link session. Holders of the old link get NOT_FOUND on
// their next request.
func (h *OwnerHandler) RotateLink(c echo.Context) error {
	tripID := paramID(c, "id")
	if tripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	newSlug := utils.NewSlug()
	if err := h.Trips.RotateSlug(ctx, tripID, middleware.OwnerID(c), newSlug); err != nil {
		if err == repository.ErrTripNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "rotate failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"slug": newSlug})
}

// Audit returns the property's disclosure trail, newest first. Only the
// property's own owner may read it.
func (h *OwnerHandler) Audit(c echo.Context) error {
	propertyID := paramID(c, "id")
	if propertyID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid property id"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Properties.GetByIDAndOwner(ctx, propertyID, middleware.OwnerID(c)); err != nil {
		if err == repository.ErrPropertyNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	entries, err := h.Audits.ListByProperty(ctx, propertyID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]auditEntryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResp{
			ID: e.ID, TripID: e.TripID, SecretID: e.SecretID, Phone: e.Phone,
			Name: e.Name, Verified: e.Verified, AccessedAt: e.AccessedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": out})
}

// CreateSecret encrypts the submitted value synchronously and persists the
// new item. Plaintext exists only in this request's memory; by the time the
// row is written there is nothing but the blob.
func (h *OwnerHandler) CreateSecret(c echo.Context) error {
	propertyID := paramID(c, "id")
	var req createSecretReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Label = strings.TrimSpace(req.Label)
	if propertyID == 0 || req.Label == "" || req.Value == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "label and value required"})
	}
	if !repository.ValidCategory(req.Category) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Properties.GetByIDAndOwner(ctx, propertyID, middleware.OwnerID(c)); err != nil {
		if err == repository.ErrPropertyNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "property not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	blob, err := h.Store.Encrypt([]byte(req.Value))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encrypt failed"})
	}
	item := &repository.SecretItem{
		PropertyID:   propertyID,
		Category:     req.Category,
		Label:        req.Label,
		Instructions: req.Instructions,
		Nonce:        blob.Nonce,
		Ciphertext:   blob.Ciphertext,
		Tag:          blob.Tag,
		SortOrder:    req.SortOrder,
	}
	if err := h.Secrets.Create(ctx, item); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, secretMetaResp{
		ID: item.ID, PropertyID: item.PropertyID, Category: item.Category,
		Label: item.Label, Instructions: item.Instructions, SortOrder: item.SortOrder,
	})
}

// loadOwnedSecret fetches a secret and verifies the caller owns its
// property. Missing and not-owned are indistinguishable to the caller.
func (h *OwnerHandler) loadOwnedSecret(ctx context.Context, c echo.Context, secretID uint64) (*repository.SecretItem, error) {
	secret, err := h.Secrets.GetByID(ctx, secretID)
	if err != nil {
		return nil, err
	}
	if _, err := h.Properties.GetByIDAndOwner(ctx, secret.PropertyID, middleware.OwnerID(c)); err != nil {
		if err == repository.ErrPropertyNotFound {
			return nil, repository.ErrSecretNotFound
		}
		return nil, err
	}
	return secret, nil
}

// UpdateSecretValue replaces a secret's value: full re-encryption under the
// current key, old blob discarded.
func (h *OwnerHandler) UpdateSecretValue(c echo.Context) error {
	secretID := paramID(c, "id")
	var req updateValueReq
	if err := c.Bind(&req); err != nil || req.Value == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "value required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.loadOwnedSecret(ctx, c, secretID); err != nil {
		if err == repository.ErrSecretNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "secret not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	blob, err := h.Store.Encrypt([]byte(req.Value))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encrypt failed"})
	}
	if err := h.Secrets.UpdateValue(ctx, secretID, blob); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateSecretMeta edits label/instructions without touching the blob.
func (h *OwnerHandler) UpdateSecretMeta(c echo.Context) error {
	secretID := paramID(c, "id")
	var req updateMetaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "label required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.loadOwnedSecret(ctx, c, secretID); err != nil {
		if err == repository.ErrSecretNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "secret not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Secrets.UpdateMeta(ctx, secretID, req.Label, req.Instructions); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteSecret removes an item entirely. The audit rows that reference it
// keep their secret_id so past disclosures stay attributable.
func (h *OwnerHandler) DeleteSecret(c echo.Context) error {
	secretID := paramID(c, "id")
	if secretID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid secret id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.loadOwnedSecret(ctx, c, secretID); err != nil {
		if err == repository.ErrSecretNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "secret not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Secrets.Delete(ctx, secretID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
