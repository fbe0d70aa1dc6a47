// This file defines the sitter-facing vault endpoints: requesting a
// possession-proof code, verifying it, and revealing secrets. Every reveal
// runs the full access gate first (trip active, sitter registered with
// vault access, verified PIN session) and decryption happens only after
// all three layers pass. Every disclosure attempt, successful or not, lands
// in the audit trail.
package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maribelle/sitterlink/internal/gate"
	"github.com/maribelle/sitterlink/internal/pin"
	"github.com/maribelle/sitterlink/internal/queue"
	"github.com/maribelle/sitterlink/internal/repository"
	notify "github.com/maribelle/sitterlink/internal/service"
	"github.com/maribelle/sitterlink/internal/sms"
	"github.com/maribelle/sitterlink/internal/vault"
)

// VaultHandler bundles everything the disclosure pipeline needs.
type VaultHandler struct {
	Trips         *repository.TripRepo
	Sitters       *repository.SitterRepo
	Verifications *repository.VerificationRepo
	Secrets       *repository.SecretRepo
	Properties    *repository.PropertyRepo
	Audits        *repository.AuditRepo
	Store         *vault.Store
	SMS           sms.Dispatcher

	// Publish is the async owner-notification hook; overridable in tests.
	Publish func(ctx context.Context, ev queue.VaultAccessedEvent) error
}

func NewVaultHandler(
	trips *repository.TripRepo,
	sitters *repository.SitterRepo,
	verifications *repository.VerificationRepo,
	secrets *repository.SecretRepo,
	properties *repository.PropertyRepo,
	audits *repository.AuditRepo,
	store *vault.Store,
	dispatcher sms.Dispatcher,
) *VaultHandler {
	return &VaultHandler{
		Trips:         trips,
		Sitters:       sitters,
		Verifications: verifications,
		Secrets:       secrets,
		Properties:    properties,
		Audits:        audits,
		Store:         store,
		SMS:           dispatcher,
		Publish:       notify.PublishVaultAccessed,
	}
}

// ----- DTOs -----

type phoneReq struct {
	Phone string `json:"phone"`
}
type verifyReq struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}
type revealedSecret struct {
	ID           uint64  `json:"id"`
	Category     string  `json:"category"`
	Label        string  `json:"label"`
	Instructions *string `json:"instructions,omitempty"`
	Value        string  `json:"value"`
}

// gateState is everything the gate needs, loaded in one place so the three
// layers are evaluated identically by every endpoint.
type gateState struct {
	trip   *repository.Trip
	sitter *repository.Sitter
	verif  *repository.PendingVerification

	tripState   gate.TripState
	sitterState *gate.SitterState
	challenge   *pin.Challenge
}

func (h *VaultHandler) loadGateState(ctx context.Context, tripID uint64, phone string) (*gateState, error) {
	st := &gateState{}

	trip, err := h.Trips.GetByID(ctx, tripID)
	if err != nil && err != repository.ErrTripNotFound {
		return nil, err
	}
	if trip != nil {
		st.trip = trip
		st.tripState = gate.TripState{
			Found:      true,
			PropertyID: trip.PropertyID,
			Active:     trip.Status == repository.TripStatusActive,
		}

		sitter, err := h.Sitters.FindByTripAndPhone(ctx, tripID, phone)
		if err != nil && err != repository.ErrSitterNotFound {
			return nil, err
		}
		if sitter != nil {
			st.sitter = sitter
			st.sitterState = &gate.SitterState{Name: sitter.Name, VaultAccess: sitter.VaultAccess}
		}

		verif, err := h.Verifications.Get(ctx, tripID, phone)
		if err != nil && err != repository.ErrVerificationNotFound {
			return nil, err
		}
		if verif != nil {
			st.verif = verif
			st.challenge = &pin.Challenge{
				CodeHash:  verif.CodeHash,
				Salt:      verif.Salt,
				ExpiresAt: verif.ExpiresAt,
				Attempts:  verif.Attempts,
				Verified:  verif.Verified,
			}
		}
	}
	return st, nil
}

func gateStatus(r gate.Reason) int {
	if r == gate.ReasonNotVerified {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// IssueCode generates and dispatches a 6-digit code for (trip, phone).
// Issuing always replaces any prior pending or verified record for the key.
// A delivery failure is non-fatal: the code stays valid and the response
// says so, the sitter may simply ask for a resend.
func (h *VaultHandler) IssueCode(c echo.Context) error {
	tripID := paramID(c, "id")
	var req phoneReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	phone := gate.NormalizePhone(req.Phone)
	if tripID == 0 || phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip and phone required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.loadGateState(ctx, tripID, phone)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if reason := gate.EvaluateIssue(st.tripState, st.sitterState); reason != gate.ReasonAllowed {
		return c.JSON(http.StatusForbidden, echo.Map{"error": string(reason)})
	}

	code, err := pin.GenerateCode()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
	}
	salt, err := pin.NewSalt()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
	}
	rec := &repository.PendingVerification{
		TripID:    tripID,
		Phone:     phone,
		CodeHash:  pin.HashCode(code, salt),
		Salt:      salt,
		ExpiresAt: time.Now().UTC().Add(pin.PendingTTL),
	}
	if err := h.Verifications.Upsert(ctx, rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue code failed"})
	}

	body := fmt.Sprintf("Your vault access code is %s. It expires in 10 minutes.", code)
	if err := h.SMS.Send(ctx, req.Phone, body); err != nil {
		log.Printf("vault: code dispatch failed for trip=%d: %v", tripID, err)
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "delivery": "failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// VerifyCode checks a submitted code against the pending record. Outcomes
// follow the PIN state machine; a success promotes the record to a 24-hour
// verified session. Failed guesses are audited.
func (h *VaultHandler) VerifyCode(c echo.Context) error {
	tripID := paramID(c, "id")
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	phone := gate.NormalizePhone(req.Phone)
	if tripID == 0 || phone == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip, phone and code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.loadGateState(ctx, tripID, phone)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	now := time.Now().UTC()
	switch res := pin.Evaluate(st.challenge, req.Code, now); res {
	case pin.VerifyNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": res.Code()})

	case pin.VerifyExpired:
		// Delete the stale record so a guessable hash is not left around.
		_ = h.Verifications.Delete(ctx, tripID, phone)
		return c.JSON(http.StatusGone, echo.Map{"error": res.Code()})

	case pin.VerifyMaxAttempts:
		h.auditFailure(ctx, st, tripID, phone)
		return c.JSON(http.StatusForbidden, echo.Map{"error": res.Code()})

	case pin.VerifyInvalid:
		if err := h.Verifications.IncrementAttempts(ctx, tripID, phone); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
		}
		h.auditFailure(ctx, st, tripID, phone)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": res.Code()})

	default: // VerifyOK
		validUntil := now.Add(pin.VerifiedTTL)
		if err := h.Verifications.MarkVerified(ctx, tripID, phone, validUntil); err != nil {
			if err == repository.ErrAlreadyVerified {
				// Another request won the race; this one is consumed.
				return c.JSON(http.StatusNotFound, echo.Map{"error": pin.VerifyNotFound.Code()})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verify failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "valid_until": validUntil})
	}
}

// RevealSecret decrypts one secret for a verified sitter.
func (h *VaultHandler) RevealSecret(c echo.Context) error {
	tripID := paramID(c, "id")
	secretID := paramID(c, "secretId")
	var req phoneReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	phone := gate.NormalizePhone(req.Phone)
	if tripID == 0 || secretID == 0 || phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip, secret and phone required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.loadGateState(ctx, tripID, phone)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if reason := gate.Evaluate(st.tripState, st.sitterState, st.challenge, time.Now().UTC()); reason != gate.ReasonAllowed {
		return c.JSON(gateStatus(reason), echo.Map{"error": string(reason)})
	}

	secret, err := h.Secrets.GetByID(ctx, secretID)
	if err != nil && err != repository.ErrSecretNotFound {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	// A secret from another property is indistinguishable from a missing one.
	if secret == nil || secret.PropertyID != st.trip.PropertyID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ITEM_NOT_FOUND"})
	}

	plaintext, err := h.Store.Decrypt(secret.Blob())
	if err != nil {
		// Key mismanagement or tampering; never return substitute data.
		log.Printf("vault: integrity failure decrypting secret=%d: %v", secret.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not decrypt, contact support"})
	}

	if err := h.auditSuccess(ctx, st, secret); err != nil {
		// Disclosure without an audit row would break the trail; fail closed.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit failed"})
	}
	h.notifyOwner(st, secret, 1)

	return c.JSON(http.StatusOK, revealedSecret{
		ID:           secret.ID,
		Category:     secret.Category,
		Label:        secret.Label,
		Instructions: secret.Instructions,
		Value:        string(plaintext),
	})
}

// RevealAll decrypts every secret of the trip's property for a verified
// sitter. A record that fails its integrity check is reported as
// undecryptable in place, never silently dropped or substituted.
func (h *VaultHandler) RevealAll(c echo.Context) error {
	tripID := paramID(c, "id")
	var req phoneReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	phone := gate.NormalizePhone(req.Phone)
	if tripID == 0 || phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip and phone required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.loadGateState(ctx, tripID, phone)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if reason := gate.Evaluate(st.tripState, st.sitterState, st.challenge, time.Now().UTC()); reason != gate.ReasonAllowed {
		return c.JSON(gateStatus(reason), echo.Map{"error": string(reason)})
	}

	secrets, err := h.Secrets.ListByProperty(ctx, st.trip.PropertyID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	type revealAllItem struct {
		revealedSecret
		Error string `json:"error,omitempty"`
	}
	items := make([]revealAllItem, 0, len(secrets))
	revealed := 0
	for _, s := range secrets {
		item := revealAllItem{revealedSecret: revealedSecret{
			ID: s.ID, Category: s.Category, Label: s.Label, Instructions: s.Instructions,
		}}
		plaintext, err := h.Store.Decrypt(s.Blob())
		if err != nil {
			log.Printf("vault: integrity failure decrypting secret=%d: %v", s.ID, err)
			item.Error = "could not decrypt, contact support"
		} else {
			item.Value = string(plaintext)
			if err := h.auditSuccess(ctx, st, s); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "audit failed"})
			}
			revealed++
		}
		items = append(items, item)
	}
	if revealed > 0 {
		h.notifyOwner(st, nil, revealed)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "items": items})
}

// auditSuccess writes the synchronous audit row for one disclosed secret.
func (h *VaultHandler) auditSuccess(ctx context.Context, st *gateState, secret *repository.SecretItem) error {
	var name *string
	if st.sitter != nil {
		name = &st.sitter.Name
	}
	sid := secret.ID
	return h.Audits.Insert(ctx, &repository.AuditEntry{
		TripID:   st.trip.ID,
		SecretID: &sid,
		Phone:    st.sitter.Phone,
		Name:     name,
		Verified: true,
	})
}

// auditFailure records a failed PIN attempt. Failures are audit-only and
// never trigger an owner notification; a best-effort write is enough.
func (h *VaultHandler) auditFailure(ctx context.Context, st *gateState, tripID uint64, phone string) {
	var name *string
	if st.sitter != nil {
		name = &st.sitter.Name
	}
	if err := h.Audits.Insert(ctx, &repository.AuditEntry{
		TripID:   tripID,
		Phone:    phone,
		Name:     name,
		Verified: false,
	}); err != nil {
		log.Printf("vault: audit write failed for trip=%d: %v", tripID, err)
	}
}

// notifyOwner schedules the asynchronous owner notification for a
// successful disclosure. Publish failures are logged inside the publisher;
// the request is already answered by then.
func (h *VaultHandler) notifyOwner(st *gateState, secret *repository.SecretItem, count int) {
	ev := queue.VaultAccessedEvent{
		TripID:      st.trip.ID,
		PropertyID:  st.trip.PropertyID,
		SitterPhone: st.sitter.Phone,
		SitterName:  st.sitter.Name,
		ItemCount:   count,
		AccessedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if secret != nil {
		ev.SecretID = secret.ID
		ev.SecretLabel = secret.Label
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.Publish(ctx, ev)
	}()
}
