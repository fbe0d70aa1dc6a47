// Command rotate re-encrypts every stored secret under the current vault
// key. It is the batch half of the key-rotation protocol: deploy with both
// VAULT_KEY (new) and VAULT_KEY_PREVIOUS (old) set, run this job, verify,
// then retire VAULT_KEY_PREVIOUS. The job is idempotent (blobs already on
// the current key are skipped) and safe to re-run after a partial failure.
package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/maribelle/sitterlink/internal/config"
	"github.com/maribelle/sitterlink/internal/database"
	"github.com/maribelle/sitterlink/internal/repository"
	"github.com/maribelle/sitterlink/internal/vault"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	keys, err := vault.LoadKeyset(cfg.VaultKeyHex, cfg.VaultPreviousKeyHex)
	if err != nil {
		log.Fatal(err)
	}
	if keys.Previous == nil {
		log.Fatal("rotate: VAULT_KEY_PREVIOUS must be set for a rotation run")
	}
	store := vault.NewStore(keys)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal(err)
	}
	secrets := repository.NewSecretRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	items, err := secrets.ListAll(ctx)
	if err != nil {
		log.Fatalf("rotate: list secrets: %v", err)
	}

	var rewritten, skipped, failed int
	for _, item := range items {
		if !store.NeedsReencrypt(item.Blob()) {
			skipped++
			continue
		}
		plaintext, err := store.Decrypt(item.Blob())
		if err != nil {
			// Unreadable under either key: key mismanagement or tampering.
			// Leave the row alone and report it; never write garbage back.
			log.Printf("rotate: secret=%d failed integrity check, skipping", item.ID)
			failed++
			continue
		}
		blob, err := store.Encrypt(plaintext)
		if err != nil {
			log.Fatalf("rotate: encrypt secret=%d: %v", item.ID, err)
		}
		if err := secrets.UpdateValue(ctx, item.ID, blob); err != nil {
			log.Fatalf("rotate: update secret=%d: %v", item.ID, err)
		}
		rewritten++
	}

	log.Printf("rotate: done, %d rewritten, %d already current, %d unreadable",
		rewritten, skipped, failed)
	if failed > 0 {
		log.Fatal("rotate: some records were unreadable; do not retire the previous key")
	}
}
