package settlement

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/devkekops/weekender/internal/app/entity"
	"github.com/devkekops/weekender/internal/app/logger"
	"github.com/devkekops/weekender/internal/app/storage"
)

// SecretStep tells the caller which prompt the security gate expects next.
type SecretStep string

const (
	SecretSet   SecretStep = "set"
	SecretEnter SecretStep = "enter"
)

func validSecret(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (e *Engine) SecretStep(ctx context.Context, accountID string) (SecretStep, error) {
	var step SecretStep
	err := e.repo.View(ctx, func(q storage.Querier) error {
		account, err := q.GetAccount(ctx, accountID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUnknownAccount
		}
		if err != nil {
			return err
		}
		step = SecretSet
		if account.HasSecret() {
			step = SecretEnter
		}
		return nil
	})
	return step, err
}

// SetSecret stores the first withdrawal secret. confirm must repeat secret.
// Once stored the secret cannot be replaced.
func (e *Engine) SetSecret(ctx context.Context, accountID, secret, confirm string) error {
	hash, err := e.hashSecret(secret, confirm)
	if err != nil {
		return err
	}
	err = e.transact(ctx, "set_secret", func(q storage.Querier) error {
		return q.SetSecretHash(ctx, accountID, hash)
	})
	switch {
	case errors.Is(err, storage.ErrAlreadySet):
		return ErrSecretAlreadySet
	case errors.Is(err, storage.ErrNotFound):
		return ErrUnknownAccount
	case err != nil:
		return err
	}
	logger.Logger.Info().Str("account", accountID).Msg("withdrawal secret set")
	return nil
}

// CheckSecret compares secret with the stored one.
func (e *Engine) CheckSecret(ctx context.Context, accountID, secret string) error {
	var account entity.Account
	err := e.repo.View(ctx, func(q storage.Querier) error {
		var err error
		account, err = q.GetAccount(ctx, accountID)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUnknownAccount
	}
	if err != nil {
		return err
	}
	return compareSecret(account, secret)
}

func compareSecret(account entity.Account, secret string) error {
	if !validSecret(secret) {
		return &ValidationError{Field: "secret", Reason: "must be exactly 4 digits"}
	}
	if !account.HasSecret() {
		return &AuthorizationError{Reason: "no secret set"}
	}
	err := bcrypt.CompareHashAndPassword([]byte(*account.SecretHash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return &AuthorizationError{Reason: "secret does not match"}
	}
	return err
}

func (e *Engine) hashSecret(secret, confirm string) (string, error) {
	if !validSecret(secret) {
		return "", &ValidationError{Field: "secret", Reason: "must be exactly 4 digits"}
	}
	if secret != confirm {
		return "", &AuthorizationError{Reason: "confirmation does not match"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), e.secretCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// gate runs the security step of a withdrawal. Later uses compare secret.
// On first use it returns the hash of the new secret, which the settling
// transaction stores, so a refused withdrawal leaves no secret behind.
func (e *Engine) gate(account entity.Account, secret, confirm string) (string, error) {
	if account.HasSecret() {
		return "", compareSecret(account, secret)
	}
	if confirm == "" {
		if !validSecret(secret) {
			return "", &ValidationError{Field: "secret", Reason: "must be exactly 4 digits"}
		}
		return "", &ValidationError{Field: "confirm", Reason: "repeat the new secret to confirm it"}
	}
	return e.hashSecret(secret, confirm)
}

// storeSecret writes a first-use secret inside the settling transaction. If
// another request set one since the gate ran, secret is compared with it.
func storeSecret(ctx context.Context, q storage.Querier, account entity.Account, secret, hash string) error {
	if hash == "" {
		return nil
	}
	if account.HasSecret() {
		return compareSecret(account, secret)
	}
	err := q.SetSecretHash(ctx, account.ID, hash)
	if errors.Is(err, storage.ErrAlreadySet) {
		return ErrSecretAlreadySet
	}
	return vanished("account", err)
}
