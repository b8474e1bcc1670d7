package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/devkekops/weekender/internal/app/logger"
)

type key string

const (
	cookieName             = "session"
	cookiePath             = "/"
	accountIDKey       key = "accountID"
	signatureLength        = 32
	invalidCookie          = "Invalid cookie"
	invalidCredentials     = "Invalid credentials"
	bearerPrefix           = "Bearer "
)

func sign(accountID []byte, secretKey string) []byte {
	key := sha256.Sum256([]byte(secretKey))
	h := hmac.New(sha256.New, key[:])
	h.Write(accountID)
	return h.Sum(nil)
}

// createSession returns the cookie value: hex(accountID || hmac(accountID)).
func createSession(accountID string, secretKey string) string {
	accountIDBytes := []byte(accountID)
	session := append(accountIDBytes, sign(accountIDBytes, secretKey)...)
	return hex.EncodeToString(session)
}

func checkSignature(cookieValue string, secretKey string) (string, error) {
	session, err := hex.DecodeString(cookieValue)
	if err != nil {
		return "", err
	}

	if len(session) <= signatureLength {
		return "", fmt.Errorf("invalid cookie length")
	}

	accountIDLength := len(session) - signatureLength
	accountID := session[:accountIDLength]

	if !hmac.Equal(sign(accountID, secretKey), session[accountIDLength:]) {
		return "", fmt.Errorf("invalid signature")
	}
	return string(accountID), nil
}

func authHandle(secretKey string) (ah func(http.Handler) http.Handler) {
	ah = func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionCookie, err := r.Cookie(cookieName)
			if err != nil {
				http.Error(w, invalidCredentials, http.StatusUnauthorized)
				logger.Logger.Debug().Err(err).Msg("no session cookie")
				return
			}

			accountID, err := checkSignature(sessionCookie.Value, secretKey)
			if err != nil {
				http.Error(w, invalidCookie, http.StatusUnauthorized)
				logger.Logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejected session cookie")
				return
			}
			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	return
}

// operatorHandle gates admin routes behind a bearer key. An empty key
// disables them.
func operatorHandle(operatorKey string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if operatorKey == "" {
				http.Error(w, "Operator access disabled", http.StatusForbidden)
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				http.Error(w, invalidCredentials, http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(header, bearerPrefix)
			if subtle.ConstantTimeCompare([]byte(token), []byte(operatorKey)) != 1 {
				http.Error(w, invalidCredentials, http.StatusUnauthorized)
				logger.Logger.Warn().Str("remote", r.RemoteAddr).Msg("rejected operator key")
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

func accountID(r *http.Request) string {
	id, _ := r.Context().Value(accountIDKey).(string)
	return id
}
