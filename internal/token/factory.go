package token

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/spec-kit/worker-auth-service/internal/domain"
	apperrors "github.com/spec-kit/worker-auth-service/pkg/util"
)

const (
	// loginSeedHexLen is the deterministic prefix taken from the seed digest.
	loginSeedHexLen = 32
	// loginRandomBytes fills the remainder of the 64-char login token.
	loginRandomBytes = 16
	// sessionTokenBytes yields 64 hex chars, double the required minimum.
	sessionTokenBytes = 32
)

// IssueLoginToken builds a 64-character QR login token: the SHA3-256 digest
// of workerID, adminID and the issue time in millis, truncated, concatenated
// with random bytes.
func IssueLoginToken(workerID, adminID string, now time.Time) (string, error) {
	seed := workerID + adminID + strconv.FormatInt(now.UnixMilli(), 10)
	digest := sha3.Sum256([]byte(seed))

	suffix := make([]byte, loginRandomBytes)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}

	value := hex.EncodeToString(digest[:])[:loginSeedHexLen] + hex.EncodeToString(suffix)
	if len(value) != domain.LoginTokenLength {
		return "", apperrors.NewInvalidToken(
			fmt.Sprintf("login token length %d, want %d", len(value), domain.LoginTokenLength))
	}
	return value, nil
}

// IssueSessionToken builds a cryptographically random session token.
func IssueSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}

	value := hex.EncodeToString(buf)
	if len(value) < domain.SessionTokenMinLength {
		return "", apperrors.NewInvalidToken(
			fmt.Sprintf("session token length %d, want at least %d", len(value), domain.SessionTokenMinLength))
	}
	return value, nil
}

// IssueHumanCode builds a 6-digit code workers can type instead of scanning.
// It is a convenience channel with no guarantee beyond the QR token it
// accompanies.
func IssueHumanCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	n := binary.BigEndian.Uint32(buf) % 1000000
	return fmt.Sprintf("%06d", n), nil
}
