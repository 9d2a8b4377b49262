package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidState = errors.New("invalid_state")
	ErrExpiredState = errors.New("expired_state")
)

// stateTTL bounds how long an authorization round trip may take.
const stateTTL = 10 * time.Minute

// StateSigner issues and verifies the opaque state value carried through
// the authorization-code round trip, binding it to the initiating user.
// The user's email travels inside the state too: the callback request has
// no identity headers, and the connected service needs a notification
// recipient.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), now: time.Now}
}

// Generate returns nonce.userID.email.issuedAt.signature, base64url
// encoded per part.
func (s *StateSigner) Generate(userID, email string) (string, error) {
	nonce, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	payload := strings.Join([]string{
		base64.RawURLEncoding.EncodeToString(nonce[:]),
		base64.RawURLEncoding.EncodeToString([]byte(userID)),
		base64.RawURLEncoding.EncodeToString([]byte(email)),
		strconv.FormatInt(s.now().Unix(), 10),
	}, ".")
	return payload + "." + s.sign(payload), nil
}

// Verify checks the signature and freshness, returning the user ID and
// email the state was issued for.
func (s *StateSigner) Verify(state string) (userID, email string, err error) {
	parts := strings.Split(state, ".")
	if len(parts) != 5 {
		return "", "", ErrInvalidState
	}
	payload := strings.Join(parts[:4], ".")
	if !hmac.Equal([]byte(s.sign(payload)), []byte(parts[4])) {
		return "", "", ErrInvalidState
	}
	issued, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return "", "", ErrInvalidState
	}
	if s.now().Sub(time.Unix(issued, 0)) > stateTTL {
		return "", "", ErrExpiredState
	}
	rawUser, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", ErrInvalidState
	}
	rawEmail, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", "", ErrInvalidState
	}
	return string(rawUser), string(rawEmail), nil
}

func (s *StateSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
