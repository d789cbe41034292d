package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"
)

var ErrInvalidState = errors.New("invalid oauth state")

// StateSigner выпускает и проверяет параметр state для OAuth редиректа.
// State самодостаточен (nonce + срок действия + HMAC), серверная сессия не нужна.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	key := sha256.Sum256([]byte("staffdesk.accounts.oauth-state." + secret))
	return &StateSigner{key: key[:], ttl: ttl, now: time.Now}
}

// WithClock подменяет источник времени (для тестов)
func (s *StateSigner) WithClock(now func() time.Time) *StateSigner {
	s.now = now
	return s
}

// Issue возвращает новый state
func (s *StateSigner) Issue() (string, error) {
	payload := make([]byte, 24)
	if _, err := rand.Read(payload[:16]); err != nil {
		return "", err
	}
	binary.BigEndian.PutUint64(payload[16:], uint64(s.now().Add(s.ttl).Unix()))

	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(s.mac(payload)), nil
}

// Verify проверяет подпись и срок действия state
func (s *StateSigner) Verify(state string) error {
	payloadPart, sigPart, ok := strings.Cut(state, ".")
	if !ok {
		return ErrInvalidState
	}

	enc := base64.RawURLEncoding
	payload, err := enc.DecodeString(payloadPart)
	if err != nil || len(payload) != 24 {
		return ErrInvalidState
	}
	sig, err := enc.DecodeString(sigPart)
	if err != nil || !hmac.Equal(sig, s.mac(payload)) {
		return ErrInvalidState
	}

	expires := time.Unix(int64(binary.BigEndian.Uint64(payload[16:])), 0)
	if s.now().After(expires) {
		return ErrInvalidState
	}
	return nil
}

func (s *StateSigner) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write(payload)
	return m.Sum(nil)
}
