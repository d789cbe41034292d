package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"staffdesk/account-service/internal/app/accounts/entity"
)

const actionTokenSalt = "staffdesk.accounts.action-token."

// clockSkew - допустимое опережение метки времени токена относительно часов сервиса
const clockSkew = time.Minute

// ActionTokenGenerator выпускает одноразовые токены активации и сброса пароля.
// Токен не хранится: он действителен, пока не изменились поля, к которым привязан, и не истёк maxAge.
// Формат: "<unix секунды в base36>-<hex HMAC-SHA256>".
type ActionTokenGenerator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewActionTokenGenerator(secret string, maxAge time.Duration) *ActionTokenGenerator {
	return &ActionTokenGenerator{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// WithClock подменяет источник времени (для тестов)
func (g *ActionTokenGenerator) WithClock(now func() time.Time) *ActionTokenGenerator {
	g.now = now
	return g
}

// MakeToken выпускает токен для пользователя и назначения
func (g *ActionTokenGenerator) MakeToken(user *entity.User, purpose entity.TokenPurpose) string {
	ts := g.now().Unix()
	return strconv.FormatInt(ts, 36) + "-" + hex.EncodeToString(g.sign(user, purpose, ts))
}

// CheckToken пересчитывает подпись по текущему состоянию пользователя и проверяет срок действия
func (g *ActionTokenGenerator) CheckToken(user *entity.User, purpose entity.TokenPurpose, token string) bool {
	if user == nil || token == "" {
		return false
	}

	tsPart, sigPart, ok := strings.Cut(token, "-")
	if !ok || tsPart == "" || sigPart == "" {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts < 0 {
		return false
	}

	sig, err := hex.DecodeString(sigPart)
	if err != nil {
		return false
	}

	if !hmac.Equal(sig, g.sign(user, purpose, ts)) {
		return false
	}

	issued := time.Unix(ts, 0)
	now := g.now()
	if issued.After(now.Add(clockSkew)) {
		return false
	}
	return now.Sub(issued) <= g.maxAge
}

func (g *ActionTokenGenerator) sign(user *entity.User, purpose entity.TokenPurpose, ts int64) []byte {
	// ключ свой для каждого назначения: токен активации не подходит для сброса пароля
	keyHash := sha256.Sum256(append([]byte(actionTokenSalt+string(purpose)+"."), g.secret...))

	mac := hmac.New(sha256.New, keyHash[:])
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte{0})
	mac.Write([]byte(user.ID.String()))
	for _, field := range user.TokenState(purpose) {
		mac.Write([]byte{0})
		mac.Write([]byte(field))
	}
	return mac.Sum(nil)
}
