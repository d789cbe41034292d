package util

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// EncodeUID кодирует ID пользователя для ссылок активации и сброса пароля
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID разбирает закодированный ID пользователя
func DecodeUID(uid string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(string(raw))
}
