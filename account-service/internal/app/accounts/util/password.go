package util

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"

	"staffdesk/account-service/internal/app/accounts/entity"
)

// HashPassword хэширует пароль с использованием bcrypt
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword проверяет, соответствует ли пароль хэшу.
// Для непригодного хэша (вход только через Google) всегда false.
func CheckPassword(password, hash string) bool {
	if hash == "" || hash[:1] == entity.UnusablePasswordPrefix {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// UnusablePassword возвращает значение, которое никогда не совпадёт ни с одним паролем
func UnusablePassword() string {
	b := make([]byte, 20)
	_, _ = rand.Read(b)
	return entity.UnusablePasswordPrefix + hex.EncodeToString(b)
}
