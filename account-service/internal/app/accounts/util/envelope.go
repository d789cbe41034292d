package util

import (
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

var ErrDecryptionFailed = errors.New("envelope decryption failed")

var (
	envelopeKeyAlgorithms = []jose.KeyAlgorithm{jose.A256KW}
	envelopeEncryptions   = []jose.ContentEncryption{jose.A256CBC_HS512}
)

// Envelope шифрует подписанный refresh токен для хранения в cookie (компактный JWE, A256KW + A256CBC-HS512)
type Envelope struct {
	key       []byte
	encrypter jose.Encrypter
}

// NewEnvelope создаёт шифратор на 32-байтном ключе процесса
func NewEnvelope(key []byte) (*Envelope, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("envelope key must be 32 bytes, got %d", len(key))
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256CBC_HS512,
		jose.Recipient{Algorithm: jose.A256KW, Key: key},
		(&jose.EncrypterOptions{}).WithContentType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypter: %w", err)
	}

	return &Envelope{key: key, encrypter: encrypter}, nil
}

// Encrypt возвращает компактную сериализацию JWE
func (e *Envelope) Encrypt(plaintext string) (string, error) {
	obj, err := e.encrypter.Encrypt([]byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt envelope: %w", err)
	}
	return obj.CompactSerialize()
}

// Decrypt расшифровывает envelope. Любая ошибка разбора или проверки целостности даёт ErrDecryptionFailed.
func (e *Envelope) Decrypt(envelope string) (string, error) {
	obj, err := jose.ParseEncryptedCompact(envelope, envelopeKeyAlgorithms, envelopeEncryptions)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	plaintext, err := obj.Decrypt(e.key)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
