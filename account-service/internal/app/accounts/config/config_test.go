package config

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJWEKey(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{name: "hex key", raw: strings.Repeat("ab", 32), wantLen: 32},
		{name: "raw 32 byte key", raw: strings.Repeat("k", 32), wantLen: 32},
		{name: "empty key", raw: "", wantErr: true},
		{name: "short key", raw: "short", wantErr: true},
		{name: "hex of wrong length", raw: strings.Repeat("ab", 16), wantErr: true},
		{name: "long hex", raw: strings.Repeat("ab", 48), wantErr: true},
		{name: "raw key with one non-hex char", raw: strings.Repeat("ab", 15) + "zz", wantLen: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseJWEKey(tt.raw)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJWEKey)
				return
			}
			require.NoError(t, err)
			assert.Len(t, key, tt.wantLen)
		})
	}
}

func TestParseJWEKey_HexWinsOverRaw(t *testing.T) {
	// Arrange: 64 hex символа декодируются в 32 байта
	raw := strings.Repeat("0f", 32)

	// Act
	key, err := ParseJWEKey(raw)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, byte(0x0f), key[0])
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWE_KEY", strings.Repeat("ab", 32))
	t.Setenv("JWT_ACCESS_DURATION", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("COOKIE_SAMESITE", "strict")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenDuration)
	assert.Equal(t, 15*24*time.Hour, cfg.JWT.RefreshTokenDuration)
	assert.Equal(t, 72*time.Hour, cfg.Tokens.MaxAge)
	assert.Equal(t, 600*time.Second, cfg.Redis.RoleTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, http.SameSiteStrictMode, cfg.Cookies.SameSite)
	assert.False(t, cfg.Google.Enabled())
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("JWE_KEY", strings.Repeat("ab", 32))
	t.Setenv("JWT_ACCESS_DURATION", "fifteen")

	_, err := Load()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_DURATION")
}

func TestLoad_MissingJWEKey(t *testing.T) {
	t.Setenv("JWE_KEY", "")

	_, err := Load()

	assert.ErrorIs(t, err, ErrInvalidJWEKey)
}
