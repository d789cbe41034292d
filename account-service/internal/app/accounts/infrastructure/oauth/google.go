package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"staffdesk/account-service/internal/app/accounts/config"
	"staffdesk/account-service/internal/app/accounts/entity"
)

var ErrMissingIDToken = errors.New("token response has no id_token")

// GoogleProvider обменивает код авторизации на проверенную личность Google
type GoogleProvider struct {
	oauth    *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	client   *http.Client
}

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// NewGoogleProvider загружает discovery документ издателя и настраивает OAuth клиент
func NewGoogleProvider(ctx context.Context, cfg config.GoogleConfig) (*GoogleProvider, error) {
	if !cfg.Enabled() {
		return nil, errors.New("google client id and secret are required")
	}

	client := &http.Client{Timeout: 15 * time.Second}
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, client), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", cfg.Issuer, err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     op.Endpoint(),
		Scopes:       []string{gooidc.ScopeOpenID, "email", "profile"},
	}
	return newGoogleProvider(oauthCfg, op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}), client), nil
}

func newGoogleProvider(oauthCfg *oauth2.Config, verifier *gooidc.IDTokenVerifier, client *http.Client) *GoogleProvider {
	return &GoogleProvider{oauth: oauthCfg, verifier: verifier, client: client}
}

// AuthCodeURL возвращает ссылку на страницу согласия
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange меняет код на токены и проверяет подпись, издателя и аудиторию id_token
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*entity.GoogleIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	rawID, ok := token.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, ErrMissingIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", err)
	}

	return &entity.GoogleIdentity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
	}, nil
}
