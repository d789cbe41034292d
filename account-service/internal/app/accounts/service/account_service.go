package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/util"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

const (
	constraintUsername = "users_username_key"
	constraintEmail    = "users_email_key"

	// googleUsernameAttempts - сколько суффиксов перебрать при совпадении имени пользователя
	googleUsernameAttempts = 5
)

// Notifier публикует задания на отправку писем. Вызов не ждёт брокер.
type Notifier interface {
	Enqueue(ctx context.Context, job entity.NotificationJob)
}

// IdentityProvider - внешний провайдер входа (Google)
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*entity.GoogleIdentity, error)
}

// RoleDirectory ищет роли по имени
type RoleDirectory interface {
	GetByName(ctx context.Context, name string) (*entity.Role, error)
}

// AccountService реализует жизненный цикл учётной записи: регистрация, вход,
// активация, сброс пароля и вход через Google.
type AccountService struct {
	users    repository.UserRepository
	roles    RoleDirectory
	sessions *SessionService
	tokens   *util.ActionTokenGenerator
	notifier Notifier
	google   IdentityProvider
	state    *util.StateSigner
	now      func() time.Time
}

// NewAccountService создает сервис учётных записей. google и state могут быть nil, тогда вход через Google выключен.
func NewAccountService(
	users repository.UserRepository,
	roles RoleDirectory,
	sessions *SessionService,
	tokens *util.ActionTokenGenerator,
	notifier Notifier,
	google IdentityProvider,
	state *util.StateSigner,
) *AccountService {
	return &AccountService{
		users:    users,
		roles:    roles,
		sessions: sessions,
		tokens:   tokens,
		notifier: notifier,
		google:   google,
		state:    state,
		now:      time.Now,
	}
}

// Signup регистрирует неактивного пользователя с ролью по умолчанию,
// ставит в очередь письмо активации и сразу выдаёт сессию
func (s *AccountService) Signup(ctx context.Context, req *entity.SignupRequest) (*entity.User, *entity.Session, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}
	if req.Password != req.Password2 {
		return nil, nil, NewValidationError("password", "Password fields didn't match.")
	}

	if err := checkAvailable(ctx, s.users, req.Username, req.Email); err != nil {
		return nil, nil, err
	}

	role, err := s.defaultRole(ctx)
	if err != nil {
		return nil, nil, err
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &entity.User{
		ID:        uuid.New(),
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RoleIDs:   []int{role.ID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	user.SetPasswordHash(hash, now)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, mapUserWriteError(err)
	}

	s.enqueue(ctx, entity.NotificationActivation, user, s.tokens.MakeToken(user, entity.PurposeActivation))

	session, err := s.sessions.IssueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	metrics.AuthRegistrations.WithLabelValues("password").Inc()
	logger.Info().Str("user_id", user.ID.String()).Msg("user signed up")
	return user, session, nil
}

// Login проверяет пароль и выдаёт сессию. Неактивный пользователь не отличается от неверного пароля.
func (s *AccountService) Login(ctx context.Context, req *entity.LoginRequest) (*entity.User, *entity.Session, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.AuthLogins.WithLabelValues("password", "invalid_credentials").Inc()
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, transient("load user", err)
	}

	if !util.CheckPassword(req.Password, user.PasswordHash) || !user.IsActive {
		metrics.AuthLogins.WithLabelValues("password", "invalid_credentials").Inc()
		logger.Warn().Str("user_id", user.ID.String()).Bool("active", user.IsActive).Msg("failed login attempt")
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.sessions.IssueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	metrics.AuthLogins.WithLabelValues("password", "success").Inc()
	return user, session, nil
}

// Activate проверяет токен активации и делает пользователя активным и подтверждённым.
// Повторное использование того же токена не проходит: поля, от которых он зависит, уже изменились.
func (s *AccountService) Activate(ctx context.Context, uid, token string) (*entity.User, error) {
	user, err := s.userByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	if !s.tokens.CheckToken(user, entity.PurposeActivation, token) {
		metrics.AuthActionTokens.WithLabelValues(string(entity.PurposeActivation), "rejected").Inc()
		logger.Warn().Str("user_id", user.ID.String()).Msg("invalid activation token")
		return nil, ErrTokenInvalid
	}

	if err := s.users.SetActivation(ctx, user.ID, true, true); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, transient("activate user", err)
	}
	user.IsActive = true
	user.IsVerified = true

	metrics.AuthActionTokens.WithLabelValues(string(entity.PurposeActivation), "accepted").Inc()
	logger.Info().Str("user_id", user.ID.String()).Msg("user activated")
	return user, nil
}

// RequestPasswordReset ставит в очередь письмо сброса пароля.
// Неизвестный или неактивный email не отличается от успешного запроса.
func (s *AccountService) RequestPasswordReset(ctx context.Context, req *entity.PasswordResetRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Debug().Msg("password reset requested for unknown email")
			return nil
		}
		return transient("load user", err)
	}
	if !user.IsActive {
		logger.Debug().Str("user_id", user.ID.String()).Msg("password reset requested for inactive user")
		return nil
	}

	s.enqueue(ctx, entity.NotificationPasswordReset, user, s.tokens.MakeToken(user, entity.PurposePasswordReset))
	metrics.AuthActionTokens.WithLabelValues(string(entity.PurposePasswordReset), "issued").Inc()
	return nil
}

// ConfirmPasswordReset проверяет токен сброса, ставит новый пароль и отзывает все refresh токены пользователя
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, uid, token string, req *entity.PasswordResetConfirmRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if req.Password != req.Password2 {
		return NewValidationError("password", "Password fields didn't match.")
	}

	user, err := s.userByUID(ctx, uid)
	if err != nil {
		return err
	}
	if !user.IsActive || !s.tokens.CheckToken(user, entity.PurposePasswordReset, token) {
		metrics.AuthActionTokens.WithLabelValues(string(entity.PurposePasswordReset), "rejected").Inc()
		logger.Warn().Str("user_id", user.ID.String()).Msg("invalid password reset token")
		return ErrTokenInvalid
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.SetPasswordHash(hash, s.now())

	if err := s.users.SetPassword(ctx, user.ID, user.PasswordHash, *user.PasswordChangedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenInvalid
		}
		return transient("store password", err)
	}
	metrics.AuthActionTokens.WithLabelValues(string(entity.PurposePasswordReset), "accepted").Inc()

	revoked, err := s.sessions.RevokeAll(ctx, user.ID)
	if err != nil {
		return err
	}
	logger.Info().Str("user_id", user.ID.String()).Int("revoked_sessions", revoked).Msg("password reset completed")
	return nil
}

// GoogleAuthURL возвращает ссылку на согласие Google с подписанным state
func (s *AccountService) GoogleAuthURL() (string, error) {
	if s.google == nil || s.state == nil {
		return "", ErrProviderDisabled
	}
	state, err := s.state.Issue()
	if err != nil {
		return "", fmt.Errorf("failed to issue oauth state: %w", err)
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback завершает вход через Google: находит или создаёт пользователя по подтверждённому email
// и выдаёт сессию. created сообщает, что пользователь создан этим вызовом.
func (s *AccountService) GoogleCallback(ctx context.Context, code, state string) (user *entity.User, session *entity.Session, created bool, err error) {
	if s.google == nil || s.state == nil {
		return nil, nil, false, ErrProviderDisabled
	}
	if err := s.state.Verify(state); err != nil {
		logger.Warn().Err(err).Msg("google callback with invalid state")
		return nil, nil, false, NewValidationError("state", "Invalid or expired state.")
	}
	if code == "" {
		return nil, nil, false, NewValidationError("code", "This field is required.")
	}

	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		metrics.AuthLogins.WithLabelValues("google", "provider_error").Inc()
		logger.Warn().Err(err).Msg("google code exchange failed")
		return nil, nil, false, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	if identity.Email == "" || !identity.EmailVerified {
		metrics.AuthLogins.WithLabelValues("google", "unverified_email").Inc()
		return nil, nil, false, fmt.Errorf("%w: email is missing or not verified", ErrProviderFailed)
	}

	user, created, err = s.getOrCreateFederated(ctx, identity)
	if err != nil {
		return nil, nil, false, err
	}

	session, err = s.sessions.IssueSession(ctx, user)
	if err != nil {
		return nil, nil, false, err
	}

	if created {
		metrics.AuthRegistrations.WithLabelValues("google").Inc()
	}
	metrics.AuthLogins.WithLabelValues("google", "success").Inc()
	return user, session, created, nil
}

// Logout отзывает refresh токен
func (s *AccountService) Logout(ctx context.Context, userID uuid.UUID, signedRefresh string) error {
	return s.sessions.Blacklist(ctx, userID, signedRefresh)
}

// RefreshSession ротирует refresh токен
func (s *AccountService) RefreshSession(ctx context.Context, userID uuid.UUID, signedRefresh string) (*entity.Session, error) {
	return s.sessions.Refresh(ctx, userID, signedRefresh)
}

func (s *AccountService) getOrCreateFederated(ctx context.Context, identity *entity.GoogleIdentity) (*entity.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if existing.IsActive {
			return existing, false, nil
		}
		if existing.IsVerified {
			// учётная запись деактивирована, вход через Google её не возвращает
			metrics.AuthLogins.WithLabelValues("google", "inactive").Inc()
			return nil, false, ErrInvalidCredentials
		}
		// Google подтвердил владение адресом: незавершённая регистрация считается активированной
		if err := s.users.SetActivation(ctx, existing.ID, true, true); err != nil {
			return nil, false, transient("activate user", err)
		}
		existing.IsActive = true
		existing.IsVerified = true
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, transient("load user", err)
	}

	role, err := s.defaultRole(ctx)
	if err != nil {
		return nil, false, err
	}

	base := usernameFromEmail(identity.Email)
	for attempt := 0; attempt < googleUsernameAttempts; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s%d", base, attempt)
		}

		now := s.now()
		user := &entity.User{
			ID:           uuid.New(),
			Username:     username,
			Email:        identity.Email,
			FirstName:    identity.GivenName,
			LastName:     identity.FamilyName,
			PasswordHash: util.UnusablePassword(),
			IsActive:     true,
			IsVerified:   true,
			RoleIDs:      []int{role.ID},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		err := s.users.Create(ctx, user)
		if err == nil {
			logger.Info().Str("user_id", user.ID.String()).Msg("user created via google")
			return user, true, nil
		}

		var conflict *repository.ConflictError
		if !errors.As(err, &conflict) {
			return nil, false, transient("create user", err)
		}
		if conflict.Constraint == constraintEmail {
			// параллельный вход создал пользователя раньше нас
			existing, err := s.users.GetByEmail(ctx, identity.Email)
			if err != nil {
				return nil, false, transient("load user", err)
			}
			return existing, false, nil
		}
	}

	return nil, false, fmt.Errorf("%w: no free username for %s", ErrConflict, base)
}

// checkAvailable проверяет, что username и email свободны. Пустое значение не проверяется.
func checkAvailable(ctx context.Context, users repository.UserRepository, username, email string) error {
	fields := map[string]string{}

	if username != "" {
		if _, err := users.GetByUsername(ctx, username); err == nil {
			fields["username"] = "A user with that username already exists."
		} else if !errors.Is(err, repository.ErrNotFound) {
			return transient("check username", err)
		}
	}

	if email != "" {
		if _, err := users.GetByEmail(ctx, email); err == nil {
			fields["email"] = "A user with that email already exists."
		} else if !errors.Is(err, repository.ErrNotFound) {
			return transient("check email", err)
		}
	}

	if len(fields) > 0 {
		return &ConflictError{Fields: fields}
	}
	return nil
}

func (s *AccountService) defaultRole(ctx context.Context) (*entity.Role, error) {
	role, err := s.roles.GetByName(ctx, entity.RoleEmployee)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, fmt.Errorf("default role %q is missing, run accountctl setup-roles: %w", entity.RoleEmployee, err)
		}
		return nil, transient("load default role", err)
	}
	return role, nil
}

func (s *AccountService) userByUID(ctx context.Context, uid string) (*entity.User, error) {
	id, err := util.DecodeUID(uid)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, transient("load user", err)
	}
	return user, nil
}

func (s *AccountService) enqueue(ctx context.Context, kind entity.NotificationKind, user *entity.User, token string) {
	s.notifier.Enqueue(ctx, entity.NotificationJob{
		Kind:      kind,
		UserID:    user.ID,
		UID:       util.EncodeUID(user.ID),
		Username:  user.Username,
		Email:     user.Email,
		Token:     token,
		CreatedAt: s.now().UTC(),
	})
}

// mapUserWriteError переводит нарушение уникальности в конфликт по полю
func mapUserWriteError(err error) error {
	var conflict *repository.ConflictError
	if errors.As(err, &conflict) {
		switch conflict.Constraint {
		case constraintUsername:
			return &ConflictError{Fields: map[string]string{"username": "A user with that username already exists."}}
		case constraintEmail:
			return &ConflictError{Fields: map[string]string{"email": "A user with that email already exists."}}
		}
		return ErrUserExists
	}
	if errors.Is(err, repository.ErrNotFound) {
		return NewValidationError("role_ids", "Unknown role or manager.")
	}
	return transient("save user", err)
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	local = strings.Map(func(r rune) rune {
		if r == ' ' {
			return -1
		}
		return r
	}, local)
	if len(local) < 3 {
		local = "user-" + uuid.NewString()[:8]
	}
	if len(local) > 140 {
		local = local[:140]
	}
	return local
}
