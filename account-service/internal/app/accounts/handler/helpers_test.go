package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staffdesk/account-service/internal/app/accounts/config"
	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/repository"
	"staffdesk/account-service/internal/app/accounts/repository/mocks"
	"staffdesk/account-service/internal/app/accounts/service"
	"staffdesk/account-service/internal/app/accounts/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Хелперы для создания тестового окружения

var testEnvelopeKey = []byte("0123456789abcdef0123456789abcdef")

const (
	adminRoleID    = 1
	managerRoleID  = 2
	employeeRoleID = 3

	testFrontendURL = "http://localhost:3000"
)

func testRoles() []*entity.Role {
	return []*entity.Role{
		{ID: adminRoleID, Name: entity.RoleAdmin, Level: 1, Content: entity.ResourceUser,
			CanAdd: true, CanEdit: true, CanViewAll: true, CanDelete: true},
		{ID: managerRoleID, Name: entity.RoleManager, Level: 2, Content: entity.ResourceUser,
			CanAdd: true, CanEdit: true, CanViewAll: true, CanDelete: true},
		{ID: employeeRoleID, Name: entity.RoleEmployee, Level: 999, Content: entity.ResourceUser},
	}
}

type fakeGoogle struct {
	identity *entity.GoogleIdentity
	err      error
}

func (g *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example.test/o/oauth2/auth?state=" + state
}

func (g *fakeGoogle) Exchange(_ context.Context, _ string) (*entity.GoogleIdentity, error) {
	return g.identity, g.err
}

type recordingNotifier struct {
	jobs []entity.NotificationJob
}

func (n *recordingNotifier) Enqueue(_ context.Context, job entity.NotificationJob) {
	n.jobs = append(n.jobs, job)
}

type testEnv struct {
	users        *mocks.MockUserRepository
	roleRepo     *mocks.MockRoleRepository
	roleCache    *mocks.MockRoleCache
	redis        *miniredis.Miniredis
	sessions     *service.SessionService
	actionTokens *util.ActionTokenGenerator
	state        *util.StateSigner
	google       *fakeGoogle
	notifier     *recordingNotifier
	router       *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:        new(mocks.MockUserRepository),
		roleRepo:     new(mocks.MockRoleRepository),
		roleCache:    new(mocks.MockRoleCache),
		redis:        miniredis.RunT(t),
		actionTokens: util.NewActionTokenGenerator("test-secret", 72*time.Hour),
		state:        util.NewStateSigner("test-secret", 10*time.Minute),
		google:       &fakeGoogle{},
		notifier:     &recordingNotifier{},
	}

	client := redis.NewClient(&redis.Options{Addr: env.redis.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	tokens := repository.NewRedisTokenRepository(client)

	envelope, err := util.NewEnvelope(testEnvelopeKey)
	require.NoError(t, err)
	jwtManager := util.NewJWTManager("test-secret-key", 15*time.Minute, 15*24*time.Hour)
	env.sessions = service.NewSessionService(jwtManager, envelope, tokens, env.users)

	roles := service.NewRoleService(env.roleRepo, env.roleCache, "account-service-test")
	accounts := service.NewAccountService(env.users, roles, env.sessions, env.actionTokens, env.notifier, env.google, env.state)
	engine := service.NewPermissionEngine(roles, env.users, 0)
	users := service.NewUserService(env.users, roles, engine, env.sessions)

	cookies := NewSessionCookies(config.CookieConfig{Secure: true, SameSite: http.SameSiteLaxMode})
	env.router = SetupRoutes("account-service-test", []string{testFrontendURL}, Handlers{
		Accounts:   NewAccountHandler(accounts, cookies, testFrontendURL),
		Users:      NewUserHandler(users),
		Roles:      NewRoleHandler(roles),
		Middleware: NewAuthMiddleware(env.sessions, env.users),
	})
	return env
}

// expectRoles кладёт снимки ролей в мок кеша и сами роли в мок репозитория
func (env *testEnv) expectRoles() {
	for _, role := range testRoles() {
		snapshot := role.Snapshot()
		env.roleCache.On("Get", mock.Anything, role.ID).Return(&snapshot, nil).Maybe()
		env.roleRepo.On("GetByID", mock.Anything, role.ID).Return(role, nil).Maybe()
		env.roleRepo.On("GetByName", mock.Anything, role.Name).Return(role, nil).Maybe()
	}
}

func newTestUser(username string, roleIDs ...int) *entity.User {
	hash, _ := util.HashPassword("password123")
	return &entity.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    username,
		PasswordHash: hash,
		IsActive:     true,
		IsVerified:   true,
		RoleIDs:      roleIDs,
		CreatedAt:    time.Now().UTC(),
	}
}

// newUserRecord совпадает с пользователем, которому сервис уже присвоил id и время создания
func newUserRecord() interface{} {
	return mock.MatchedBy(func(u *entity.User) bool {
		return u.ID != uuid.Nil && !u.CreatedAt.IsZero()
	})
}

// signIn выдаёт пользователю сессию и регистрирует его в моке репозитория
func (env *testEnv) signIn(t *testing.T, user *entity.User) *entity.Session {
	t.Helper()
	env.users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Maybe()
	session, err := env.sessions.IssueSession(context.Background(), user)
	require.NoError(t, err)
	return session
}

// withSession добавляет к запросу заголовок X-Active-User и обе cookie
func withSession(req *http.Request, session *entity.Session) *http.Request {
	uid := session.UserID.String()
	req.Header.Set(activeUserHeader, uid)
	req.AddCookie(&http.Cookie{Name: accessCookieName(uid), Value: session.Tokens.AccessToken})
	req.AddCookie(&http.Cookie{Name: refreshCookieName(uid), Value: session.Envelope})
	return req
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewBuffer(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (env *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) entity.ErrorResponse {
	t.Helper()
	var resp entity.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	return cookies
}
