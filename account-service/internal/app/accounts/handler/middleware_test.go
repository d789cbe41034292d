package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staffdesk/account-service/internal/app/accounts/repository"
)

// Хелпер: маршрут, который отвечает 200, если Authenticate пропустил запрос
func protectedRouter(env *testEnv, t *testing.T) *gin.Engine {
	middleware := NewAuthMiddleware(env.sessions, env.users)
	router := gin.New()
	router.GET("/protected", middleware.Authenticate(), func(c *gin.Context) {
		require.NotNil(t, principal(c))
		c.String(http.StatusOK, principal(c).Username)
	})
	return router
}

// ==================== Authenticate Tests ====================

func TestAuthMiddleware_Authenticate_Success(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	user := newTestUser("alice")
	session := env.signIn(t, user)
	router := protectedRouter(env, t)

	req := withSession(httptest.NewRequest(http.MethodGet, "/protected", nil), session)
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestAuthMiddleware_Authenticate_PicksCookieOfActiveUser(t *testing.T) {
	// Arrange: в браузере две сессии, заголовок выбирает вторую
	env := newTestEnv(t)
	alice := env.signIn(t, newTestUser("alice"))
	bob := env.signIn(t, newTestUser("bob"))
	router := protectedRouter(env, t)

	req := withSession(httptest.NewRequest(http.MethodGet, "/protected", nil), alice)
	req.Header.Set(activeUserHeader, bob.UserID.String())
	req.AddCookie(&http.Cookie{Name: accessCookieName(bob.UserID.String()), Value: bob.Tokens.AccessToken})
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", rec.Body.String())
}

func TestAuthMiddleware_Authenticate_Rejected(t *testing.T) {
	env := newTestEnv(t)
	alice := newTestUser("alice")
	aliceSession := env.signIn(t, alice)
	bobSession := env.signIn(t, newTestUser("bob"))

	deactivated := newTestUser("mallory")
	deactivated.IsActive = false
	deactivatedSession := env.signIn(t, deactivated)

	testCases := []struct {
		name    string
		prepare func(req *http.Request)
	}{
		{
			name:    "No header",
			prepare: func(*http.Request) {},
		},
		{
			name:    "Header is not a UUID",
			prepare: func(req *http.Request) { req.Header.Set(activeUserHeader, "alice") },
		},
		{
			name:    "No access cookie",
			prepare: func(req *http.Request) { req.Header.Set(activeUserHeader, alice.ID.String()) },
		},
		{
			name: "Token of another user",
			prepare: func(req *http.Request) {
				req.Header.Set(activeUserHeader, alice.ID.String())
				req.AddCookie(&http.Cookie{Name: accessCookieName(alice.ID.String()), Value: bobSession.Tokens.AccessToken})
			},
		},
		{
			name: "Refresh token in access cookie",
			prepare: func(req *http.Request) {
				signed, err := env.sessions.Decrypt(aliceSession.Envelope)
				require.NoError(t, err)
				req.Header.Set(activeUserHeader, alice.ID.String())
				req.AddCookie(&http.Cookie{Name: accessCookieName(alice.ID.String()), Value: signed})
			},
		},
		{
			name:    "Deactivated user",
			prepare: func(req *http.Request) { withSession(req, deactivatedSession) },
		},
	}

	router := protectedRouter(env, t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tc.prepare(req)
			rec := httptest.NewRecorder()

			// Act
			router.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthMiddleware_Authenticate_UserDeleted(t *testing.T) {
	env := newTestEnv(t)
	user := newTestUser("ghost")
	session, err := env.sessions.IssueSession(t.Context(), user)
	require.NoError(t, err)
	env.users.On("GetByID", mock.Anything, user.ID).Return(nil, repository.ErrNotFound)

	rec := httptest.NewRecorder()
	protectedRouter(env, t).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/protected", nil), session))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_Authenticate_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	user := newTestUser("alice")
	session, err := env.sessions.IssueSession(t.Context(), user)
	require.NoError(t, err)
	env.users.On("GetByID", mock.Anything, user.ID).Return(nil, errors.New("connection refused"))

	rec := httptest.NewRecorder()
	protectedRouter(env, t).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/protected", nil), session))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// ==================== RequireSuperuser Tests ====================

func TestAuthMiddleware_RequireSuperuser(t *testing.T) {
	// Arrange
	env := newTestEnv(t)
	env.roleRepo.On("List", mock.Anything).Return(nil, nil)

	admin := newTestUser("root", adminRoleID)
	admin.IsSuperuser = true
	adminSession := env.signIn(t, admin)
	managerSession := env.signIn(t, newTestUser("manager", managerRoleID))

	// Act
	denied := env.serve(withSession(httptest.NewRequest(http.MethodGet, "/roles", nil), managerSession))
	allowed := env.serve(withSession(httptest.NewRequest(http.MethodGet, "/roles", nil), adminSession))
	anonymous := env.serve(httptest.NewRequest(http.MethodGet, "/roles", nil))

	// Assert
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Equal(t, http.StatusOK, allowed.Code)
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)
}

func TestActiveUser(t *testing.T) {
	id := uuid.New()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := activeUser(c)
	assert.False(t, ok)

	c.Request.Header.Set(activeUserHeader, id.String())
	got, ok := activeUser(c)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
