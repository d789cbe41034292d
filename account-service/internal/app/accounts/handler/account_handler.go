package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"staffdesk/account-service/internal/app/accounts/entity"
	"staffdesk/account-service/internal/app/accounts/service"
)

type AccountHandler struct {
	accounts    *service.AccountService
	cookies     *SessionCookies
	frontendURL string
}

func NewAccountHandler(accounts *service.AccountService, cookies *SessionCookies, frontendURL string) *AccountHandler {
	return &AccountHandler{
		accounts:    accounts,
		cookies:     cookies,
		frontendURL: frontendURL,
	}
}

func (h *AccountHandler) Signup(c *gin.Context) {
	var req entity.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, session, err := h.accounts.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to register user")
		return
	}

	h.cookies.Set(c, session)
	c.JSON(http.StatusCreated, sessionResponse(user, session))
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req entity.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, session, err := h.accounts.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to login")
		return
	}

	h.cookies.Set(c, session)
	c.JSON(http.StatusOK, sessionResponse(user, session))
}

func (h *AccountHandler) Activate(c *gin.Context) {
	user, err := h.accounts.Activate(c.Request.Context(), c.Param("uid"), c.Param("token"))
	if err != nil {
		respondError(c, err, "Failed to activate account")
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{
		Message: "Account activated",
		Data:    entity.NewUserResponse(user),
	})
}

// RequestPasswordReset отвечает одинаково, есть такой email или нет
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	var req entity.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.accounts.RequestPasswordReset(c.Request.Context(), &req); err != nil {
		respondError(c, err, "Failed to request password reset")
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{
		Message: "If the account exists, a password reset email has been sent",
	})
}

func (h *AccountHandler) ConfirmPasswordReset(c *gin.Context) {
	var req entity.PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.accounts.ConfirmPasswordReset(c.Request.Context(), c.Param("uid"), c.Param("token"), &req); err != nil {
		respondError(c, err, "Failed to reset password")
		return
	}

	c.JSON(http.StatusOK, entity.SuccessResponse{Message: "Password has been reset"})
}

func (h *AccountHandler) GoogleLogin(c *gin.Context) {
	authURL, err := h.accounts.GoogleAuthURL()
	if err != nil {
		respondError(c, err, "Failed to start Google login")
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// GoogleCallback ставит cookie и возвращает браузер на фронтенд.
// Фронтенду нужен ID пользователя для заголовка X-Active-User, он передаётся в query.
func (h *AccountHandler) GoogleCallback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		respondError(c, service.ErrProviderFailed, "Google login failed")
		return
	}

	user, session, created, err := h.accounts.GoogleCallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		respondError(c, err, "Google login failed")
		return
	}

	h.cookies.Set(c, session)

	query := url.Values{}
	query.Set("uid", user.ID.String())
	query.Set("created", strconv.FormatBool(created))
	c.Redirect(http.StatusFound, h.frontendURL+"/auth/google/complete?"+query.Encode())
}

func (h *AccountHandler) RefreshToken(c *gin.Context) {
	userID, signed := sessionUser(c)

	session, err := h.accounts.RefreshSession(c.Request.Context(), userID, signed)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) {
			h.cookies.Clear(c, userID)
			c.JSON(http.StatusUnauthorized, entity.ErrorResponse{
				Error:   "Unauthorized",
				Message: "Invalid or expired refresh token",
			})
			return
		}
		respondError(c, err, "Failed to refresh token")
		return
	}
	h.cookies.Set(c, session)
	c.JSON(http.StatusOK, session.Tokens)
}

func (h *AccountHandler) Logout(c *gin.Context) {
	userID, signed := sessionUser(c)

	err := h.accounts.Logout(c.Request.Context(), userID, signed)
	if err != nil && !errors.Is(err, service.ErrTokenInvalid) {
		respondError(c, err, "Failed to logout")
		return
	}

	h.cookies.Clear(c, userID)
	c.JSON(http.StatusOK, entity.SuccessResponse{Message: "Successfully logged out"})
}

func (h *AccountHandler) GetMe(c *gin.Context) {
	user := principal(c)
	if user == nil {
		respondError(c, service.ErrUnauthenticated, "Unauthorized")
		return
	}
	c.JSON(http.StatusOK, entity.NewUserResponse(user))
}

func sessionResponse(user *entity.User, session *entity.Session) entity.SessionResponse {
	return entity.SessionResponse{
		User:        entity.NewUserResponse(user),
		AccessToken: session.Tokens.AccessToken,
		ExpiresAt:   session.Tokens.AccessExp,
	}
}
