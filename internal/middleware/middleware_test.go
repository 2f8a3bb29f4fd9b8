package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecorder/internal/config"
	"ecorder/internal/domain/model"
	"ecorder/internal/middleware"
	"ecorder/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepoForMiddleware struct {
	mock.Mock
}

func (m *MockUserRepoForMiddleware) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepoForMiddleware) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepoForMiddleware) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

var _ repository.UserRepository = (*MockUserRepoForMiddleware)(nil)

// =====================
// helper
// =====================

const secret = "test-secret"

func mustMakeJWT(t *testing.T, key string, sub int64, role string, exp int64, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"iat":  1,
		"exp":  exp,
	}

	s, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

func whoami(c echo.Context) error {
	uid, _ := c.Get(middleware.CtxUserIDKey).(int64)
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return c.JSON(http.StatusOK, mwOKResponse{UserID: uid, Role: role})
}

func newProtected(userRepo repository.UserRepository, admin bool) *echo.Echo {
	e := echo.New()
	mws := []echo.MiddlewareFunc{middleware.AuthJWT(config.Config{JWTSecret: secret})}
	if userRepo != nil {
		mws = append(mws, middleware.ActiveUserGuard(userRepo))
	}
	if admin {
		mws = append(mws, middleware.AdminRoleGuard())
	}
	e.GET("/protected", whoami, mws...)
	return e
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_RejectsBadCredentials(t *testing.T) {
	cases := map[string]string{
		"no header":    "",
		"bad scheme":   "Token abc.def.ghi",
		"empty token":  "Bearer   ",
		"garbage":      "Bearer abc.def.ghi",
		"wrong secret": "Bearer " + mustMakeJWT(t, "other", 1, "USER", 9999999999, jwt.SigningMethodHS256),
		"expired":      "Bearer " + mustMakeJWT(t, secret, 1, "USER", 1, jwt.SigningMethodHS256),
		"other alg":    "Bearer " + mustMakeJWT(t, secret, 1, "USER", 9999999999, jwt.SigningMethodHS512),
		"no role":      "Bearer " + mustMakeJWT(t, secret, 1, "", 9999999999, jwt.SigningMethodHS256),
		"bad sub":      "Bearer " + mustMakeJWT(t, secret, 0, "USER", 9999999999, jwt.SigningMethodHS256),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := runRequest(t, newProtected(nil, false), http.MethodGet, "/protected", header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			body := decodeMWError(t, rec)
			assert.Equal(t, "UNAUTHORIZED", body.Code)
			assert.Equal(t, "unauthorized", body.Error)
		})
	}
}

func TestAuthJWT_SetsUserAndRole(t *testing.T) {
	token := mustMakeJWT(t, secret, 42, "USER", 9999999999, jwt.SigningMethodHS256)

	rec := runRequest(t, newProtected(nil, false), http.MethodGet, "/protected", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(42), body.UserID)
	assert.Equal(t, "USER", body.Role)
}

// =====================
// ActiveUserGuard / AdminRoleGuard
// =====================

func TestActiveUserGuard_UnknownUser(t *testing.T) {
	users := new(MockUserRepoForMiddleware)
	users.On("FindByID", mock.Anything, int64(5)).Return(nil, repository.ErrNotFound)

	token := mustMakeJWT(t, secret, 5, "USER", 9999999999, jwt.SigningMethodHS256)
	rec := runRequest(t, newProtected(users, false), http.MethodGet, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActiveUserGuard_InactiveUser(t *testing.T) {
	users := new(MockUserRepoForMiddleware)
	users.On("FindByID", mock.Anything, int64(5)).Return(&model.User{ID: 5, Role: model.RoleUser, IsActive: false}, nil)

	token := mustMakeJWT(t, secret, 5, "USER", 9999999999, jwt.SigningMethodHS256)
	rec := runRequest(t, newProtected(users, false), http.MethodGet, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeMWError(t, rec).Code)
}

// トークンのroleよりDBのroleを優先する
func TestActiveUserGuard_RoleFromDatabaseWins(t *testing.T) {
	users := new(MockUserRepoForMiddleware)
	users.On("FindByID", mock.Anything, int64(5)).Return(&model.User{ID: 5, Role: model.RoleUser, IsActive: true}, nil)

	token := mustMakeJWT(t, secret, 5, "ADMIN", 9999999999, jwt.SigningMethodHS256)
	rec := runRequest(t, newProtected(users, true), http.MethodGet, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin only", decodeMWError(t, rec).Error)
}

func TestAdminRoleGuard_AllowsAdmin(t *testing.T) {
	users := new(MockUserRepoForMiddleware)
	users.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, Role: model.RoleAdmin, IsActive: true}, nil)

	token := mustMakeJWT(t, secret, 1, "ADMIN", 9999999999, jwt.SigningMethodHS256)
	rec := runRequest(t, newProtected(users, true), http.MethodGet, "/protected", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

// =====================
// RequestLogger
// =====================

func TestRequestLogger_AssignsRequestIDAndLogsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core)))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	rec := runRequest(t, e, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(middleware.HeaderRequestID))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "req-1", entries[1].ContextMap()["request_id"])
}
