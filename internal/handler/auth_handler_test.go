package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ocms-api/internal/models"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

type fakeAuthSrv struct {
	registerReq  models.RegisterRequest
	loginErr     error
	loggedOut    []string
	profileName  string
	passwordUser string
}

func (f *fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	f.registerReq = req
	return &models.RegisterResponse{User: models.UserInfo{ID: "u1", Email: req.Email, Role: models.RoleStudent}, AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeAuthSrv) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &models.LoginResponse{AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeAuthSrv) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "a2", RefreshToken: "r2"}, nil
}

func (f *fakeAuthSrv) Logout(_ context.Context, refreshToken, userID string, _ models.RequestMeta) error {
	f.loggedOut = append(f.loggedOut, userID+":"+refreshToken)
	return nil
}

func (f *fakeAuthSrv) Profile(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID}, nil
}

func (f *fakeAuthSrv) UpdateProfile(_ context.Context, userID string, req models.UpdateProfileRequest, _ models.RequestMeta) (*models.User, error) {
	f.profileName = req.FullName
	return &models.User{ID: userID, FullName: req.FullName}, nil
}

func (f *fakeAuthSrv) ChangePassword(_ context.Context, userID string, _ models.ChangePasswordRequest) error {
	f.passwordUser = userID
	return nil
}

func TestAuthHandlerRegister(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, w := newGinContext(http.MethodPost, "/auth/register", mustJSON(t, map[string]string{
		"email": "ana@example.com", "full_name": "Ana", "password": "secret1", "password2": "secret1",
	}))
	c.Request.Header.Set("User-Agent", "test-agent")
	handler.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ana@example.com", srv.registerReq.Email)
	assert.Equal(t, "test-agent", srv.registerReq.UserAgent)

	var body models.RegisterResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &body))
	assert.Equal(t, models.RoleStudent, body.User.Role)
}

func TestAuthHandlerLoginDisabled(t *testing.T) {
	handler := NewAuthHandler(&fakeAuthSrv{loginErr: appErrors.ErrInactiveAccount})

	c, w := newGinContext(http.MethodPost, "/auth/login", mustJSON(t, map[string]string{"email": "a@example.com", "password": "x"}))
	handler.Login(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "User account is disabled", envelope.Error.Message)
}

func TestAuthHandlerLogout(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, w := newGinContext(http.MethodPost, "/auth/logout", mustJSON(t, map[string]string{"refresh_token": "rt"}))
	withClaims(c, "u1", models.RoleStudent)
	handler.Logout(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"u1:rt"}, srv.loggedOut)
	var body map[string]string
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &body))
	assert.Equal(t, "Successfully logged out", body["message"])
}

func TestAuthHandlerLogoutRequiresToken(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, w := newGinContext(http.MethodPost, "/auth/logout", nil)
	handler.Logout(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, srv.loggedOut)
}

func TestAuthHandlerUpdateProfile(t *testing.T) {
	srv := &fakeAuthSrv{}
	handler := NewAuthHandler(srv)

	c, w := newGinContext(http.MethodPatch, "/auth/profile", mustJSON(t, map[string]string{"full_name": "Ana Maria"}))
	withClaims(c, "u1", models.RoleStudent)
	handler.UpdateProfile(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ana Maria", srv.profileName)
}
