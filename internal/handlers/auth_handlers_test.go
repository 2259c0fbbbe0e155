package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campaignly/auth-service/internal/handlers"
	"github.com/campaignly/auth-service/internal/middleware"
	"github.com/campaignly/auth-service/internal/models"
	"github.com/campaignly/auth-service/internal/repository"
	"github.com/campaignly/auth-service/internal/routes"
	"github.com/campaignly/auth-service/internal/services"
	"github.com/campaignly/auth-service/internal/tokens"
)

const testAPIKey = "service-key"

// stubService lets each test wire only the operations it exercises.
type stubService struct {
	services.AuthService

	startRegistration func(ctx context.Context, in services.RegistrationInput) (*services.StartFlowResult, error)
	completeLogin     func(ctx context.Context, session *models.AuthSession, code string, meta services.ClientMeta) (*services.AuthResult, error)
	getSession        func(ctx context.Context, sessionID string) (*models.AuthSession, error)
	autoRegister      func(ctx context.Context, phone, companyName string, meta services.ClientMeta) (*services.AutoRegisterResult, error)
	logout            func(ctx context.Context, bearerToken string)
	me                func(ctx context.Context, userID string) (*models.UserSummary, error)
}

func (s *stubService) StartRegistration(ctx context.Context, in services.RegistrationInput) (*services.StartFlowResult, error) {
	return s.startRegistration(ctx, in)
}

func (s *stubService) CompleteLogin(ctx context.Context, session *models.AuthSession, code string, meta services.ClientMeta) (*services.AuthResult, error) {
	return s.completeLogin(ctx, session, code, meta)
}

func (s *stubService) GetSession(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	if s.getSession == nil {
		return nil, repository.ErrNotFound
	}
	return s.getSession(ctx, sessionID)
}

func (s *stubService) AutoRegister(ctx context.Context, phone, companyName string, meta services.ClientMeta) (*services.AutoRegisterResult, error) {
	return s.autoRegister(ctx, phone, companyName, meta)
}

func (s *stubService) Logout(ctx context.Context, bearerToken string) {
	if s.logout != nil {
		s.logout(ctx, bearerToken)
	}
}

func (s *stubService) Me(ctx context.Context, userID string) (*models.UserSummary, error) {
	return s.me(ctx, userID)
}

func newTestApp(t *testing.T, svc services.AuthService, tm services.TokenManager) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := middleware.NewRateLimiter(rdb, "test:rl", 1000, time.Hour, zap.NewNop().Sugar())

	app := fiber.New()
	routes.Setup(app, routes.Deps{
		Handler:     handlers.NewHandler(svc, zap.NewNop()),
		Service:     svc,
		Tokens:      tm,
		RateLimiter: limiter,
		APIKey:      testAPIKey,
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}, header map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return resp, parsed
}

func TestRegisterPhoneEnvelope(t *testing.T) {
	t.Run("success carries session fields", func(t *testing.T) {
		svc := &stubService{
			startRegistration: func(_ context.Context, in services.RegistrationInput) (*services.StartFlowResult, error) {
				assert.Equal(t, "+79990000000", in.Phone)
				return &services.StartFlowResult{SessionID: "sess-1", ExpiresIn: 300, IsNewUser: true}, nil
			},
		}
		app := newTestApp(t, svc, nil)

		resp, body := postJSON(t, app, "/api/v1/auth/register/phone", fiber.Map{
			"phone": "+79990000000", "password": "g7Kp2vQz9Lw4xT!",
		}, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "sess-1", body["sessionId"])
		assert.EqualValues(t, 300, body["expiresIn"])
		assert.Equal(t, true, body["isNewUser"])
	})

	t.Run("missing password fails validation", func(t *testing.T) {
		svc := &stubService{
			startRegistration: func(context.Context, services.RegistrationInput) (*services.StartFlowResult, error) {
				t.Fatal("service must not be reached")
				return nil, nil
			},
		}
		app := newTestApp(t, svc, nil)

		resp, body := postJSON(t, app, "/api/v1/auth/register/phone", fiber.Map{
			"phone": "+79990000000",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "missing_parameters", body["error"])
	})

	t.Run("rate limit error carries cooldown and session id", func(t *testing.T) {
		svc := &stubService{
			startRegistration: func(context.Context, services.RegistrationInput) (*services.StartFlowResult, error) {
				return nil, &services.Error{
					Code: "rate_limit", Message: "Слишком частые запросы",
					Status: fiber.StatusTooManyRequests, Cooldown: 42, SessionID: "sess-1",
				}
			},
		}
		app := newTestApp(t, svc, nil)

		resp, body := postJSON(t, app, "/api/v1/auth/register/phone", fiber.Map{
			"phone": "+79990000000", "password": "g7Kp2vQz9Lw4xT!",
		}, nil)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "rate_limit", body["error"])
		assert.EqualValues(t, 42, body["cooldown"])
		assert.Equal(t, "sess-1", body["sessionId"])
	})

	t.Run("unexpected error maps to server_error", func(t *testing.T) {
		svc := &stubService{
			startRegistration: func(context.Context, services.RegistrationInput) (*services.StartFlowResult, error) {
				return nil, errors.New("mongo connection reset")
			},
		}
		app := newTestApp(t, svc, nil)

		resp, body := postJSON(t, app, "/api/v1/auth/register/phone", fiber.Map{
			"phone": "+79990000000", "password": "g7Kp2vQz9Lw4xT!",
		}, nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "server_error", body["error"])
		// internal detail must not leak
		assert.NotContains(t, body["message"], "mongo")
	})
}

func TestSessionGuard(t *testing.T) {
	t.Run("unknown session is rejected before the handler", func(t *testing.T) {
		svc := &stubService{
			completeLogin: func(context.Context, *models.AuthSession, string, services.ClientMeta) (*services.AuthResult, error) {
				t.Fatal("handler must not be reached")
				return nil, nil
			},
		}
		app := newTestApp(t, svc, nil)

		resp, body := postJSON(t, app, "/api/v1/auth/login/verify", fiber.Map{
			"sessionId": "unknown", "code": "123456",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid_session", body["error"])
	})

	t.Run("resolved session reaches the handler", func(t *testing.T) {
		session := &models.AuthSession{SessionID: "sess-1", Type: models.SessionLogin}
		svc := &stubService{
			getSession: func(_ context.Context, sessionID string) (*models.AuthSession, error) {
				assert.Equal(t, "sess-1", sessionID)
				return session, nil
			},
			completeLogin: func(_ context.Context, got *models.AuthSession, code string, _ services.ClientMeta) (*services.AuthResult, error) {
				assert.Equal(t, session, got)
				assert.Equal(t, "123456", code)
				return &services.AuthResult{Token: "acc", RefreshToken: "ref", ExpiresIn: 86400}, nil
			},
		}
		app := newTestApp(t, svc, nil)

		resp, body := postJSON(t, app, "/api/v1/auth/login/verify", fiber.Map{
			"sessionId": "sess-1", "code": "123456",
		}, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "acc", body["token"])
		assert.Equal(t, "ref", body["refreshToken"])
	})
}

func TestAutoRegisterGuard(t *testing.T) {
	svc := &stubService{
		autoRegister: func(_ context.Context, phone, _ string, _ services.ClientMeta) (*services.AutoRegisterResult, error) {
			return &services.AutoRegisterResult{
				IsNewUser:         true,
				AutoLoginURL:      "https://app.example.com/auto-login?token=abc",
				GeneratedPassword: "S3cret!Pass",
			}, nil
		},
	}
	app := newTestApp(t, svc, nil)

	t.Run("missing api key is rejected", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/v1/auth/auto-register", fiber.Map{
			"phone": "+79991112233",
		}, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "unauthorized", body["error"])
	})

	t.Run("valid api key passes", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/v1/auth/auto-register", fiber.Map{
			"phone": "+79991112233",
		}, map[string]string{"x-api-key": testAPIKey})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["isNewUser"])
		assert.Equal(t, "S3cret!Pass", body["generatedPassword"])
	})
}

func TestMeRequiresBearer(t *testing.T) {
	tm := tokens.NewManager("access-secret", "refresh-secret", time.Hour, time.Hour, time.Hour)
	svc := &stubService{
		me: func(_ context.Context, userID string) (*models.UserSummary, error) {
			assert.Equal(t, "user-1", userID)
			return &models.UserSummary{Phone: "+79990000000"}, nil
		},
	}
	app := newTestApp(t, svc, tm)

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		signed, _, err := tm.GenerateAccessToken("user-1", false, tokens.CompanyClaim{}, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signed)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	called := false
	svc := &stubService{
		logout: func(_ context.Context, token string) { called = true },
	}
	app := newTestApp(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, called)
}
