package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, username, email, password string) (*ports.RegisterResult, error)
	loginFn    func(ctx context.Context, username, password string) (*ports.LoginResult, error)
}

func (s *stubAuthService) Register(ctx context.Context, username, email, password string) (*ports.RegisterResult, error) {
	return s.registerFn(ctx, username, email, password)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, username, password)
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func httpErrorCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, email, password string) (*ports.RegisterResult, error) {
			if username != "alice" || email != "alice@quardintel.com" || password != "password1" {
				t.Fatalf("unexpected args: %s %s %s", username, email, password)
			}
			return &ports.RegisterResult{
				Message: "User registered successfully with role: ADMIN",
				User:    &domain.User{Username: username, Role: domain.RoleAdmin},
			}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := newJSONContext(http.MethodPost, "/auth/register",
		`{"username":"alice","password":"password1","email":"alice@quardintel.com"}`)

	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["message"] != "User registered successfully with role: ADMIN" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAuthHandler_Register_UsernameTaken(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, username, email, password string) (*ports.RegisterResult, error) {
			return nil, domain.ErrUsernameTaken
		},
	}
	handler := NewAuthHandler(stub)

	c, _ := newJSONContext(http.MethodPost, "/auth/register",
		`{"username":"bob","password":"password1","email":"bob@example.com"}`)

	err := handler.Register(c)
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{})

	cases := map[string]string{
		"short username": `{"username":"al","password":"password1","email":"al@example.com"}`,
		"short password": `{"username":"alice","password":"short","email":"alice@example.com"}`,
		"bad email":      `{"username":"alice","password":"password1","email":"not-an-email"}`,
		"missing email":  `{"username":"alice","password":"password1"}`,
	}
	for name, body := range cases {
		c, _ := newJSONContext(http.MethodPost, "/auth/register", body)
		if code := httpErrorCode(t, handler.Register(c)); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, code)
		}
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{})
	c, _ := newJSONContext(http.MethodPost, "/auth/register", `{"username":`)
	if code := httpErrorCode(t, handler.Register(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			return &ports.LoginResult{
				Token: "tok",
				User:  &domain.User{Username: username, Role: domain.RoleUser},
			}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := newJSONContext(http.MethodPost, "/auth/login", `{"username":"bob","password":"password1"}`)
	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Message != "Login successful" || resp.Username != "bob" || resp.Role != domain.RoleUser || resp.Token != "tok" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, username, password string) (*ports.LoginResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	handler := NewAuthHandler(stub)

	c, _ := newJSONContext(http.MethodPost, "/auth/login", `{"username":"bob","password":"wrong"}`)
	if err := handler.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{})
	c, _ := newJSONContext(http.MethodPost, "/auth/login", `{"username":"bob"}`)
	if code := httpErrorCode(t, handler.Login(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}
