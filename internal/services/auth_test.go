package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"chatbridge/internal/middleware"
	"chatbridge/internal/models"
)

type stubUserStore struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
	logins  int
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{byEmail: map[string]*models.User{}, byID: map[uuid.UUID]*models.User{}}
}

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	user.IsActive = true
	user.CreatedAt = time.Now()
	s.byEmail[user.Email] = user
	s.byID[user.ID] = user
	return nil
}

func (s *stubUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s.byID[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserStore) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	s.logins++
	return nil
}

type memoryTokenStore struct {
	tokens map[string]uuid.UUID
}

func (m *memoryTokenStore) Save(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	m.tokens[token] = userID
	return nil
}

func (m *memoryTokenStore) Lookup(ctx context.Context, token string) (uuid.UUID, error) {
	id, ok := m.tokens[token]
	if !ok {
		return uuid.Nil, errors.New("not found")
	}
	return id, nil
}

func (m *memoryTokenStore) Delete(ctx context.Context, token string) error {
	delete(m.tokens, token)
	return nil
}

func newTestAuthService() (*AuthService, *stubUserStore, *memoryTokenStore, *middleware.JWTAuth) {
	users := newStubUserStore()
	tokens := &memoryTokenStore{tokens: map[string]uuid.UUID{}}
	jwtAuth := middleware.NewJWTAuth("test-secret")
	svc := NewAuthService(users, tokens, jwtAuth)
	svc.hashCost = bcrypt.MinCost
	return svc, users, tokens, jwtAuth
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _, _, _ := newTestAuthService()

	_, _, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: " ",
		Email:    "not-an-email",
		Password: "short",
	})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"full_name", "email", "password"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Errorf("expected field error for %s, got %v", field, verr.Fields)
		}
	}
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	svc, users, _, jwtAuth := newTestAuthService()
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, models.RegisterRequest{
		FullName: "Ada Lovelace",
		Email:    "  Ada@Example.com ",
		Password: "analytical1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("email must be normalised, got %q", user.Email)
	}
	if user.PasswordHash == "analytical1" {
		t.Error("password must be hashed")
	}

	gotID, err := jwtAuth.ParseToken(tokens.AccessToken)
	if err != nil || gotID != user.ID {
		t.Fatalf("access token must carry the user id, got %s, %v", gotID, err)
	}
	if tokens.ExpiresIn != int(middleware.AccessTokenTTL.Seconds()) {
		t.Errorf("ExpiresIn = %d", tokens.ExpiresIn)
	}

	_, _, err = svc.Register(ctx, models.RegisterRequest{FullName: "Ada", Email: "ada@example.com", Password: "analytical1"})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError on duplicate email, got %v", err)
	}

	if _, err := svc.Login(ctx, models.LoginRequest{Email: "ADA@example.com", Password: "analytical1"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if users.logins != 1 {
		t.Errorf("expected last login to be recorded")
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, users, _, _ := newTestAuthService()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, models.RegisterRequest{FullName: "Grace", Email: "grace@example.com", Password: "cobol1959"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name string
		req  models.LoginRequest
	}{
		{"unknown email", models.LoginRequest{Email: "nobody@example.com", Password: "cobol1959"}},
		{"wrong password", models.LoginRequest{Email: "grace@example.com", Password: "fortran1957"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tc.req)
			var unauthorized *UnauthorizedError
			if !errors.As(err, &unauthorized) {
				t.Fatalf("expected UnauthorizedError, got %v", err)
			}
		})
	}

	users.byEmail["grace@example.com"].IsActive = false
	_, err := svc.Login(ctx, models.LoginRequest{Email: "grace@example.com", Password: "cobol1959"})
	var unauthorized *UnauthorizedError
	if !errors.As(err, &unauthorized) || unauthorized.Message != "Account is deactivated" {
		t.Fatalf("expected deactivated error, got %v", err)
	}
}

func TestAuthService_RefreshRotatesToken(t *testing.T) {
	svc, _, store, _ := newTestAuthService()
	ctx := context.Background()

	_, first, err := svc.Register(ctx, models.RegisterRequest{FullName: "Alan", Email: "alan@example.com", Password: "enigma1940"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	second, err := svc.RefreshToken(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must issue a new token")
	}
	if _, ok := store.tokens[first.RefreshToken]; ok {
		t.Fatal("old refresh token must be revoked")
	}

	_, err = svc.RefreshToken(ctx, first.RefreshToken)
	var unauthorized *UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("reusing a rotated token must fail, got %v", err)
	}

	if err := svc.Logout(ctx, second.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(store.tokens) != 0 {
		t.Fatalf("logout must revoke the token, left %v", store.tokens)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		pw      string
		wantErr bool
	}{
		{"abc1", true},
		{"abcdefgh", true},
		{"abcdefg1", false},
	}
	for _, tc := range tests {
		if err := validatePassword(tc.pw); (err != nil) != tc.wantErr {
			t.Errorf("validatePassword(%q) err = %v, wantErr %v", tc.pw, err, tc.wantErr)
		}
	}
}
