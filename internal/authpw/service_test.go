package authpw

import (
	"context"
	"errors"
	"testing"

	"galley/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	if user, ok := m.users[userID]; ok {
		user.PasswordHash = passwordHash
		m.users[userID] = user
		return nil
	}
	return errors.New("user not found")
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	t.Run("successful sign up", func(t *testing.T) {
		req := SignUpRequest{
			Email:       "test@example.com",
			Password:    "password123",
			DisplayName: "Test User",
		}

		user, err := svc.SignUp(ctx, req)
		if err != nil {
			t.Fatalf("SignUp failed: %v", err)
		}
		if user.ID == "" {
			t.Error("expected user ID to be set")
		}
		if user.Role != "writer" {
			t.Errorf("new accounts should default to writer, got %q", user.Role)
		}
		if user.PasswordHash == "password123" {
			t.Error("password must be stored hashed")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")); err != nil {
			t.Errorf("stored hash should match the password: %v", err)
		}
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "test@example.com",
			Password:    "password123",
			DisplayName: "Another User",
		})
		if err == nil {
			t.Fatal("expected error for duplicate email")
		}
	})

	t.Run("email is case normalized", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "TEST@Example.com",
			Password:    "password123",
			DisplayName: "Shouty User",
		})
		if err == nil {
			t.Fatal("expected duplicate after normalization")
		}
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "short@example.com",
			Password:    "short",
			DisplayName: "Short",
		})
		if err == nil {
			t.Fatal("expected error for short password")
		}
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		_, err := svc.SignUp(ctx, SignUpRequest{Email: "x@example.com"})
		if err == nil {
			t.Fatal("expected error for missing fields")
		}
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	created, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "ines@example.com",
		Password:    "correct-horse",
		DisplayName: "Ines",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	t.Run("correct credentials", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "ines@example.com", Password: "correct-horse"})
		if err != nil {
			t.Fatalf("SignIn failed: %v", err)
		}
		if user.ID != created.ID {
			t.Errorf("got user %q, want %q", user.ID, created.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "ines@example.com", Password: "wrong"}); err == nil {
			t.Fatal("expected error for wrong password")
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@example.com", Password: "whatever"}); err == nil {
			t.Fatal("expected error for unknown email")
		}
	})
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	svc := NewService(mockStore)

	created, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "marta@example.com",
		Password:    "old-password",
		DisplayName: "Marta",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	t.Run("wrong current password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, ChangePasswordRequest{
			UserID:          created.ID,
			CurrentPassword: "not-it",
			NewPassword:     "new-password",
		})
		if err == nil {
			t.Fatal("expected error for wrong current password")
		}
	})

	t.Run("successful change", func(t *testing.T) {
		err := svc.ChangePassword(ctx, ChangePasswordRequest{
			UserID:          created.ID,
			CurrentPassword: "old-password",
			NewPassword:     "new-password",
		})
		if err != nil {
			t.Fatalf("ChangePassword failed: %v", err)
		}

		if _, err := svc.SignIn(ctx, SignInRequest{Email: "marta@example.com", Password: "new-password"}); err != nil {
			t.Errorf("sign in with new password failed: %v", err)
		}
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "marta@example.com", Password: "old-password"}); err == nil {
			t.Error("old password should no longer work")
		}
	})
}
