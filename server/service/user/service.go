package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/gamelogd/server/auth"
	apperrors "github.com/hrygo/gamelogd/server/internal/errors"
	"github.com/hrygo/gamelogd/store"
)

// Account is a user as returned to clients. It never carries the password hash.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the result of a successful registration or login.
type Session struct {
	User  *Account `json:"user"`
	Token string   `json:"token"`
}

// Service registers and authenticates users.
type Service struct {
	store  *store.Store
	tokens *auth.TokenManager
	now    func() time.Time
}

func NewService(s *store.Store, tokens *auth.TokenManager, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: s, tokens: tokens, now: now}
}

// Register creates an account with empty preferences and signs a token for it.
func (s *Service) Register(ctx context.Context, form *auth.Registration) (*Session, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateUser(ctx, &store.User{
		ID:           shortuuid.New(),
		Email:        form.Email,
		Username:     strings.TrimSpace(form.Username),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.Conflict("User with this email already exists", err)
		}
		return nil, err
	}
	return s.session(created)
}

// Login checks the credentials. Unknown emails and wrong passwords fail alike.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, apperrors.InvalidArgument("Email and password are required")
	}
	if !auth.ValidEmail(email) {
		return nil, apperrors.InvalidArgument("Invalid email format")
	}

	found, err := s.store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil {
		return nil, err
	}
	if found == nil || !auth.ComparePassword(found.PasswordHash, password) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	return s.session(found)
}

// Get returns the account for userID.
func (s *Service) Get(ctx context.Context, userID string) (*Account, error) {
	found, err := s.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apperrors.NotFound("User not found")
	}
	return accountOf(found), nil
}

// Exists reports whether userID names a registered account.
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	found, err := s.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return false, err
	}
	return found != nil, nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]*Account, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]*Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, accountOf(u))
	}
	return accounts, nil
}

// Stats counts the stored records.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.GetStats(ctx)
}

// Delete removes the account with its preferences and notes.
func (s *Service) Delete(ctx context.Context, userID string) error {
	err := s.store.DeleteUser(ctx, &store.DeleteUser{ID: userID})
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("User not found")
	}
	return err
}

func (s *Service) session(u *store.User) (*Session, error) {
	token, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: accountOf(u), Token: token}, nil
}

func accountOf(u *store.User) *Account {
	return &Account{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
