package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const minPasswordLength = 8

// Store describes persistence operations required by the credential store.
type Store interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ResolveUsernames(ctx context.Context, usernames []string) (map[string]*User, error)
	UpdateProfile(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Service implements login, registration and password management.
type Service struct {
	store Store
	now   func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a credential Service.
func NewService(store Store, opts ...ServiceOption) *Service {
	svc := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Verify authenticates a username/password pair. It returns
// ErrInvalidCredentials for both unknown usernames and wrong passwords.
func (s *Service) Verify(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Registration is the input for Register.
type Registration struct {
	Username   string
	FullName   string
	Email      string
	Department string
	Password   string
	Role       string
}

// Register creates a new account. Username uniqueness is enforced by the
// storage constraint; a duplicate surfaces as ErrConflict.
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.FullName = strings.TrimSpace(reg.FullName)
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Department = strings.TrimSpace(reg.Department)
	if reg.Username == "" || reg.FullName == "" || reg.Email == "" {
		return nil, fmt.Errorf("%w: username, full name and email are required", ErrInvalidInput)
	}
	if len(reg.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	role := reg.Role
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     reg.Username,
		FullName:     reg.FullName,
		Email:        reg.Email,
		Department:   reg.Department,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ProfileUpdate is the input for UpdateProfile. Empty fields keep their
// current value; role changes require an explicit valid role.
type ProfileUpdate struct {
	FullName   string
	Email      string
	Department string
	Role       string
}

// UpdateProfile applies an administrative profile change to a user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*User, error) {
	user, err := s.store.Find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(upd.FullName); v != "" {
		user.FullName = v
	}
	if v := strings.TrimSpace(upd.Email); v != "" {
		user.Email = v
	}
	if v := strings.TrimSpace(upd.Department); v != "" {
		user.Department = v
	}
	if upd.Role != "" {
		if upd.Role != RoleUser && upd.Role != RoleAdmin {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, upd.Role)
		}
		user.Role = upd.Role
	}
	if err := s.store.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password under whichever digest scheme
// is stored and writes the new one as bcrypt.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	user, err := s.store.Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, userID, hash)
}
