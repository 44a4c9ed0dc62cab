package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/macmann/Thu-Kha-EMR/internal/platform/auth"
	"github.com/macmann/Thu-Kha-EMR/internal/platform/httperr"
)

var knownRoles = map[string]bool{
	auth.RoleITAdmin:          true,
	auth.RoleDoctor:           true,
	auth.RoleNurse:            true,
	auth.RoleReceptionist:     true,
	auth.RolePharmacist:       true,
	auth.RolePharmacyTech:     true,
	auth.RoleInventoryManager: true,
}

type Service struct {
	repo      Repository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewService(repo Repository, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// CreateUserInput is the admin user-provisioning request.
type CreateUserInput struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Name     string     `json:"name"`
	Role     string     `json:"role"`
	DoctorID *uuid.UUID `json:"doctorId"`
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, httperr.BadRequest("valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, httperr.BadRequest("password must be at least 8 characters")
	}
	if !knownRoles[in.Role] {
		return nil, httperr.BadRequest(fmt.Sprintf("unknown role %q", in.Role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(in.Name),
		Role:         in.Role,
		DoctorID:     in.DoctorID,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// LoginResult carries the bearer token and the authenticated user.
type LoginResult struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// Login verifies credentials and issues a signed token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, httperr.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		return nil, httperr.Unauthorized("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, httperr.Unauthorized("invalid credentials")
	}

	token, err := auth.IssueToken(s.jwtSecret, s.tokenTTL, u.ID, u.Role, u.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{AccessToken: token, User: u}, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, httperr.NotFound("User not found")
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}
