package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"blooddoc-api-server/internal/apperr"
	"blooddoc-api-server/internal/auth"
	"blooddoc-api-server/internal/database"
	"blooddoc-api-server/internal/geo"
	"blooddoc-api-server/internal/models"
)

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
	Address  string
	Phone    string
	City     string
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  models.Account `json:"user"`
	Token string         `json:"token"`
}

type AccountService struct {
	accounts  AccountRepository
	hospitals HospitalRepository
	tokens    *auth.TokenManager
	resolver  geo.Resolver
	now       func() time.Time
}

func NewAccountService(accounts AccountRepository, hospitals HospitalRepository, tokens *auth.TokenManager, resolver geo.Resolver) *AccountService {
	return &AccountService{
		accounts:  accounts,
		hospitals: hospitals,
		tokens:    tokens,
		resolver:  resolver,
		now:       time.Now,
	}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.City = strings.TrimSpace(in.City)

	if in.Email == "" || in.Password == "" || in.Name == "" || in.Role == "" {
		return nil, apperr.Validation("Email, password, name and role are required.")
	}
	if in.Role != models.RolePatient && in.Role != models.RoleHospital {
		return nil, apperr.Validation("Role must be either patient or hospital.")
	}
	if in.Role == models.RoleHospital && in.City == "" {
		return nil, apperr.Validation("City is required for hospital registration.")
	}

	_, err := s.accounts.FindByEmailRole(ctx, in.Email, in.Role)
	if err == nil {
		return nil, apperr.Conflict("User with this email and role already exists.")
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, apperr.Internal("Server error", err)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	account := &models.Account{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         in.Role,
		CreatedAt:    s.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.Conflict("User with this email and role already exists.")
		}
		return nil, apperr.Internal("Server error", err)
	}

	if in.Role == models.RoleHospital {
		now := s.now()
		profile := &models.Hospital{
			Name:           in.Name,
			Address:        in.Address,
			Phone:          in.Phone,
			Email:          in.Email,
			City:           in.City,
			Location:       resolveCity(ctx, s.resolver, in.City),
			BloodInventory: models.Inventory{},
			Beds:           []models.Bed{},
			Staff:          []models.StaffMember{},
			OwnerID:        account.ID.Hex(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.hospitals.Create(ctx, profile); err != nil {
			// Drop the account so the same registration can be retried.
			if derr := s.accounts.Delete(context.WithoutCancel(ctx), account.ID); derr != nil {
				log.Error().Err(derr).Str("user_id", account.ID.Hex()).Msg("failed to remove account after hospital profile error")
			}
			return nil, apperr.Internal("Failed to create hospital profile", err)
		}
		log.Info().Str("user_id", account.ID.Hex()).Str("city", in.City).Msg("hospital profile created at registration")
	}

	log.Info().Str("user_id", account.ID.Hex()).Str("role", account.Role).Msg("account registered")
	return s.issue(account)
}

func (s *AccountService) Login(ctx context.Context, email, password, role string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || role == "" {
		return nil, apperr.Validation("Email, password and role are required.")
	}

	account, err := s.accounts.FindByEmailRole(ctx, email, role)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, apperr.Internal("Server error", err)
	}
	if !auth.CheckPasswordHash(password, account.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	return s.issue(account)
}

func (s *AccountService) issue(a *models.Account) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Principal{
		ID:    a.ID.Hex(),
		Email: a.Email,
		Name:  a.Name,
		Role:  a.Role,
	})
	if err != nil {
		return nil, apperr.Internal("Failed to issue token", err)
	}
	return &AuthResult{User: *a, Token: token}, nil
}

// resolveCity returns nil for an unknown city; the profile is stored without a location.
func resolveCity(ctx context.Context, r geo.Resolver, city string) *models.GeoPoint {
	if r == nil || city == "" {
		return nil
	}
	p, ok := r.Resolve(ctx, city)
	if !ok {
		log.Warn().Str("city", city).Msg("city not geocoded, location left empty")
		return nil
	}
	return &p
}
