package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles authentication, JWT, and account management.
type AuthService struct {
	jwtSecret     string
	adminEmail    string
	adminPassword string
	accounts      *repository.AccountRepository
	plans         *repository.PlanRepository
	credits       *CreditService
	validate      *validator.Validate
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret, adminEmail, adminPassword string, accounts *repository.AccountRepository, plans *repository.PlanRepository, credits *CreditService) *AuthService {
	return &AuthService{
		jwtSecret:     jwtSecret,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		accounts:      accounts,
		plans:         plans,
		credits:       credits,
		validate:      validator.New(),
	}
}

// SeedAdmin creates the default super-admin account if it doesn't exist.
func (s *AuthService) SeedAdmin(ctx context.Context) error {
	exists, err := s.accounts.Exists(ctx, s.adminEmail)
	if err != nil {
		return fmt.Errorf("failed to check admin existence: %w", err)
	}
	if exists {
		log.Printf("✅ Admin account already exists (%s)", s.adminEmail)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now()
	admin := &domain.Account{
		ID:          domain.NewID(),
		Email:       s.adminEmail,
		DisplayName: "Administrator",
		Password:    string(hashedPassword),
		Role:        domain.RoleSuperAdmin,
		PlanID:      "free",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.accounts.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Printf("✅ Admin account created (%s)", s.adminEmail)
	return nil
}

// Register creates a self-service account on the free plan and grants the
// plan allotment as a signup-bonus ledger entry.
func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	exists, err := s.accounts.Exists(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check account", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("email already registered")
	}

	plan, err := s.plans.FindByID(ctx, "free")
	if err != nil {
		return nil, domain.ErrInternal("failed to load free plan", err)
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound()
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	now := time.Now()
	account := &domain.Account{
		ID:           domain.NewID(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		Password:     string(hashedPassword),
		Role:         domain.RoleUser,
		PlanID:       plan.ID,
		CreditsTotal: plan.CreditsIncluded,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, domain.ErrInternal("failed to create account", err)
	}

	// The signup bonus goes through the ledger so replay always balances.
	if plan.CreditsIncluded > 0 {
		if _, _, err := s.credits.Record(ctx, account.ID, domain.TransactionAdd,
			plan.CreditsIncluded, "signup bonus", domain.SystemActor, nil, ""); err != nil {
			return nil, domain.ErrInternal("failed to grant signup credits", err)
		}
		account.CreditsRemaining = plan.CreditsIncluded
	}

	token, err := s.signToken(account)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{Token: token, User: account.Response()}, nil
}

// Login validates credentials against the database and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.LoginResponse, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	if !account.IsActive {
		return nil, domain.ErrForbidden("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return nil, domain.ErrUnauthorized("invalid credentials")
	}

	token, err := s.signToken(account)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{Token: token, User: account.Response()}, nil
}

func (s *AuthService) signToken(account *domain.Account) (string, error) {
	claims := jwt.MapClaims{
		"sub":   account.ID,
		"email": account.Email,
		"role":  account.Role,
		"exp":   time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", domain.ErrInternal("failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:   getClaimString(claims, "sub"),
		Email: getClaimString(claims, "email"),
		Role:  getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// ListAccounts returns accounts matching the search term (admin only).
func (s *AuthService) ListAccounts(ctx context.Context, search string) ([]domain.AccountResponse, error) {
	accounts, err := s.accounts.List(ctx, search)
	if err != nil {
		return nil, domain.ErrInternal("failed to list accounts", err)
	}

	responses := make([]domain.AccountResponse, len(accounts))
	for i, a := range accounts {
		responses[i] = a.Response()
	}
	return responses, nil
}

// CreateAccount creates a new account with bcrypt password (admin only).
func (s *AuthService) CreateAccount(ctx context.Context, req *domain.CreateAccountRequest) (*domain.AccountResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	exists, err := s.accounts.Exists(ctx, req.Email)
	if err != nil {
		return nil, domain.ErrInternal("failed to check account", err)
	}
	if exists {
		return nil, domain.ErrBadRequest("email already registered")
	}

	planID := req.PlanID
	if planID == "" {
		planID = "free"
	}
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find plan", err)
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound()
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("failed to hash password", err)
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	now := time.Now()
	account := &domain.Account{
		ID:           domain.NewID(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		Password:     string(hashedPassword),
		Role:         role,
		PlanID:       plan.ID,
		CreditsTotal: plan.CreditsIncluded,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, domain.ErrInternal("failed to create account", err)
	}

	if plan.CreditsIncluded > 0 {
		if _, _, err := s.credits.Record(ctx, account.ID, domain.TransactionAdd,
			plan.CreditsIncluded, "initial plan allotment", domain.SystemActor, nil, ""); err != nil {
			return nil, domain.ErrInternal("failed to grant initial credits", err)
		}
		account.CreditsRemaining = plan.CreditsIncluded
	}

	resp := account.Response()
	return &resp, nil
}

// UpdateAccount applies admin edits to profile fields.
func (s *AuthService) UpdateAccount(ctx context.Context, id string, req *domain.UpdateAccountRequest) (*domain.AccountResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound()
	}

	if req.DisplayName != nil {
		account.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		account.Role = *req.Role
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, domain.ErrInternal("failed to update account", err)
	}
	resp := account.Response()
	return &resp, nil
}

// DeactivateAccount soft-deletes an account. The row and its ledger history
// are retained; the account just can't log in or be billed.
func (s *AuthService) DeactivateAccount(ctx context.Context, id string) error {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return domain.ErrAccountNotFound()
	}
	if account.Role == domain.RoleSuperAdmin {
		return domain.ErrBadRequest("cannot deactivate a super-admin account")
	}

	if err := s.accounts.SetActive(ctx, id, false); err != nil {
		return domain.ErrInternal("failed to deactivate account", err)
	}
	return nil
}

// GetAccountByID returns an account profile by ID (for /api/v1/auth/me).
func (s *AuthService) GetAccountByID(ctx context.Context, id string) (*domain.AccountResponse, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find account", err)
	}
	if account == nil {
		return nil, domain.ErrAccountNotFound()
	}
	resp := account.Response()
	return &resp, nil
}
