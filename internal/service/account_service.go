package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"
	"resellerportal/internal/repository"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateAccountRequest struct {
	Username    string     `json:"username" binding:"required"`
	Email       string     `json:"email" binding:"required,email"`
	DisplayName string     `json:"displayName"`
	LegacyRole  string     `json:"legacyRole"`
	RoleID      *uuid.UUID `json:"roleId"`
	Company     string     `json:"company"`
	Phone       string     `json:"phone"`
}

type UpdateAccountRequest struct {
	Email       *string    `json:"email"`
	DisplayName *string    `json:"displayName"`
	LegacyRole  *string    `json:"legacyRole"`
	RoleID      *uuid.UUID `json:"roleId"`
	ClearRole   bool       `json:"clearRole"`
	Company     *string    `json:"company"`
	Phone       *string    `json:"phone"`
	IsActive    *bool      `json:"isActive"`
}

type AccountResponse struct {
	ID                 string  `json:"id"`
	Kind               string  `json:"kind"`
	Username           string  `json:"username"`
	Email              string  `json:"email"`
	DisplayName        string  `json:"displayName"`
	LegacyRole         string  `json:"legacyRole,omitempty"`
	RoleID             *string `json:"roleId"`
	RoleName           string  `json:"roleName,omitempty"`
	IsActive           bool    `json:"isActive"`
	MustChangePassword bool    `json:"mustChangePassword"`
	FirstLogin         bool    `json:"firstLogin"`
	Company            string  `json:"company,omitempty"`
	Phone              string  `json:"phone,omitempty"`
	LastLoginAt        *string `json:"lastLoginAt"`
	CreatedAt          string  `json:"createdAt"`
}

// CreatedAccountResponse carries the temporary password exactly once.
type CreatedAccountResponse struct {
	Account           AccountResponse `json:"account"`
	TemporaryPassword string          `json:"temporaryPassword"`
}

type ResetPasswordResponse struct {
	AccountID         string `json:"accountId"`
	Username          string `json:"username"`
	TemporaryPassword string `json:"temporaryPassword"`
}

// --- Interface ---

type AccountService interface {
	ListAccounts(ctx context.Context, p *authz.Principal, kind string, paging pagination.Params, search string) ([]AccountResponse, int64, error)
	GetAccount(ctx context.Context, p *authz.Principal, kind, id string) (*AccountResponse, error)
	CreateAccount(ctx context.Context, p *authz.Principal, kind string, req CreateAccountRequest) (*CreatedAccountResponse, error)
	UpdateAccount(ctx context.Context, p *authz.Principal, kind, id string, req UpdateAccountRequest) (*AccountResponse, error)
	ResetPassword(ctx context.Context, p *authz.Principal, id string) (*ResetPasswordResponse, error)
	Bootstrap(ctx context.Context, email string) (*CreatedAccountResponse, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
	roleRepo    repository.RoleRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hashCost    int
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) AccountService {
	return &accountService{
		accountRepo: accountRepo,
		roleRepo:    roleRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hashCost:    bcrypt.DefaultCost,
	}
}

// Capabilities gating each account kind
func viewCapability(kind string) authz.Capability {
	if kind == model.AccountKindAdmin {
		return authz.SystemUserManagement
	}
	return authz.ResellersView
}

func createCapability(kind string) authz.Capability {
	if kind == model.AccountKindAdmin {
		return authz.SystemUserManagement
	}
	return authz.ResellersCreate
}

func editCapability(kind string) authz.Capability {
	if kind == model.AccountKindAdmin {
		return authz.SystemUserManagement
	}
	return authz.ResellersEdit
}

func deactivateCapability(kind string) authz.Capability {
	if kind == model.AccountKindAdmin {
		return authz.SystemUserManagement
	}
	return authz.ResellersDelete
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// --- Implementation ---

func (s *accountService) ListAccounts(ctx context.Context, p *authz.Principal, kind string, paging pagination.Params, search string) ([]AccountResponse, int64, error) {
	if err := authz.Require(p, viewCapability(kind)); err != nil {
		return nil, 0, err
	}
	accounts, total, err := s.accountRepo.List(ctx, repository.AccountFilter{Kind: kind, Search: search, Paging: paging})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	res := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		res = append(res, toAccountResponse(&accounts[i]))
	}
	return res, total, nil
}

func (s *accountService) GetAccount(ctx context.Context, p *authz.Principal, kind, id string) (*AccountResponse, error) {
	if err := authz.Require(p, viewCapability(kind)); err != nil {
		return nil, err
	}
	account, err := s.loadKind(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	resp := toAccountResponse(account)
	return &resp, nil
}

// CreateAccount provisions an account whose temporary password is its username.
// The holder must change it on first login.
func (s *accountService) CreateAccount(ctx context.Context, p *authz.Principal, kind string, req CreateAccountRequest) (*CreatedAccountResponse, error) {
	if err := authz.Require(p, createCapability(kind)); err != nil {
		return nil, err
	}
	return s.create(ctx, actorID(p), kind, req)
}

func (s *accountService) create(ctx context.Context, actor *uuid.UUID, kind string, req CreateAccountRequest) (*CreatedAccountResponse, error) {
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		Kind:               kind,
		Username:           username,
		Email:              email,
		DisplayName:        strings.TrimSpace(req.DisplayName),
		IsActive:           true,
		MustChangePassword: true,
		FirstLogin:         true,
		CreatedBy:          actor,
	}
	if account.DisplayName == "" {
		account.DisplayName = username
	}
	if kind == model.AccountKindReseller {
		account.Company = strings.TrimSpace(req.Company)
		account.Phone = strings.TrimSpace(req.Phone)
	}

	if err := s.applyRole(ctx, account, req.LegacyRole, req.RoleID); err != nil {
		return nil, err
	}

	hash, err := hashPassword(username, s.hashCost)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = hash

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := ensureAvailable(txCtx, s.accountRepo, username, email); err != nil {
			return err
		}
		if err := s.accountRepo.Create(txCtx, account); err != nil {
			if isDuplicate(err) {
				return apperr.Conflict("username or email already exists")
			}
			return fmt.Errorf("failed to create account: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actor, model.ActionCreateAccount, account.ID.String(), account.Username,
			map[string]interface{}{"kind": kind, "email": email, "legacyRole": account.LegacyRole, "roleId": account.RoleID})
	})
	if err != nil {
		return nil, err
	}

	return &CreatedAccountResponse{Account: toAccountResponse(account), TemporaryPassword: username}, nil
}

// applyRole validates and sets the role reference. A custom role must exist and
// be active; legacy tiers are admin-only.
func (s *accountService) applyRole(ctx context.Context, account *model.Account, legacyRole string, roleID *uuid.UUID) error {
	if roleID != nil {
		role, err := s.roleRepo.FindByID(ctx, *roleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("role does not exist")
			}
			return fmt.Errorf("failed to load role: %w", err)
		}
		if !role.IsActive {
			return apperr.Validation("role '%s' is inactive", role.Name)
		}
		account.RoleID = &role.ID
		account.Role = role
	}

	legacyRole = strings.TrimSpace(legacyRole)
	switch {
	case legacyRole == "":
		if account.IsAdmin() && account.RoleID == nil && account.LegacyRole == "" {
			return apperr.Validation("admin accounts need a legacyRole or a roleId")
		}
	case !account.IsAdmin():
		return apperr.Validation("legacy roles only apply to admin accounts")
	case !model.IsLegacyRole(legacyRole):
		return apperr.Validation("unknown legacy role '%s'", legacyRole)
	default:
		account.LegacyRole = legacyRole
	}
	return nil
}

func ensureAvailable(ctx context.Context, repo repository.AccountRepository, username, email string) error {
	usernameTaken, emailTaken, err := repo.Taken(ctx, username, email)
	if err != nil {
		return fmt.Errorf("failed to check account uniqueness: %w", err)
	}
	if usernameTaken {
		return apperr.Conflict("username '%s' already exists", username)
	}
	if emailTaken {
		return apperr.Conflict("email '%s' already exists", email)
	}
	return nil
}

func (s *accountService) UpdateAccount(ctx context.Context, p *authz.Principal, kind, id string, req UpdateAccountRequest) (*AccountResponse, error) {
	if err := authz.Require(p, editCapability(kind)); err != nil {
		return nil, err
	}
	if req.IsActive != nil {
		if err := authz.Require(p, deactivateCapability(kind)); err != nil {
			return nil, err
		}
	}

	account, err := s.loadKind(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if req.IsActive != nil && !*req.IsActive && account.ID == p.AccountID {
		return nil, apperr.Validation("you cannot deactivate your own account")
	}

	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		account.Email = email
	}
	if req.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if kind == model.AccountKindReseller {
		if req.Company != nil {
			account.Company = strings.TrimSpace(*req.Company)
		}
		if req.Phone != nil {
			account.Phone = strings.TrimSpace(*req.Phone)
		}
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}
	if req.ClearRole {
		account.RoleID = nil
		account.Role = nil
	}
	legacyRole := ""
	if req.LegacyRole != nil {
		legacyRole = *req.LegacyRole
	}
	if err := s.applyRole(ctx, account, legacyRole, req.RoleID); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.accountRepo.Update(txCtx, account); err != nil {
			if isDuplicate(err) {
				return apperr.Conflict("email '%s' already exists", account.Email)
			}
			return fmt.Errorf("failed to update account: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionUpdateAccount, account.ID.String(), account.Username, req)
	})
	if err != nil {
		return nil, err
	}

	resp := toAccountResponse(account)
	return &resp, nil
}

// ResetPassword sets the password back to the username and forces a change.
// The plaintext is returned once for display and never stored.
func (s *accountService) ResetPassword(ctx context.Context, p *authz.Principal, id string) (*ResetPasswordResponse, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, err
	}
	accountID, err := parseID(id, "account")
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, notFound(err, "account")
	}

	hash, err := hashPassword(account.Username, s.hashCost)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.accountRepo.UpdatePassword(txCtx, account.ID, hash, true, account.FirstLogin); err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionResetPassword, account.ID.String(), account.Username,
			map[string]interface{}{"initiatedBy": "admin"})
	})
	if err != nil {
		return nil, err
	}

	return &ResetPasswordResponse{
		AccountID:         account.ID.String(),
		Username:          account.Username,
		TemporaryPassword: account.Username,
	}, nil
}

// Bootstrap creates the first super_admin when no admin exists yet.
func (s *accountService) Bootstrap(ctx context.Context, email string) (*CreatedAccountResponse, error) {
	count, err := s.accountRepo.CountByKind(ctx, model.AccountKindAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return nil, nil
	}

	username := "superadmin"
	if at := strings.Index(email, "@"); at > 0 {
		if local, err := normalizeUsername(strings.ToLower(email[:at])); err == nil {
			username = local
		}
	}
	return s.create(ctx, nil, model.AccountKindAdmin, CreateAccountRequest{
		Username:    username,
		Email:       email,
		DisplayName: "Super Admin",
		LegacyRole:  model.LegacyRoleSuperAdmin,
	})
}

func (s *accountService) loadKind(ctx context.Context, kind, id string) (*model.Account, error) {
	accountID, err := parseID(id, "account")
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, notFound(err, kind)
	}
	if account.Kind != kind {
		return nil, apperr.NotFound("%s not found", kind)
	}
	if account.RoleID != nil {
		if role, err := s.roleRepo.FindByID(ctx, *account.RoleID); err == nil {
			account.Role = role
		}
	}
	return account, nil
}

func toAccountResponse(a *model.Account) AccountResponse {
	resp := AccountResponse{
		ID:                 a.ID.String(),
		Kind:               a.Kind,
		Username:           a.Username,
		Email:              a.Email,
		DisplayName:        a.DisplayName,
		LegacyRole:         a.LegacyRole,
		IsActive:           a.IsActive,
		MustChangePassword: a.MustChangePassword,
		FirstLogin:         a.FirstLogin,
		Company:            a.Company,
		Phone:              a.Phone,
		CreatedAt:          a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if a.RoleID != nil {
		id := a.RoleID.String()
		resp.RoleID = &id
	}
	if a.Role != nil {
		resp.RoleName = a.Role.Name
	} else if a.RoleID == nil {
		resp.RoleName = a.LegacyRole
	}
	if a.LastLoginAt != nil {
		at := a.LastLoginAt.Format("2006-01-02T15:04:05Z07:00")
		resp.LastLoginAt = &at
	}
	return resp
}
