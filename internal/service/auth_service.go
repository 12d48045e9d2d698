package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/metrics"
	"resellerportal/internal/model"
	"resellerportal/internal/notification"
	"resellerportal/internal/ratelimit"
	"resellerportal/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type LoginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token              string           `json:"token"`
	ExpiresAt          time.Time        `json:"expiresAt"`
	Principal          *authz.Principal `json:"principal"`
	MustChangePassword bool             `json:"mustChangePassword"`
	FirstLogin         bool             `json:"firstLogin"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type RequestPasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// Notifier appends notification intents to the outbox
type Notifier interface {
	Enqueue(ctx context.Context, msg notification.Message) error
}

// PrincipalLoader resolves an account into a principal with effective permissions
type PrincipalLoader interface {
	Principal(ctx context.Context, accountID uuid.UUID) (*authz.Principal, error)
}

// --- Interface ---

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	ChangePassword(ctx context.Context, p *authz.Principal, req ChangePasswordRequest) error
	RequestPasswordReset(ctx context.Context, req RequestPasswordResetRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

// AuthConfig holds the knobs of the password lifecycle
type AuthConfig struct {
	ResetTTL    time.Duration
	FrontendURL string
}

type authService struct {
	accountRepo repository.AccountRepository
	resetRepo   repository.ResetTokenRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	principals  PrincipalLoader
	tokens      *authz.TokenManager
	notifier    Notifier
	limiter     ratelimit.Limiter
	cfg         AuthConfig
	log         *zap.Logger
	metrics     *metrics.Metrics
	hashCost    int
	now         func() time.Time
}

func NewAuthService(
	accountRepo repository.AccountRepository,
	resetRepo repository.ResetTokenRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	principals PrincipalLoader,
	tokens *authz.TokenManager,
	notifier Notifier,
	limiter ratelimit.Limiter,
	cfg AuthConfig,
	log *zap.Logger,
	m *metrics.Metrics,
) AuthService {
	return &authService{
		accountRepo: accountRepo,
		resetRepo:   resetRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		principals:  principals,
		tokens:      tokens,
		notifier:    notifier,
		limiter:     limiter,
		cfg:         cfg,
		log:         log,
		metrics:     m,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// --- Implementation ---

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	identifier := strings.TrimSpace(req.Login)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" {
		return nil, apperr.Validation("username or email is required")
	}

	account, err := s.accountRepo.GetByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.AuthAttempts.WithLabelValues("invalid").Inc()
			return nil, apperr.Unauthenticated("invalid username or password")
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.AuthAttempts.WithLabelValues("invalid").Inc()
		return nil, apperr.Unauthenticated("invalid username or password")
	}
	if !account.IsActive {
		s.metrics.AuthAttempts.WithLabelValues("inactive").Inc()
		return nil, apperr.Unauthenticated("account is disabled")
	}

	token, expiresAt, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.TouchLogin(ctx, account.ID, s.now()); err != nil {
		s.log.Warn("failed to record login time", zap.String("account_id", account.ID.String()), zap.Error(err))
	}

	principal, err := s.principals.Principal(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthAttempts.WithLabelValues("success").Inc()

	return &LoginResponse{
		Token:              token,
		ExpiresAt:          expiresAt,
		Principal:          principal,
		MustChangePassword: account.MustChangePassword,
		FirstLogin:         account.FirstLogin,
	}, nil
}

func (s *authService) ChangePassword(ctx context.Context, p *authz.Principal, req ChangePasswordRequest) error {
	if p == nil {
		return apperr.Unauthenticated("authentication required")
	}

	account, err := s.accountRepo.GetByID(ctx, p.AccountID)
	if err != nil {
		return notFound(err, "account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return apperr.Validation("current password is incorrect")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword == req.CurrentPassword {
		return apperr.Validation("new password must differ from the current password")
	}

	hash, err := hashPassword(req.NewPassword, s.hashCost)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.accountRepo.UpdatePassword(txCtx, account.ID, hash, false, false); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, &account.ID, model.ActionChangePassword, account.ID.String(), account.Username,
			map[string]interface{}{"firstLogin": account.FirstLogin})
	})
}

// RequestPasswordReset issues a reset link for an active reseller. It returns
// nil whether or not the address is known so callers cannot enumerate accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, req RequestPasswordResetRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return err
	}

	allowed, err := s.limiter.Allow(ctx, "password-reset:"+email)
	if err != nil {
		s.log.Warn("rate limiter unavailable", zap.Error(err))
	}
	if !allowed {
		return apperr.RateLimited("too many reset requests, try again later")
	}

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !account.IsReseller() || !account.IsActive {
		return nil
	}

	token, err := newToken()
	if err != nil {
		return err
	}
	now := s.now()
	reset := &model.PasswordResetToken{
		Token:     token,
		AccountID: account.ID,
		ExpiresAt: now.Add(s.cfg.ResetTTL),
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.resetRepo.ConsumeOutstanding(txCtx, account.ID, now); err != nil {
			return fmt.Errorf("failed to retire previous reset tokens: %w", err)
		}
		if err := s.resetRepo.Create(txCtx, reset); err != nil {
			return fmt.Errorf("failed to create reset token: %w", err)
		}
		return s.notifier.Enqueue(txCtx, notification.Message{
			Event:              model.EventPasswordResetRequest,
			RecipientEmail:     account.Email,
			RecipientAccountID: &account.ID,
			Subject:            "Reset your password",
			Payload: map[string]interface{}{
				"username":  account.Username,
				"link":      tokenLink(s.cfg.FrontendURL, "/reset-password", token),
				"expiresAt": reset.ExpiresAt.UTC().Format(time.RFC3339),
			},
		})
	})
}

func (s *authService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	reset, err := s.resetRepo.FindByToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return notFound(err, "reset token")
	}
	now := s.now()
	if err := tokenState(reset.Consumed, reset.ExpiresAt, now, "reset link"); err != nil {
		return err
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}

	account, err := s.accountRepo.GetByID(ctx, reset.AccountID)
	if err != nil {
		return notFound(err, "account")
	}
	hash, err := hashPassword(req.NewPassword, s.hashCost)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		consumed, err := s.resetRepo.Consume(txCtx, reset.ID, now)
		if err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}
		if !consumed {
			current, err := s.resetRepo.FindByToken(txCtx, reset.Token)
			if err != nil {
				return notFound(err, "reset token")
			}
			return tokenState(current.Consumed, current.ExpiresAt, now, "reset link")
		}

		if err := s.accountRepo.UpdatePassword(txCtx, account.ID, hash, false, false); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, &account.ID, model.ActionResetPassword, account.ID.String(), account.Username,
			map[string]interface{}{"initiatedBy": "self-service"})
	})
}

// tokenState classifies a single-use token. Consumed wins over expired.
func tokenState(consumed bool, expiresAt, now time.Time, what string) error {
	if consumed {
		return apperr.Consumed("this %s has already been used", what)
	}
	if !now.Before(expiresAt) {
		return apperr.Expired("this %s has expired", what)
	}
	return nil
}
