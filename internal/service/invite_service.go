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
	"resellerportal/internal/repository"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type IssueInviteRequest struct {
	Email       string     `json:"email" binding:"required"`
	AccountKind string     `json:"accountKind"`
	LegacyRole  string     `json:"legacyRole"`
	RoleID      *uuid.UUID `json:"roleId"`
	Name        string     `json:"name"`
	Company     string     `json:"company"`
	Phone       string     `json:"phone"`
}

type CompleteRegistrationRequest struct {
	Token       string `json:"token" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
	Company     string `json:"company"`
	Phone       string `json:"phone"`
}

type InviteResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	AccountKind   string    `json:"accountKind"`
	RoleName      string    `json:"roleName"`
	RoleID        *string   `json:"roleId"`
	Name          string    `json:"name,omitempty"`
	Company       string    `json:"company,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt"`
	TimeRemaining int64     `json:"timeRemaining"` // seconds, 0 once expired
	Expired       bool      `json:"expired"`
	CreatedAt     time.Time `json:"createdAt"`
	InviteLink    string    `json:"inviteLink,omitempty"`
}

// InviteData is what an unauthenticated visitor of a registration link sees.
type InviteData struct {
	Email         string    `json:"email"`
	AccountKind   string    `json:"accountKind"`
	RoleName      string    `json:"roleName"`
	Name          string    `json:"name,omitempty"`
	Company       string    `json:"company,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt"`
	TimeRemaining int64     `json:"timeRemaining"`
}

// --- Interface ---

type InviteService interface {
	Issue(ctx context.Context, p *authz.Principal, req IssueInviteRequest) (*InviteResponse, error)
	Validate(ctx context.Context, token string) (*InviteData, error)
	Redeem(ctx context.Context, req CompleteRegistrationRequest) (*AccountResponse, error)
	Revoke(ctx context.Context, p *authz.Principal, id string) error
	Resend(ctx context.Context, p *authz.Principal, id string) (*InviteResponse, error)
	ListPending(ctx context.Context, p *authz.Principal, paging pagination.Params) ([]InviteResponse, int64, error)
}

// InviteConfig holds the invite window and link base
type InviteConfig struct {
	TTL         time.Duration
	FrontendURL string
}

type inviteService struct {
	inviteRepo  repository.InviteRepository
	accountRepo repository.AccountRepository
	roleRepo    repository.RoleRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	notifier    Notifier
	cfg         InviteConfig
	metrics     *metrics.Metrics
	hashCost    int
	now         func() time.Time
}

func NewInviteService(
	inviteRepo repository.InviteRepository,
	accountRepo repository.AccountRepository,
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
	cfg InviteConfig,
	m *metrics.Metrics,
) InviteService {
	return &inviteService{
		inviteRepo:  inviteRepo,
		accountRepo: accountRepo,
		roleRepo:    roleRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		notifier:    notifier,
		cfg:         cfg,
		metrics:     m,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// --- Implementation ---

// Issue creates an invite unless a live one already targets the same email and role.
func (s *inviteService) Issue(ctx context.Context, p *authz.Principal, req IssueInviteRequest) (*InviteResponse, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	target, roleName, err := s.resolveTarget(ctx, email, req)
	if err != nil {
		return nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	invite := &model.Invite{
		Token:       token,
		Email:       email,
		AccountKind: target.AccountKind,
		Name:        strings.TrimSpace(req.Name),
		Company:     strings.TrimSpace(req.Company),
		Phone:       strings.TrimSpace(req.Phone),
		LegacyRole:  target.LegacyRole,
		RoleID:      target.RoleID,
		CreatedBy:   p.AccountID,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.accountRepo.GetByEmail(txCtx, email); err == nil {
			return apperr.Conflict("an account with email '%s' already exists", email)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		if _, err := s.inviteRepo.FindActive(txCtx, target, now); err == nil {
			return apperr.Conflict("an active invite for '%s' with this role already exists", email)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check active invites: %w", err)
		}

		if err := s.inviteRepo.Create(txCtx, invite); err != nil {
			return fmt.Errorf("failed to create invite: %w", err)
		}
		if err := writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionIssueInvite, invite.ID.String(), email,
			map[string]interface{}{"accountKind": invite.AccountKind, "roleName": roleName, "expiresAt": invite.ExpiresAt}); err != nil {
			return err
		}
		return s.notifyInvite(txCtx, invite, roleName, model.EventInviteIssued, "You're invited to the reseller portal")
	})
	if err != nil {
		return nil, err
	}

	resp := s.toInviteResponse(invite, roleName, now)
	resp.InviteLink = s.link(invite.Token)
	return &resp, nil
}

// resolveTarget decides the account kind and exactly one role source for an invite.
func (s *inviteService) resolveTarget(ctx context.Context, email string, req IssueInviteRequest) (repository.InviteTarget, string, error) {
	target := repository.InviteTarget{Email: email, AccountKind: strings.TrimSpace(req.AccountKind)}
	legacyRole := strings.TrimSpace(req.LegacyRole)

	if req.RoleID != nil && legacyRole != "" {
		return target, "", apperr.Validation("provide either roleId or legacyRole, not both")
	}
	if target.AccountKind == "" {
		target.AccountKind = model.AccountKindReseller
		if legacyRole != "" {
			target.AccountKind = model.AccountKindAdmin
		}
	}
	if target.AccountKind != model.AccountKindAdmin && target.AccountKind != model.AccountKindReseller {
		return target, "", apperr.Validation("accountKind must be admin or reseller")
	}

	switch {
	case req.RoleID != nil:
		role, err := s.roleRepo.FindByID(ctx, *req.RoleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return target, "", apperr.Validation("role does not exist")
			}
			return target, "", fmt.Errorf("failed to load role: %w", err)
		}
		if !role.IsActive {
			return target, "", apperr.Validation("role '%s' is inactive", role.Name)
		}
		target.RoleID = &role.ID
		return target, role.Name, nil
	case legacyRole != "":
		if target.AccountKind != model.AccountKindAdmin {
			return target, "", apperr.Validation("legacy roles only apply to admin accounts")
		}
		if !model.IsLegacyRole(legacyRole) {
			return target, "", apperr.Validation("unknown legacy role '%s'", legacyRole)
		}
		target.LegacyRole = legacyRole
		return target, legacyRole, nil
	case target.AccountKind == model.AccountKindAdmin:
		return target, "", apperr.Validation("admin invites need a legacyRole or a roleId")
	}
	return target, model.AccountKindReseller, nil
}

// Validate is a pure read: it never mutates the invite.
func (s *inviteService) Validate(ctx context.Context, token string) (*InviteData, error) {
	invite, err := s.inviteRepo.FindByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, notFound(err, "invite")
	}
	now := s.now()
	if err := tokenState(invite.Consumed, invite.ExpiresAt, now, "invite"); err != nil {
		return nil, err
	}

	return &InviteData{
		Email:         invite.Email,
		AccountKind:   invite.AccountKind,
		RoleName:      s.roleName(ctx, invite),
		Name:          invite.Name,
		Company:       invite.Company,
		Phone:         invite.Phone,
		ExpiresAt:     invite.ExpiresAt,
		TimeRemaining: remainingSeconds(invite.ExpiresAt, now),
	}, nil
}

// Redeem consumes the invite and creates its account in one transaction. The
// consumed flag is flipped by a conditional update before anything else, so of
// two concurrent redemptions exactly one proceeds.
func (s *inviteService) Redeem(ctx context.Context, req CompleteRegistrationRequest) (*AccountResponse, error) {
	invite, err := s.inviteRepo.FindByToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		s.metrics.InviteRedemptions.WithLabelValues("not_found").Inc()
		return nil, notFound(err, "invite")
	}
	now := s.now()
	if err := tokenState(invite.Consumed, invite.ExpiresAt, now, "invite"); err != nil {
		s.metrics.InviteRedemptions.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, err
	}

	username, err := normalizeUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(req.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	account := &model.Account{
		Kind:         invite.AccountKind,
		Username:     username,
		Email:        invite.Email,
		PasswordHash: hash,
		DisplayName:  firstNonEmpty(req.DisplayName, invite.Name, username),
		LegacyRole:   invite.LegacyRole,
		RoleID:       invite.RoleID,
		IsActive:     true,
		CreatedBy:    &invite.CreatedBy,
	}
	if account.IsReseller() {
		account.Company = firstNonEmpty(req.Company, invite.Company)
		account.Phone = firstNonEmpty(req.Phone, invite.Phone)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		consumed, err := s.inviteRepo.Consume(txCtx, invite.ID, now)
		if err != nil {
			return fmt.Errorf("failed to consume invite: %w", err)
		}
		if !consumed {
			current, err := s.inviteRepo.FindByID(txCtx, invite.ID)
			if err != nil {
				return notFound(err, "invite")
			}
			if err := tokenState(current.Consumed, current.ExpiresAt, now, "invite"); err != nil {
				return err
			}
			return apperr.Consumed("this invite has already been used")
		}

		if invite.RoleID != nil {
			role, err := s.roleRepo.FindByID(txCtx, *invite.RoleID)
			if err != nil || !role.IsActive {
				return apperr.State("the role of this invite is no longer available")
			}
		}
		if err := ensureAvailable(txCtx, s.accountRepo, username, invite.Email); err != nil {
			return err
		}
		if err := s.accountRepo.Create(txCtx, account); err != nil {
			if isDuplicate(err) {
				return apperr.Conflict("username or email already exists")
			}
			return fmt.Errorf("failed to create account: %w", err)
		}
		if err := s.inviteRepo.AttachAccount(txCtx, invite.ID, account.ID); err != nil {
			return fmt.Errorf("failed to link invite: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, &account.ID, model.ActionRedeemInvite, invite.ID.String(), invite.Email,
			map[string]interface{}{"accountId": account.ID, "username": username})
	})
	if err != nil {
		s.metrics.InviteRedemptions.WithLabelValues(apperr.KindOf(err).String()).Inc()
		return nil, err
	}
	s.metrics.InviteRedemptions.WithLabelValues("success").Inc()

	resp := toAccountResponse(account)
	return &resp, nil
}

// Revoke deletes an invite that has not been redeemed. Accounts created from
// earlier redemptions are never touched.
func (s *inviteService) Revoke(ctx context.Context, p *authz.Principal, id string) error {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return err
	}
	inviteID, err := parseID(id, "invite")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invite, err := s.inviteRepo.FindByID(txCtx, inviteID)
		if err != nil {
			return notFound(err, "invite")
		}
		deleted, err := s.inviteRepo.DeleteUnconsumed(txCtx, inviteID)
		if err != nil {
			return fmt.Errorf("failed to revoke invite: %w", err)
		}
		if !deleted {
			return apperr.State("invite has already been redeemed")
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionRevokeInvite, invite.ID.String(), invite.Email,
			map[string]interface{}{"revoked": true})
	})
}

// Resend pushes the expiry to now + TTL and sends the same token again.
func (s *inviteService) Resend(ctx context.Context, p *authz.Principal, id string) (*InviteResponse, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, err
	}
	inviteID, err := parseID(id, "invite")
	if err != nil {
		return nil, err
	}

	now := s.now()
	var invite *model.Invite
	var roleName string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		found, err := s.inviteRepo.FindByID(txCtx, inviteID)
		if err != nil {
			return notFound(err, "invite")
		}
		invite = found
		invite.ExpiresAt = now.Add(s.cfg.TTL)

		extended, err := s.inviteRepo.Extend(txCtx, inviteID, invite.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to extend invite: %w", err)
		}
		if !extended {
			return apperr.State("invite has already been redeemed")
		}

		roleName = s.roleName(txCtx, invite)
		if err := writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionResendInvite, invite.ID.String(), invite.Email,
			map[string]interface{}{"expiresAt": invite.ExpiresAt}); err != nil {
			return err
		}
		return s.notifyInvite(txCtx, invite, roleName, model.EventInviteResent, "Your invitation has been renewed")
	})
	if err != nil {
		return nil, err
	}

	resp := s.toInviteResponse(invite, roleName, now)
	resp.InviteLink = s.link(invite.Token)
	return &resp, nil
}

func (s *inviteService) ListPending(ctx context.Context, p *authz.Principal, paging pagination.Params) ([]InviteResponse, int64, error) {
	if err := authz.Require(p, authz.SystemUserManagement); err != nil {
		return nil, 0, err
	}
	now := s.now()
	invites, total, err := s.inviteRepo.ListPending(ctx, paging)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invites: %w", err)
	}

	res := make([]InviteResponse, 0, len(invites))
	for i := range invites {
		res = append(res, s.toInviteResponse(&invites[i], s.roleName(ctx, &invites[i]), now))
	}
	return res, total, nil
}

func (s *inviteService) notifyInvite(ctx context.Context, invite *model.Invite, roleName, event, subject string) error {
	return s.notifier.Enqueue(ctx, notification.Message{
		Event:          event,
		RecipientEmail: invite.Email,
		Subject:        subject,
		Payload: map[string]interface{}{
			"email":     invite.Email,
			"name":      invite.Name,
			"roleName":  roleName,
			"link":      s.link(invite.Token),
			"expiresAt": invite.ExpiresAt.UTC().Format(time.RFC3339),
		},
	})
}

func (s *inviteService) link(token string) string {
	return tokenLink(s.cfg.FrontendURL, "/register", token)
}

func (s *inviteService) roleName(ctx context.Context, invite *model.Invite) string {
	if invite.RoleID != nil {
		if role, err := s.roleRepo.FindByID(ctx, *invite.RoleID); err == nil {
			return role.Name
		}
		return ""
	}
	if invite.LegacyRole != "" {
		return invite.LegacyRole
	}
	return invite.AccountKind
}

func (s *inviteService) toInviteResponse(invite *model.Invite, roleName string, now time.Time) InviteResponse {
	resp := InviteResponse{
		ID:            invite.ID.String(),
		Email:         invite.Email,
		AccountKind:   invite.AccountKind,
		RoleName:      roleName,
		Name:          invite.Name,
		Company:       invite.Company,
		Phone:         invite.Phone,
		ExpiresAt:     invite.ExpiresAt,
		TimeRemaining: remainingSeconds(invite.ExpiresAt, now),
		Expired:       !now.Before(invite.ExpiresAt),
		CreatedAt:     invite.CreatedAt,
	}
	if invite.RoleID != nil {
		id := invite.RoleID.String()
		resp.RoleID = &id
	}
	return resp
}

func remainingSeconds(expiresAt, now time.Time) int64 {
	if remaining := expiresAt.Sub(now); remaining > 0 {
		return int64(remaining / time.Second)
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
