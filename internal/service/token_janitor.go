package service

import (
	"context"
	"fmt"
	"time"

	"resellerportal/internal/repository"

	"go.uber.org/zap"
)

// TokenJanitor lazily removes invites and reset tokens that can no longer be
// redeemed. Expiry is always checked at redemption time, so sweeping is optional.
type TokenJanitor struct {
	inviteRepo repository.InviteRepository
	resetRepo  repository.ResetTokenRepository
	log        *zap.Logger
	now        func() time.Time
}

func NewTokenJanitor(inviteRepo repository.InviteRepository, resetRepo repository.ResetTokenRepository, log *zap.Logger) *TokenJanitor {
	return &TokenJanitor{
		inviteRepo: inviteRepo,
		resetRepo:  resetRepo,
		log:        log,
		now:        time.Now,
	}
}

// Sweep deletes expired, unconsumed invites and every expired reset token.
func (j *TokenJanitor) Sweep(ctx context.Context) error {
	now := j.now()

	invites, err := j.inviteRepo.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to delete expired invites: %w", err)
	}
	resets, err := j.resetRepo.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}

	if invites > 0 || resets > 0 {
		j.log.Info("expired tokens removed",
			zap.Int64("invites", invites),
			zap.Int64("resetTokens", resets),
		)
	}
	return nil
}
