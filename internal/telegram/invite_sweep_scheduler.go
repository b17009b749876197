package telegram

import (
	"context"
	"time"

	"normalizer_bot/internal/logger"
)

// sweepInterval 邀请扫描周期
const sweepInterval = time.Hour

// inviteSweepScheduler 邀请记录的定时扫描
// 每小时扫一轮等待中的邀请，确认是否入群或超期放弃
type inviteSweepScheduler struct {
	bot    *Bot
	cancel context.CancelFunc
	done   chan struct{}
}

func newInviteSweepScheduler(bot *Bot) *inviteSweepScheduler {
	return &inviteSweepScheduler{bot: bot}
}

func (s *inviteSweepScheduler) start() {
	if s == nil {
		return
	}
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	logger.L().Info("Invite sweep scheduler started")
}

func (s *inviteSweepScheduler) stop() {
	if s == nil {
		return
	}
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	logger.L().Info("Invite sweep scheduler stopped")
}

func (s *inviteSweepScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx)
		}
	}
}

func (s *inviteSweepScheduler) dispatch(parent context.Context) {
	if parent.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(parent, 10*time.Minute)
	defer cancel()

	checked, joined, skipped, err := s.bot.inviteManager.SweepPending(runCtx, time.Now())
	if err != nil {
		logger.L().Errorf("Invite sweep failed: %v", err)
		return
	}

	if checked > 0 {
		logger.L().Infof("Invite sweep completed: checked=%d, joined=%d, skipped=%d", checked, joined, skipped)
	}
}
