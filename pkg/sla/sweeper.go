package sla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/obsidianhq/notifykit/pkg/l10n"
	"github.com/obsidianhq/notifykit/pkg/logger"
	"github.com/obsidianhq/notifykit/pkg/notify"
)

// Result counts what one sweep pass did.
type Result struct {
	Reminders    int
	Escalations  int
	AutoReleases int

	DigestsSent      int
	DeliveriesSent   int
	DeliveriesFailed int
}

// Sweeper applies the SLA rules and drains the notification engine. Sources
// left nil disable their rule, so a deployment can run digest flushing alone.
type Sweeper struct {
	hub       *notify.Hub
	actions   ActionLog
	threads   ThreadSource
	disputes  DisputeSource
	contracts ContractSource
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithThreadSource enables the chat reminder rule.
func WithThreadSource(src ThreadSource) Option {
	return func(s *Sweeper) { s.threads = src }
}

// WithDisputeSource enables the dispute escalation rule.
func WithDisputeSource(src DisputeSource) Option {
	return func(s *Sweeper) { s.disputes = src }
}

// WithContractSource enables the auto-release rule.
func WithContractSource(src ContractSource) Option {
	return func(s *Sweeper) { s.contracts = src }
}

// WithLogger sets the sweep logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = log }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

var (
	ErrHubNil       = errors.New("sla: hub is nil")
	ErrActionLogNil = errors.New("sla: action log is nil")
)

// New creates a sweeper over the given hub and action log. Zero config
// fields fall back to the platform defaults.
func New(hub *notify.Hub, actions ActionLog, cfg Config, opts ...Option) (*Sweeper, error) {
	if hub == nil {
		return nil, ErrHubNil
	}
	if actions == nil {
		return nil, ErrActionLogNil
	}

	if cfg.ChatReminderAfter <= 0 {
		cfg.ChatReminderAfter = 4 * time.Hour
	}
	if cfg.DisputeEscalationAfter <= 0 {
		cfg.DisputeEscalationAfter = 12 * time.Hour
	}
	if cfg.AutoReleaseAfter <= 0 {
		cfg.AutoReleaseAfter = 120 * time.Hour
	}
	if cfg.WorkingHoursStart == 0 && cfg.WorkingHoursEnd == 0 {
		cfg.WorkingHoursStart, cfg.WorkingHoursEnd = 9, 18
	}

	s := &Sweeper{
		hub:     hub,
		actions: actions,
		config:  cfg,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes one sweep pass: the three SLA rules, then a digest flush and
// a dispatch pass so everything the rules emitted leaves the building.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	now := s.now()
	var result Result

	if err := s.sweepChatReminders(ctx, now, &result); err != nil {
		return result, err
	}
	if err := s.sweepDisputes(ctx, now, &result); err != nil {
		return result, err
	}
	if err := s.sweepAutoReleases(ctx, now, &result); err != nil {
		return result, err
	}

	digests, err := s.hub.FlushDigests(ctx)
	if err != nil {
		return result, fmt.Errorf("flush digests: %w", err)
	}
	result.DigestsSent = digests

	dispatched, err := s.hub.DispatchPending(ctx)
	if err != nil {
		return result, fmt.Errorf("dispatch pending: %w", err)
	}
	result.DeliveriesSent = dispatched.Sent
	result.DeliveriesFailed = dispatched.Failed

	s.logger.LogAttrs(ctx, slog.LevelInfo, "sweep finished",
		slog.Int("reminders", result.Reminders),
		slog.Int("escalations", result.Escalations),
		slog.Int("auto_releases", result.AutoReleases),
		slog.Int("digests_sent", result.DigestsSent),
		slog.Int("deliveries_sent", result.DeliveriesSent),
		slog.Int("deliveries_failed", result.DeliveriesFailed),
	)
	return result, nil
}

// RunEvery runs sweep passes on the configured interval until the context is
// cancelled. Pass errors are logged, not fatal.
func (s *Sweeper) RunEvery(ctx context.Context) {
	interval := s.config.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Run(ctx); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "sweep failed", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweepChatReminders(ctx context.Context, now time.Time, result *Result) error {
	if s.threads == nil || !s.withinWorkingHours(now) {
		return nil
	}

	cutoff := now.Add(-s.config.ChatReminderAfter)
	messages, err := s.threads.ListUnanswered(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list unanswered messages: %w", err)
	}

	for _, msg := range messages {
		seen, err := s.actions.Seen(ctx, RuleChatReminder, "thread", msg.ThreadID, msg.MessageID)
		if err != nil {
			return err
		}
		if seen {
			continue
		}

		_, _, err = s.hub.Emit(ctx, notify.EmitParams{
			RecipientID: msg.RecipientID,
			Category:    notify.CategoryChat,
			Type:        notify.EventChatNewMessage,
			Title:       "Напоминание: непрочитанное сообщение",
			Body:        fmt.Sprintf("Сообщение от %s ждёт ответа", msg.SenderName),
			Data: map[string]any{
				"thread_id":   msg.ThreadID,
				"sender_name": msg.SenderName,
			},
			DedupeKey: fmt.Sprintf("%s:chat.reminder:thread:%s", msg.RecipientID, msg.ThreadID),
		})
		if err != nil {
			// Not recorded: the reminder stays eligible for the next pass.
			s.logger.LogAttrs(ctx, slog.LevelError, "chat reminder emit failed",
				logger.UserID(msg.RecipientID), logger.Error(err))
			continue
		}
		if _, err := s.actions.Record(ctx, RuleChatReminder, "thread", msg.ThreadID, msg.MessageID); err != nil {
			return err
		}
		result.Reminders++
	}
	return nil
}

func (s *Sweeper) sweepDisputes(ctx context.Context, now time.Time, result *Result) error {
	if s.disputes == nil {
		return nil
	}

	cutoff := now.Add(-s.config.DisputeEscalationAfter)
	stale, err := s.disputes.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale disputes: %w", err)
	}

	for _, dispute := range stale {
		inserted, err := s.actions.Record(ctx, RuleDisputeEscalation, "case", dispute.CaseID, "")
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}

		if err := s.disputes.EscalatePriority(ctx, dispute.CaseID); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "dispute escalation failed",
				logger.Rule(string(RuleDisputeEscalation)), logger.Error(err))
			continue
		}

		_, _, err = s.hub.Emit(ctx, notify.EmitParams{
			RecipientID: dispute.ClientID,
			Category:    notify.CategoryContract,
			Type:        notify.EventContractDisputeOpened,
			Title:       "Спор требует внимания",
			Body:        "Спор открыт более 12 часов и повышен в приоритете",
			Priority:    notify.PriorityHigh,
			Data: map[string]any{
				"case_id":     dispute.CaseID,
				"contract_id": dispute.ContractID,
			},
			DedupeKey: fmt.Sprintf("%s:dispute.escalated:case:%s", dispute.ClientID, dispute.CaseID),
		})
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "dispute escalation emit failed",
				logger.UserID(dispute.ClientID), logger.Error(err))
			continue
		}
		result.Escalations++
	}
	return nil
}

func (s *Sweeper) sweepAutoReleases(ctx context.Context, now time.Time, result *Result) error {
	if s.contracts == nil {
		return nil
	}

	cutoff := now.Add(-s.config.AutoReleaseAfter)
	releasable, err := s.contracts.ListReleasable(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list releasable contracts: %w", err)
	}

	for _, contract := range releasable {
		// Complete before recording: a contract that is temporarily not
		// completable must be retried on the next pass.
		if err := s.contracts.Complete(ctx, contract.ContractID); err != nil {
			if errors.Is(err, ErrNotCompletable) {
				continue
			}
			s.logger.LogAttrs(ctx, slog.LevelError, "auto-release failed",
				logger.Rule(string(RuleAutoRelease)), logger.Error(err))
			continue
		}

		inserted, err := s.actions.Record(ctx, RuleAutoRelease, "contract", contract.ContractID, "")
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}

		data := map[string]any{
			"contract_id": contract.ContractID,
			"amount":      contract.Amount,
			"currency":    contract.Currency,
		}
		_, _, err = s.hub.Emit(ctx, notify.EmitParams{
			RecipientID: contract.FreelancerID,
			Category:    notify.CategoryPayments,
			Type:        notify.EventPaymentsRelease,
			Title:       "Оплата переведена",
			Body:        "Срок проверки истёк, средства по контракту переведены вам",
			Data:        data,
		})
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "auto-release emit failed",
				logger.UserID(contract.FreelancerID), logger.Error(err))
		}

		_, _, err = s.hub.Emit(ctx, notify.EmitParams{
			RecipientID: contract.ClientID,
			Category:    notify.CategoryContract,
			Type:        notify.EventContractCompleted,
			Title:       "Контракт завершён автоматически",
			Body:        "Срок проверки истёк, контракт закрыт и оплата переведена исполнителю",
			Data:        data,
		})
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "auto-release emit failed",
				logger.UserID(contract.ClientID), logger.Error(err))
		}
		result.AutoReleases++
	}
	return nil
}

// withinWorkingHours reports whether now falls inside the platform's working
// window in the reference timezone.
func (s *Sweeper) withinWorkingHours(now time.Time) bool {
	hour := now.In(l10n.ReferenceTZ).Hour()
	return hour >= s.config.WorkingHoursStart && hour < s.config.WorkingHoursEnd
}
