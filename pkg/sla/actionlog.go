package sla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Rule names one sweep rule in the action log.
type Rule string

const (
	RuleChatReminder      Rule = "chat_reminder"
	RuleDisputeEscalation Rule = "dispute_escalation"
	RuleAutoRelease       Rule = "auto_release"
)

// ActionLog records sweep actions so each (rule, target) pair fires at most
// once. Record reports whether the entry was newly created; false means the
// action already happened on an earlier pass. Seen checks without recording,
// for rules whose action must succeed before it is logged.
type ActionLog interface {
	Record(ctx context.Context, rule Rule, targetKind, targetID, qualifier string) (bool, error)
	Seen(ctx context.Context, rule Rule, targetKind, targetID, qualifier string) (bool, error)
}

// MemoryActionLog is an in-memory ActionLog for tests and development.
type MemoryActionLog struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryActionLog() *MemoryActionLog {
	return &MemoryActionLog{seen: make(map[string]struct{})}
}

func (l *MemoryActionLog) Record(ctx context.Context, rule Rule, targetKind, targetID, qualifier string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%s|%s", rule, targetKind, targetID, qualifier)
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = struct{}{}
	return true, nil
}

func (l *MemoryActionLog) Seen(ctx context.Context, rule Rule, targetKind, targetID, qualifier string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%s|%s", rule, targetKind, targetID, qualifier)
	_, ok := l.seen[key]
	return ok, nil
}

// PostgresActionLog stores actions in the sla_action_log table. The unique
// constraint on (rule, target_kind, target_id, qualifier) makes Record safe
// under concurrent sweepers.
type PostgresActionLog struct {
	pool *pgxpool.Pool
}

func NewPostgresActionLog(pool *pgxpool.Pool) *PostgresActionLog {
	return &PostgresActionLog{pool: pool}
}

func (l *PostgresActionLog) Record(ctx context.Context, rule Rule, targetKind, targetID, qualifier string) (bool, error) {
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO sla_action_log (id, rule, target_kind, target_id, qualifier, acted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (rule, target_kind, target_id, qualifier) DO NOTHING`,
		uuid.New(), rule, targetKind, targetID, qualifier, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("record sla action: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *PostgresActionLog) Seen(ctx context.Context, rule Rule, targetKind, targetID, qualifier string) (bool, error) {
	var seen bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sla_action_log
			WHERE rule = $1 AND target_kind = $2 AND target_id = $3 AND qualifier = $4
		)`,
		rule, targetKind, targetID, qualifier,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check sla action: %w", err)
	}
	return seen, nil
}
