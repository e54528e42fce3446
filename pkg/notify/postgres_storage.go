package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, letting
// every query method run either inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage implements Storage on PostgreSQL via pgx.
type PostgresStorage struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPostgresStorage creates a storage over an existing connection pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool, q: pool}
}

// InTx runs fn inside one database transaction. Nested calls reuse the
// already-open transaction.
func (s *PostgresStorage) InTx(ctx context.Context, fn func(Storage) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&PostgresStorage{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const eventColumns = `id, recipient_id, actor_id, profile_id, category, event_type, title, body,
	data, priority, dedupe_key, throttle_until, is_digest, is_read, read_at, created_at`

func (s *PostgresStorage) CreateEvent(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO notification_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		event.ID, event.RecipientID, event.ActorID, event.ProfileID,
		event.Category, event.Type, event.Title, event.Body,
		event.Data, event.Priority, event.DedupeKey, nullableTime(event.ThrottleUntil),
		event.IsDigest, event.IsRead, event.ReadAt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetEvent(ctx context.Context, id uuid.UUID) (*Event, error) {
	row := s.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM notification_events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select event: %w", err)
	}
	return event, nil
}

func (s *PostgresStorage) ListEvents(ctx context.Context, userID string, opts ListOptions) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM notification_events WHERE recipient_id = $1`
	if opts.OnlyUnread {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC, id`
	args := []any{userID}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

func (s *PostgresStorage) MarkRead(ctx context.Context, userID string, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.q.Exec(ctx, `
		UPDATE notification_events
		SET is_read = TRUE, read_at = now()
		WHERE recipient_id = $1 AND id = ANY($2) AND NOT is_read`,
		userID, ids,
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.q.QueryRow(ctx,
		`SELECT count(*) FROM notification_events WHERE recipient_id = $1 AND NOT is_read`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *PostgresStorage) LatestThrottleCandidate(ctx context.Context, recipientID, dedupeKey string, now time.Time) (*Event, error) {
	if dedupeKey == "" {
		return nil, nil
	}

	row := s.q.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM notification_events
		WHERE recipient_id = $1 AND dedupe_key = $2 AND throttle_until >= $3
		ORDER BY created_at DESC
		LIMIT 1`,
		recipientID, dedupeKey, now,
	)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select throttle candidate: %w", err)
	}
	return event, nil
}

const deliveryColumns = `id, event_id, channel, status, scheduled_for, sent_at, metadata, digest_id, created_at, updated_at`

func (s *PostgresStorage) CreateDelivery(ctx context.Context, delivery *Delivery) error {
	if delivery.ID == uuid.Nil {
		delivery.ID = uuid.New()
	}
	now := time.Now()
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = now
	}
	delivery.UpdatedAt = now

	_, err := s.q.Exec(ctx, `
		INSERT INTO notification_deliveries (`+deliveryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		delivery.ID, delivery.EventID, delivery.Channel, delivery.Status,
		delivery.ScheduledFor, delivery.SentAt, delivery.Metadata, delivery.DigestID,
		delivery.CreatedAt, delivery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateDelivery(ctx context.Context, delivery *Delivery) error {
	delivery.UpdatedAt = time.Now()
	_, err := s.q.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = $2, scheduled_for = $3, sent_at = $4, metadata = $5, updated_at = $6
		WHERE id = $1`,
		delivery.ID, delivery.Status, delivery.ScheduledFor, delivery.SentAt,
		delivery.Metadata, delivery.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListPendingDeliveries(ctx context.Context, now time.Time) ([]Delivery, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+deliveryColumns+` FROM notification_deliveries
		WHERE status = $1 OR (status = $2 AND scheduled_for <= $3)
		ORDER BY created_at, id`,
		StatusPending, StatusScheduled, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	var result []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(
			&d.ID, &d.EventID, &d.Channel, &d.Status, &d.ScheduledFor,
			&d.SentAt, &d.Metadata, &d.DigestID, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *PostgresStorage) ListEventDeliveries(ctx context.Context, eventID uuid.UUID) ([]Delivery, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+deliveryColumns+` FROM notification_deliveries
		WHERE event_id = $1
		ORDER BY created_at, id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list event deliveries: %w", err)
	}
	defer rows.Close()

	var result []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(
			&d.ID, &d.EventID, &d.Channel, &d.Status, &d.ScheduledFor,
			&d.SentAt, &d.Metadata, &d.DigestID, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

const preferenceColumns = `user_id, category, channel, enabled, frequency, language, timezone,
	quiet_start_minutes, quiet_end_minutes, daily_digest_hour, updated_at`

func (s *PostgresStorage) UpsertPreference(ctx context.Context, pref Preference) (Preference, error) {
	// The no-op DO UPDATE makes RETURNING yield the stored row for both the
	// insert and the conflict path.
	row := s.q.QueryRow(ctx, `
		INSERT INTO notification_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (user_id, category, channel) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+preferenceColumns,
		pref.UserID, pref.Category, pref.Channel, pref.Enabled, pref.Frequency,
		pref.Language, pref.Timezone, minutesOrNil(pref.QuietHoursStart),
		minutesOrNil(pref.QuietHoursEnd), pref.DailyDigestHour,
	)
	stored, err := scanPreference(row)
	if err != nil {
		return Preference{}, fmt.Errorf("upsert preference: %w", err)
	}
	return *stored, nil
}

func (s *PostgresStorage) FindPreference(ctx context.Context, userID string, category Category, channel Channel) (*Preference, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+preferenceColumns+` FROM notification_preferences
		WHERE user_id = $1 AND category = $2 AND channel = $3`,
		userID, category, channel,
	)
	pref, err := scanPreference(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select preference: %w", err)
	}
	return pref, nil
}

func (s *PostgresStorage) SavePreference(ctx context.Context, pref Preference) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO notification_preferences (`+preferenceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (user_id, category, channel) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			frequency = EXCLUDED.frequency,
			language = EXCLUDED.language,
			timezone = EXCLUDED.timezone,
			quiet_start_minutes = EXCLUDED.quiet_start_minutes,
			quiet_end_minutes = EXCLUDED.quiet_end_minutes,
			daily_digest_hour = EXCLUDED.daily_digest_hour,
			updated_at = now()`,
		pref.UserID, pref.Category, pref.Channel, pref.Enabled, pref.Frequency,
		pref.Language, pref.Timezone, minutesOrNil(pref.QuietHoursStart),
		minutesOrNil(pref.QuietHoursEnd), pref.DailyDigestHour,
	)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}

const digestColumns = `id, user_id, category, channel, period_start, period_end, title, summary,
	status, scheduled_for, sent_at, created_at`

func (s *PostgresStorage) UpsertDigest(ctx context.Context, digest Digest) (Digest, error) {
	if digest.ID == uuid.Nil {
		digest.ID = uuid.New()
	}
	if digest.CreatedAt.IsZero() {
		digest.CreatedAt = time.Now()
	}
	if digest.Summary == nil {
		digest.Summary = make(map[string]int)
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO notification_digests (`+digestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, channel, category, period_start, period_end)
			DO UPDATE SET status = $9
		RETURNING `+digestColumns,
		digest.ID, digest.UserID, digest.Category, digest.Channel,
		digest.PeriodStart, digest.PeriodEnd, digest.Title, digest.Summary,
		DigestScheduled, digest.ScheduledFor, digest.SentAt, digest.CreatedAt,
	)
	stored, err := scanDigest(row)
	if err != nil {
		return Digest{}, fmt.Errorf("upsert digest: %w", err)
	}
	return *stored, nil
}

func (s *PostgresStorage) AttachDigestEvent(ctx context.Context, digestID, eventID uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO notification_digest_events (digest_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		digestID, eventID,
	)
	if err != nil {
		return false, fmt.Errorf("attach digest event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = s.q.Exec(ctx, `
		UPDATE notification_digests
		SET summary = jsonb_set(
			coalesce(summary, '{}'::jsonb), '{events}',
			to_jsonb(coalesce((summary->>'events')::int, 0) + 1))
		WHERE id = $1`,
		digestID,
	)
	if err != nil {
		return false, fmt.Errorf("bump digest counter: %w", err)
	}
	return true, nil
}

func (s *PostgresStorage) UpdateDigest(ctx context.Context, digest *Digest) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE notification_digests
		SET status = $2, scheduled_for = $3, sent_at = $4, title = $5
		WHERE id = $1`,
		digest.ID, digest.Status, digest.ScheduledFor, digest.SentAt, digest.Title,
	)
	if err != nil {
		return fmt.Errorf("update digest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDigestNotFound
	}
	return nil
}

func (s *PostgresStorage) ListDueDigests(ctx context.Context, now time.Time) ([]Digest, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+digestColumns+` FROM notification_digests
		WHERE status IN ($1, $2) AND scheduled_for <= $3
		ORDER BY scheduled_for, id`,
		DigestPending, DigestScheduled, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list due digests: %w", err)
	}
	defer rows.Close()

	var result []Digest
	for rows.Next() {
		digest, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		result = append(result, *digest)
	}
	return result, rows.Err()
}

func (s *PostgresStorage) ListDigestEvents(ctx context.Context, digestID uuid.UUID) ([]Event, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+prefixColumns("e", eventColumns)+`
		FROM notification_digest_events de
		JOIN notification_events e ON e.id = de.event_id
		WHERE de.digest_id = $1
		ORDER BY de.position`,
		digestID,
	)
	if err != nil {
		return nil, fmt.Errorf("list digest events: %w", err)
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan digest event: %w", err)
		}
		result = append(result, *event)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*Event, error) {
	var (
		event         Event
		throttleUntil *time.Time
	)
	err := row.Scan(
		&event.ID, &event.RecipientID, &event.ActorID, &event.ProfileID,
		&event.Category, &event.Type, &event.Title, &event.Body,
		&event.Data, &event.Priority, &event.DedupeKey, &throttleUntil,
		&event.IsDigest, &event.IsRead, &event.ReadAt, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if throttleUntil != nil {
		event.ThrottleUntil = *throttleUntil
	}
	return &event, nil
}

func scanPreference(row scanner) (*Preference, error) {
	var (
		pref                 Preference
		quietStart, quietEnd *int16
	)
	err := row.Scan(
		&pref.UserID, &pref.Category, &pref.Channel, &pref.Enabled,
		&pref.Frequency, &pref.Language, &pref.Timezone,
		&quietStart, &quietEnd, &pref.DailyDigestHour, &pref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	pref.QuietHoursStart = timeOfDayFromMinutes(quietStart)
	pref.QuietHoursEnd = timeOfDayFromMinutes(quietEnd)
	return &pref, nil
}

func scanDigest(row scanner) (*Digest, error) {
	var digest Digest
	err := row.Scan(
		&digest.ID, &digest.UserID, &digest.Category, &digest.Channel,
		&digest.PeriodStart, &digest.PeriodEnd, &digest.Title, &digest.Summary,
		&digest.Status, &digest.ScheduledFor, &digest.SentAt, &digest.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &digest, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func minutesOrNil(t *TimeOfDay) *int16 {
	if t == nil {
		return nil
	}
	m := int16(t.Minutes())
	return &m
}

func timeOfDayFromMinutes(minutes *int16) *TimeOfDay {
	if minutes == nil {
		return nil
	}
	return &TimeOfDay{Hour: int(*minutes) / 60, Minute: int(*minutes) % 60}
}

func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
