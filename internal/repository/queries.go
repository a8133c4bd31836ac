package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ledgerColumns = `id, account_type, account_id, booking_id, source_type, direction, amount, currency, status, reason, meta, created_at`

func scanLedgerEntry(row pgx.Row) (models.LedgerEntry, error) {
	var (
		e       models.LedgerEntry
		booking pgtype.UUID
		meta    []byte
	)
	if err := row.Scan(&e.ID, &e.AccountType, &e.AccountID, &booking, &e.SourceType, &e.Direction,
		&e.Amount, &e.Currency, &e.Status, &e.Reason, &meta, &e.CreatedAt); err != nil {
		return e, err
	}
	e.BookingID = fromPgUUIDPtr(booking)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return e, fmt.Errorf("decode entry meta: %w", err)
		}
	}
	return e, nil
}

// InsertLedgerEntry inserts e unless an entry with the same id or the same
// (account, booking, subtype) key exists. It reports whether a row was written.
func (q *Queries) InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) (bool, error) {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return false, fmt.Errorf("encode entry meta: %w", err)
	}
	query := `
		INSERT INTO ledger_entries (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12)
		ON CONFLICT DO NOTHING
		RETURNING id`
	var id uuid.UUID
	err = q.db.QueryRow(ctx, query,
		ToPgUUID(e.ID), e.AccountType, ToPgUUID(e.AccountID), toPgUUIDPtr(e.BookingID), e.SourceType,
		e.Direction, e.Amount, e.Currency, e.Status, e.Reason, string(meta), e.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert ledger entry: %w", err)
	}
	return true, nil
}

func (q *Queries) ListLedgerEntries(ctx context.Context, f models.EntryFilter) ([]models.LedgerEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.AccountID != nil {
		add("account_id = $%d", ToPgUUID(*f.AccountID))
	}
	if f.BookingID != nil {
		add("booking_id = $%d", ToPgUUID(*f.BookingID))
	}
	if f.AccountType != "" {
		add("account_type = $%d", f.AccountType)
	}
	if f.SourceType != "" {
		add("source_type = $%d", f.SourceType)
	}
	if f.Direction != "" {
		add("direction = $%d", f.Direction)
	}
	if f.Unreversed {
		where = append(where, "COALESCE((meta->>'reversed')::boolean, false) = false")
	}

	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) LedgerEntryExists(ctx context.Context, accountID, bookingID uuid.UUID, subtype string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE account_id = $1 AND booking_id = $2 AND meta ->> 'subtype' = $3
		)`
	var ok bool
	if err := q.db.QueryRow(ctx, query, ToPgUUID(accountID), ToPgUUID(bookingID), subtype).Scan(&ok); err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return ok, nil
}

// MarkLedgerEntriesReversed sets the display flag, the one change the
// immutability trigger permits.
func (q *Queries) MarkLedgerEntriesReversed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	query := `UPDATE ledger_entries SET meta = meta || '{"reversed": true}'::jsonb WHERE id = ANY($1::uuid[])`
	if _, err := q.db.Exec(ctx, query, strs); err != nil {
		return fmt.Errorf("mark entries reversed: %w", err)
	}
	return nil
}

// UpsertAccount creates an account or refreshes its type and email.
func (q *Queries) UpsertAccount(ctx context.Context, acc *models.Account) error {
	query := `
		INSERT INTO accounts (id, account_type, email, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET account_type = EXCLUDED.account_type, email = EXCLUDED.email
		RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, ToPgUUID(acc.ID), acc.AccountType, acc.Email).Scan(&acc.CreatedAt); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

const accountQuery = `
	SELECT id, account_type, email, total_earned, current_balance, monthly_earned, last_payout_date, created_at
	FROM accounts WHERE id = $1`

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.getAccount(ctx, accountQuery, id)
}

// GetAccountForUpdate loads the account and holds its row lock until the
// surrounding transaction ends.
func (q *Queries) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return q.getAccount(ctx, accountQuery+" FOR UPDATE", id)
}

func (q *Queries) getAccount(ctx context.Context, query string, id uuid.UUID) (*models.Account, error) {
	var (
		acc        models.Account
		lastPayout pgtype.Timestamptz
	)
	err := q.db.QueryRow(ctx, query, ToPgUUID(id)).Scan(&acc.ID, &acc.AccountType, &acc.Email,
		&acc.PayoutStatus.TotalEarned, &acc.PayoutStatus.CurrentBalance, &acc.PayoutStatus.MonthlyEarned,
		&lastPayout, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	acc.PayoutStatus.LastPayoutDate = fromPgTimestamptz(lastPayout)
	return &acc, nil
}

func (q *Queries) ListAccountIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `SELECT id FROM accounts ORDER BY id::text LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, FromPgUUID(id))
	}
	return ids, rows.Err()
}

func (q *Queries) InsertReferral(ctx context.Context, referrerID uuid.UUID, buyerEmail string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO referral_commissions (referrer_id, buyer_email) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, ToPgUUID(referrerID), buyerEmail)
	if err != nil {
		return false, fmt.Errorf("insert referral: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) DeleteReferral(ctx context.Context, referrerID uuid.UUID, buyerEmail string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM referral_commissions WHERE referrer_id = $1 AND buyer_email = $2`,
		ToPgUUID(referrerID), buyerEmail)
	if err != nil {
		return fmt.Errorf("delete referral: %w", err)
	}
	return nil
}

// UpdateAccountProjection reports false when the account does not exist.
func (q *Queries) UpdateAccountProjection(ctx context.Context, id uuid.UUID, s models.PayoutStatus) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE accounts
		SET total_earned = $2, current_balance = $3, monthly_earned = $4, last_payout_date = $5
		WHERE id = $1`,
		ToPgUUID(id), s.TotalEarned, s.CurrentBalance, s.MonthlyEarned, toPgTimestamptz(s.LastPayoutDate))
	if err != nil {
		return false, fmt.Errorf("update account projection: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Queries) DeleteEarnings(ctx context.Context, accountID uuid.UUID) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM earnings WHERE account_id = $1`, ToPgUUID(accountID)); err != nil {
		return fmt.Errorf("delete earnings: %w", err)
	}
	return nil
}

func (q *Queries) InsertEarning(ctx context.Context, e models.Earning) error {
	var booking *uuid.UUID
	if e.BookingID != uuid.Nil {
		booking = &e.BookingID
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO earnings (entry_id, account_id, booking_id, amount, direction, subtype, reversed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ToPgUUID(e.EntryID), ToPgUUID(e.AccountID), toPgUUIDPtr(booking), e.Amount, e.Direction, e.Subtype, e.Reversed, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert earning: %w", err)
	}
	return nil
}

func (q *Queries) ListEarnings(ctx context.Context, accountID uuid.UUID) ([]models.Earning, error) {
	rows, err := q.db.Query(ctx, `
		SELECT entry_id, account_id, booking_id, amount, direction, subtype, reversed, created_at
		FROM earnings WHERE account_id = $1 ORDER BY created_at, entry_id`, ToPgUUID(accountID))
	if err != nil {
		return nil, fmt.Errorf("list earnings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Earning, 0)
	for rows.Next() {
		var (
			e       models.Earning
			booking pgtype.UUID
		)
		if err := rows.Scan(&e.EntryID, &e.AccountID, &booking, &e.Amount, &e.Direction, &e.Subtype, &e.Reversed, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan earning: %w", err)
		}
		e.BookingID = FromPgUUID(booking)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) InsertAuditLog(ctx context.Context, rec models.AuditRecord) error {
	var metadata *string
	if len(rec.Metadata) > 0 {
		s := string(rec.Metadata)
		metadata = &s
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6::jsonb, $7)`,
		rec.EntityType, ToPgUUID(rec.EntityID), rec.Action, rec.PrevState, rec.NextState, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (q *Queries) ListAuditLogs(ctx context.Context, entityID uuid.UUID) ([]models.AuditRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT entity_type, entity_id, action, COALESCE(prev_state, ''), COALESCE(next_state, ''), metadata, created_at
		FROM audit_log WHERE entity_id = $1 ORDER BY id`, ToPgUUID(entityID))
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.AuditRecord, 0)
	for rows.Next() {
		var (
			rec  models.AuditRecord
			meta []byte
		)
		if err := rows.Scan(&rec.EntityType, &rec.EntityID, &rec.Action, &rec.PrevState, &rec.NextState, &meta, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		rec.Metadata = meta
		out = append(out, rec)
	}
	return out, rows.Err()
}

const idempotencyColumns = `idempotency_key, request_hash, method, path, in_progress, response_status, response_body, content_type`

func scanIdempotency(row pgx.Row) (*models.IdempotencyRecord, error) {
	var (
		rec    models.IdempotencyRecord
		status int32
	)
	if err := row.Scan(&rec.Key, &rec.RequestHash, &rec.Method, &rec.Path, &rec.InProgress, &status, &rec.Body, &rec.ContentType); err != nil {
		return nil, err
	}
	rec.Status = int(status)
	return &rec, nil
}

// GetIdempotencyKey returns models.ErrNotFound for an unknown key.
func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	rec, err := scanIdempotency(q.db.QueryRow(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE idempotency_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return rec, nil
}

// ReserveIdempotencyKey reports false when the key is already held.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (idempotency_key) DO NOTHING`, key, requestHash, method, path)
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FinalizeIdempotencyKey returns models.ErrNotFound when no reservation with
// a matching hash exists.
func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*models.IdempotencyRecord, error) {
	rec, err := scanIdempotency(q.db.QueryRow(ctx, `
		UPDATE idempotency_keys
		SET in_progress = FALSE, response_status = $3, response_body = $4, content_type = $5, updated_at = NOW()
		WHERE idempotency_key = $1 AND request_hash = $2
		RETURNING `+idempotencyColumns, key, requestHash, int32(status), body, contentType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	return rec, nil
}

// DeleteIdempotencyKey drops an unfinished reservation so the client may retry.
func (q *Queries) DeleteIdempotencyKey(ctx context.Context, key string) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE idempotency_key = $1 AND in_progress`, key); err != nil {
		return fmt.Errorf("delete idempotency key: %w", err)
	}
	return nil
}
