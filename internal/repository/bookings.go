package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CategoryStore reads one category table. Column and table names come from
// the category descriptor and are quoted; user input only reaches the query
// as bind parameters.
type CategoryStore struct {
	db       DBTX
	category booking.Category
	table    string
	selects  string
}

func NewCategoryStore(db DBTX, category booking.Category) *CategoryStore {
	cols := []string{
		"b.id", "b.price", "b.total_cost", "b.currency",
		vendorExpr(category), "b.referrer_id", "b.buyer_id",
	}
	for _, alias := range category.ReferenceAliases {
		cols = append(cols, "b."+quote(alias))
	}
	for _, alias := range category.EmailAliases {
		cols = append(cols, "b."+quote(alias))
	}
	cols = append(cols, "b.status", "b.canceled_at", "b.created_at")
	if category.HasRide {
		cols = append(cols, "b.ride_requested", "b.ride_cost")
	}
	return &CategoryStore{
		db:       db,
		category: category,
		table:    pgx.Identifier{category.Table}.Sanitize(),
		selects:  strings.Join(cols, ", "),
	}
}

// NewRegistry builds a registry over every category table.
func NewRegistry(db DBTX) (*booking.Registry, error) {
	stores := make([]booking.Store, 0, len(booking.PriorityOrder))
	for _, name := range booking.PriorityOrder {
		stores = append(stores, NewCategoryStore(db, booking.MustLookup(name)))
	}
	return booking.NewRegistry(stores...)
}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

func vendorExpr(c booking.Category) string {
	if c.VendorSQL == "" {
		return "b.vendor_id"
	}
	return "COALESCE(b.vendor_id, " + c.VendorSQL + ")"
}

func (s *CategoryStore) Category() booking.Category { return s.category }

// predicate renders the match as SQL. It reports false when the match can
// never succeed.
func (s *CategoryStore) predicate(m booking.Match) (string, []interface{}, bool) {
	if m.Reference == "" {
		return "", nil, false
	}
	args := []interface{}{m.Reference, "%" + escapeLike(m.Reference) + "%", m.Digits}
	refs := make([]string, 0, len(s.category.ReferenceAliases))
	for _, alias := range s.category.ReferenceAliases {
		col := "b." + quote(alias)
		refs = append(refs, fmt.Sprintf(
			`(%[1]s = $1 OR %[1]s ILIKE $2 OR ($3 <> '' AND regexp_replace(%[1]s, '\D', '', 'g') = $3))`, col))
	}
	where := "(" + strings.Join(refs, " OR ") + ")"

	if m.Email != "" {
		args = append(args, m.Email)
		emails := make([]string, 0, len(s.category.EmailAliases))
		for _, alias := range s.category.EmailAliases {
			emails = append(emails, fmt.Sprintf("LOWER(TRIM(b.%s)) = $4", quote(alias)))
		}
		where += " AND (" + strings.Join(emails, " OR ") + ")"
	}
	return where, args, true
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *CategoryStore) Count(ctx context.Context, m booking.Match) (int64, error) {
	where, args, ok := s.predicate(m)
	if !ok {
		return 0, nil
	}
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s b WHERE %s`, s.table, where)
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s bookings: %w", s.category.Name, err)
	}
	return n, nil
}

func (s *CategoryStore) FindOne(ctx context.Context, m booking.Match) (*models.Booking, error) {
	where, args, ok := s.predicate(m)
	if !ok {
		return nil, models.ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM %s b WHERE %s ORDER BY b.created_at, b.id LIMIT 1`, s.selects, s.table, where)
	return s.one(ctx, query, args...)
}

func (s *CategoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s b WHERE b.id = $1`, s.selects, s.table)
	return s.one(ctx, query, ToPgUUID(id))
}

func (s *CategoryStore) one(ctx context.Context, query string, args ...interface{}) (*models.Booking, error) {
	b, err := s.scan(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s booking: %w", s.category.Name, err)
	}
	return b, nil
}

func (s *CategoryStore) scan(row pgx.Row) (*models.Booking, error) {
	var (
		b                       models.Booking
		vendor, referrer, buyer pgtype.UUID
		price, totalCost        pgtype.Int8
		currency                pgtype.Text
		canceledAt              pgtype.Timestamptz
	)
	refs := make([]pgtype.Text, len(s.category.ReferenceAliases))
	emails := make([]pgtype.Text, len(s.category.EmailAliases))

	dest := []interface{}{&b.ID, &price, &totalCost, &currency, &vendor, &referrer, &buyer}
	for i := range refs {
		dest = append(dest, &refs[i])
	}
	for i := range emails {
		dest = append(dest, &emails[i])
	}
	dest = append(dest, &b.Status, &canceledAt, &b.CreatedAt)
	if s.category.HasRide {
		dest = append(dest, &b.RideRequested, &b.RideCost)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	b.Category = s.category.Name
	b.Price = price.Int64
	b.TotalCost = totalCost.Int64
	b.TotalCost = s.category.TotalCost(&b)
	b.Currency = currency.String
	if b.Currency == "" {
		b.Currency = domain.DefaultCurrency
	}
	b.VendorID = fromPgUUIDPtr(vendor)
	b.ReferrerID = fromPgUUIDPtr(referrer)
	b.BuyerID = fromPgUUIDPtr(buyer)
	b.CanceledAt = fromPgTimestamptz(canceledAt)
	b.References = make(map[string]string, len(refs))
	for i, alias := range s.category.ReferenceAliases {
		if refs[i].Valid {
			b.References[alias] = refs[i].String
		}
	}
	b.Emails = make(map[string]string, len(emails))
	for i, alias := range s.category.EmailAliases {
		if emails[i].Valid {
			b.Emails[alias] = emails[i].String
		}
	}
	return &b, nil
}

// MarkCancelled flips pending to cancelled with a conditional update, so of
// two concurrent callers exactly one sees a changed row.
func (s *CategoryStore) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, canceled_at = $3 WHERE id = $1 AND status = $4`, s.table)
	tag, err := s.db.Exec(ctx, query, ToPgUUID(id), domain.BookingStatusCancelled, at, domain.BookingStatusPending)
	if err != nil {
		return false, fmt.Errorf("cancel %s booking: %w", s.category.Name, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	query = fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, s.table)
	if err := s.db.QueryRow(ctx, query, ToPgUUID(id)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s booking: %w", s.category.Name, err)
	}
	if !exists {
		return false, models.ErrNotFound
	}
	return false, nil
}

// Insert writes a booking row. The ledger never creates bookings; this is
// for seeding and integration tests.
func (s *CategoryStore) Insert(ctx context.Context, b *models.Booking) error {
	cols := []string{"id", "price", "total_cost", "currency", "vendor_id", "referrer_id", "buyer_id", "status"}
	status := b.Status
	if status == "" {
		status = domain.BookingStatusPending
	}
	currency := b.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	args := []interface{}{ToPgUUID(b.ID), b.Price, b.TotalCost, currency,
		toPgUUIDPtr(b.VendorID), toPgUUIDPtr(b.ReferrerID), toPgUUIDPtr(b.BuyerID), status}
	if s.category.HasRide {
		cols = append(cols, "ride_requested", "ride_cost")
		args = append(args, b.RideRequested, b.RideCost)
	}
	for _, alias := range s.category.ReferenceAliases {
		if v, ok := b.References[alias]; ok {
			cols = append(cols, alias)
			args = append(args, v)
		}
	}
	for _, alias := range s.category.EmailAliases {
		if v, ok := b.Emails[alias]; ok {
			cols = append(cols, alias)
			args = append(args, v)
		}
	}
	if !b.CreatedAt.IsZero() {
		cols = append(cols, "created_at")
		args = append(args, b.CreatedAt)
	}

	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, s.table, strings.Join(quoted, ", "), strings.Join(params, ", "))
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s booking: %w", s.category.Name, err)
	}
	return nil
}
