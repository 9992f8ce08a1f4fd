package repository

import (
	"context"
	"errors"
	"time"

	"leadcrm_backend/internal/leads/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the Postgres store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Repository is the Postgres-backed Store.
type Repository struct {
	pool DB
}

var _ Store = (*Repository)(nil)

func New(pool DB) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, brand_id, first_name, last_name, email, phonecc, phone, phone_e164, country,
	aff_id, offer_id, aff_sub, aff_sub2, aff_sub3, aff_sub4, aff_sub5, orig_offer,
	utm_source, utm_medium, utm_campaign, user_ip, referer, password_hash,
	status, attempts, last_error, created_at, updated_at, sent_at, converted_at, next_attempt_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (domain.Lead, error) {
	var (
		l      domain.Lead
		status string
	)
	err := row.Scan(
		&l.ID, &l.BrandID, &l.FirstName, &l.LastName, &l.Email, &l.PhoneCC, &l.Phone, &l.PhoneE164, &l.Country,
		&l.AffID, &l.OfferID, &l.AffSub, &l.AffSub2, &l.AffSub3, &l.AffSub4, &l.AffSub5, &l.OrigOffer,
		&l.UTMSource, &l.UTMMedium, &l.UTMCampaign, &l.UserIP, &l.Referer, &l.PasswordHash,
		&status, &l.Attempts, &l.LastError, &l.CreatedAt, &l.UpdatedAt, &l.SentAt, &l.ConvertedAt, &l.NextAttemptAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	l.Status = domain.Status(status)
	return l, nil
}

func (r *Repository) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			brand_id, first_name, last_name, email, phonecc, phone, phone_e164, country,
			aff_id, offer_id, aff_sub, aff_sub2, aff_sub3, aff_sub4, aff_sub5, orig_offer,
			utm_source, utm_medium, utm_campaign, user_ip, referer, password_hash, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING id, created_at, updated_at
	`,
		lead.BrandID, lead.FirstName, lead.LastName, lead.Email, lead.PhoneCC, lead.Phone, lead.PhoneE164, lead.Country,
		lead.AffID, lead.OfferID, lead.AffSub, lead.AffSub2, lead.AffSub3, lead.AffSub4, lead.AffSub5, lead.OrigOffer,
		lead.UTMSource, lead.UTMMedium, lead.UTMCampaign, lead.UserIP, lead.Referer, lead.PasswordHash, string(lead.Status),
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return domain.Lead{}, err
	}

	return lead, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	params = params.Normalize()

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1::text = '' OR status = $1)
		  AND ($2::text = '' OR brand_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, string(params.Status), params.BrandID, params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	items := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SaveState(ctx context.Context, lead domain.Lead, expected domain.Status) (domain.Lead, error) {
	saved, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $2, attempts = $3, last_error = $4, sent_at = $5, converted_at = $6,
			next_attempt_at = $7, updated_at = now()
		WHERE id = $1 AND status = $8
		RETURNING `+leadColumns,
		lead.ID, string(lead.Status), lead.Attempts, lead.LastError, lead.SentAt, lead.ConvertedAt,
		lead.NextAttemptAt, string(expected),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.Get(ctx, lead.ID); getErr != nil {
			return domain.Lead{}, getErr
		}
		return domain.Lead{}, ErrStatusChanged
	}
	if err != nil {
		return domain.Lead{}, err
	}
	return saved, nil
}

func (r *Repository) ExistsRecent(ctx context.Context, brandID, email string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE brand_id = $1 AND lower(email) = lower($2) AND created_at >= $3
		)
	`, brandID, email, since).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *Repository) ListStaleQueued(ctx context.Context, before time.Time, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'queued' AND GREATEST(updated_at, COALESCE(next_attempt_at, updated_at)) < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

func (r *Repository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int, len(domain.AllStatuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = n
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return counts, nil
}

func (r *Repository) RecordAttempt(ctx context.Context, attempt domain.DeliveryAttempt) (domain.DeliveryAttempt, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO delivery_attempts (
			lead_id, brand_id, attempt_number, outcome, http_status, duration_ms, response_body, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`,
		attempt.LeadID, attempt.BrandID, attempt.AttemptNumber, attempt.Outcome,
		attempt.HTTPStatus, attempt.DurationMs, attempt.ResponseBody, attempt.Error,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return domain.DeliveryAttempt{}, err
	}
	return attempt, nil
}

func (r *Repository) ListAttempts(ctx context.Context, leadID int64) ([]domain.DeliveryAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, brand_id, attempt_number, outcome, http_status, duration_ms, response_body, error, created_at
		FROM delivery_attempts
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.DeliveryAttempt, 0)
	for rows.Next() {
		var a domain.DeliveryAttempt
		if err := rows.Scan(
			&a.ID, &a.LeadID, &a.BrandID, &a.AttemptNumber, &a.Outcome,
			&a.HTTPStatus, &a.DurationMs, &a.ResponseBody, &a.Error, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return items, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
