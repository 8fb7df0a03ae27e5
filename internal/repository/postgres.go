package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kc-allan/at-insurance/internal/model"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) CreateFarmer(ctx context.Context, farmer model.Farmer) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO farmers (id, name, phone, county, id_document, join_date, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
  `, farmer.ID, farmer.Name, farmer.Phone, farmer.County, farmer.IDDocument, farmer.JoinDate, farmer.CreatedAt, farmer.UpdatedAt)
	return mapWriteErr(err)
}

const farmerColumns = `id, name, phone, county, id_document, join_date, created_at, updated_at`

func scanFarmer(row pgx.Row) (model.Farmer, error) {
	var farmer model.Farmer
	err := row.Scan(
		&farmer.ID,
		&farmer.Name,
		&farmer.Phone,
		&farmer.County,
		&farmer.IDDocument,
		&farmer.JoinDate,
		&farmer.CreatedAt,
		&farmer.UpdatedAt,
	)
	return farmer, mapReadErr(err)
}

func (s *PostgresStore) GetFarmerByID(ctx context.Context, id string) (model.Farmer, error) {
	if !isUUID(id) {
		return model.Farmer{}, ErrNotFound
	}
	return scanFarmer(s.pool.QueryRow(ctx, `SELECT `+farmerColumns+` FROM farmers WHERE id = $1`, id))
}

func (s *PostgresStore) GetFarmerByPhone(ctx context.Context, phone string) (model.Farmer, error) {
	return scanFarmer(s.pool.QueryRow(ctx, `SELECT `+farmerColumns+` FROM farmers WHERE phone = $1`, phone))
}

func (s *PostgresStore) ListFarmers(ctx context.Context) ([]model.Farmer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+farmerColumns+` FROM farmers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	farmers := []model.Farmer{}
	for rows.Next() {
		farmer, err := scanFarmer(rows)
		if err != nil {
			return nil, err
		}
		farmers = append(farmers, farmer)
	}
	return farmers, rows.Err()
}

func (s *PostgresStore) CreatePolicy(ctx context.Context, policy model.Policy) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO policies (id, farmer_id, type, product, coverage, premium, status, valid_from, valid_to, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
  `, policy.ID, policy.FarmerID, string(policy.Type), policy.Product, policy.Coverage, policy.Premium,
		string(policy.Status), policy.ValidFrom, policy.ValidTo, policy.CreatedAt)
	return mapWriteErr(err)
}

const policyColumns = `id, farmer_id, type, product, coverage, premium, status, valid_from, valid_to, created_at`

func scanPolicy(row pgx.Row) (model.Policy, error) {
	var policy model.Policy
	var policyType, status string
	err := row.Scan(
		&policy.ID,
		&policy.FarmerID,
		&policyType,
		&policy.Product,
		&policy.Coverage,
		&policy.Premium,
		&status,
		&policy.ValidFrom,
		&policy.ValidTo,
		&policy.CreatedAt,
	)
	policy.Type = model.PolicyType(policyType)
	policy.Status = model.PolicyStatus(status)
	return policy, mapReadErr(err)
}

func (s *PostgresStore) GetPolicy(ctx context.Context, id string) (model.Policy, error) {
	if !isUUID(id) {
		return model.Policy{}, ErrNotFound
	}
	return scanPolicy(s.pool.QueryRow(ctx, `SELECT `+policyColumns+` FROM policies WHERE id = $1`, id))
}

func (s *PostgresStore) ListPoliciesByFarmer(ctx context.Context, farmerID string) ([]model.Policy, error) {
	if !isUUID(farmerID) {
		return []model.Policy{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+policyColumns+` FROM policies WHERE farmer_id = $1 ORDER BY created_at DESC`, farmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	policies := []model.Policy{}
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, rows.Err()
}

// CreateClaim inserts the claim and any images it carries in one transaction.
func (s *PostgresStore) CreateClaim(ctx context.Context, claim model.Claim) error {
	batch := &pgx.Batch{}
	batch.Queue(`
    INSERT INTO claims (id, policy_id, farmer_id, reason, description, amount, status, date_submitted, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
  `, claim.ID, claim.PolicyID, claim.FarmerID, string(claim.Reason), claim.Description, claim.Amount,
		string(claim.Status), claim.DateSubmitted, claim.CreatedAt)
	queueClaimImages(batch, claim.Images)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapWriteErr(err)
	}
	return tx.Commit(ctx)
}

func queueClaimImages(batch *pgx.Batch, images []model.ClaimImage) {
	for _, image := range images {
		batch.Queue(`
      INSERT INTO claim_images (id, claim_id, image_path, created_at)
      VALUES ($1, $2, $3, $4)
    `, image.ID, image.ClaimID, image.ImagePath, image.CreatedAt)
	}
}

const claimColumns = `id, policy_id, farmer_id, reason, description, amount, status, date_submitted, created_at`

func scanClaim(row pgx.Row) (model.Claim, error) {
	var claim model.Claim
	var reason, status string
	err := row.Scan(
		&claim.ID,
		&claim.PolicyID,
		&claim.FarmerID,
		&reason,
		&claim.Description,
		&claim.Amount,
		&status,
		&claim.DateSubmitted,
		&claim.CreatedAt,
	)
	claim.Reason = model.ClaimReason(reason)
	claim.Status = model.ClaimStatus(status)
	return claim, mapReadErr(err)
}

func (s *PostgresStore) GetClaim(ctx context.Context, id string) (model.Claim, error) {
	if !isUUID(id) {
		return model.Claim{}, ErrNotFound
	}
	return scanClaim(s.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id))
}

func (s *PostgresStore) ListClaimsByFarmer(ctx context.Context, farmerID string) ([]model.Claim, error) {
	if !isUUID(farmerID) {
		return []model.Claim{}, nil
	}
	return s.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims WHERE farmer_id = $1 ORDER BY created_at DESC`, farmerID)
}

func (s *PostgresStore) ListClaimsByPolicy(ctx context.Context, policyID string) ([]model.Claim, error) {
	if !isUUID(policyID) {
		return []model.Claim{}, nil
	}
	return s.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims WHERE policy_id = $1 ORDER BY created_at DESC`, policyID)
}

func (s *PostgresStore) queryClaims(ctx context.Context, query string, arg string) ([]model.Claim, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claims := []model.Claim{}
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

func (s *PostgresStore) AddClaimImages(ctx context.Context, images []model.ClaimImage) error {
	if len(images) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	queueClaimImages(batch, images)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrNotFound
		}
		return mapWriteErr(err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListClaimImages(ctx context.Context, claimIDs []string) ([]model.ClaimImage, error) {
	if len(claimIDs) == 0 {
		return []model.ClaimImage{}, nil
	}
	rows, err := s.pool.Query(ctx, `
    SELECT id, claim_id, image_path, created_at
    FROM claim_images
    WHERE claim_id::text = ANY($1)
    ORDER BY seq
  `, claimIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	images := []model.ClaimImage{}
	for rows.Next() {
		var image model.ClaimImage
		if err := rows.Scan(&image.ID, &image.ClaimID, &image.ImagePath, &image.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func (s *PostgresStore) PutOTPSession(ctx context.Context, session model.OTPSession) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO otp_sessions (phone, code_hash, expires_at, created_at, attempts)
    VALUES ($1, $2, $3, $4, 0)
    ON CONFLICT (phone) DO UPDATE
    SET code_hash = EXCLUDED.code_hash,
        expires_at = EXCLUDED.expires_at,
        created_at = EXCLUDED.created_at,
        attempts = 0
  `, session.Phone, session.CodeHash, session.ExpiresAt, session.CreatedAt)
	return err
}

func (s *PostgresStore) GetOTPSession(ctx context.Context, phone string) (model.OTPSession, error) {
	var session model.OTPSession
	err := s.pool.QueryRow(ctx, `
    SELECT phone, code_hash, expires_at, created_at, attempts
    FROM otp_sessions
    WHERE phone = $1
  `, phone).Scan(&session.Phone, &session.CodeHash, &session.ExpiresAt, &session.CreatedAt, &session.Attempts)
	return session, mapReadErr(err)
}

func (s *PostgresStore) DeleteOTPSession(ctx context.Context, phone, codeHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM otp_sessions WHERE phone = $1 AND code_hash = $2`, phone, codeHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) IncrementOTPAttempts(ctx context.Context, phone string) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx, `
    UPDATE otp_sessions SET attempts = attempts + 1
    WHERE phone = $1
    RETURNING attempts
  `, phone).Scan(&attempts)
	return attempts, mapReadErr(err)
}

func (s *PostgresStore) DeleteExpiredOTPSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM otp_sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func mapReadErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// isUUID short-circuits lookups that Postgres would reject as malformed uuid input.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
