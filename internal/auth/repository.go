package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const maxTxAttempts = 3

// Repository is the PostgreSQL Store and Denylist.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// WithinTx runs fn in a serializable transaction and retries it on serialization
// failures and deadlocks.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := r.runTx(ctx, fn)
		if err == nil || attempt >= maxTxAttempts || !isRetryable(err) {
			return err
		}
	}
}

func (r *Repository) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return storeError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeError("commit transaction", err)
	}

	return nil
}

func (r *Repository) EnsureRoles(ctx context.Context, roles []Role) error {
	for _, role := range roles {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO roles (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, role.Name, role.Description)
		if err != nil {
			return storeError("insert role "+role.Name, err)
		}
	}

	return nil
}

func (r *Repository) UpsertPrincipal(ctx context.Context, p NewPrincipal) (Principal, error) {
	var username sql.NullString
	if p.Username != nil {
		username = sql.NullString{String: *p.Username, Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, username, password_hash, role_id, is_active, is_verified, updated_at)
		SELECT $1, $2, $3, r.id, TRUE, TRUE, NOW()
		FROM roles r
		WHERE r.name = $4
		ON CONFLICT (email) DO UPDATE SET
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			role_id = EXCLUDED.role_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, p.Email, username, p.PasswordHash, p.RoleName).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Principal{}, fmt.Errorf("role %q: %w", p.RoleName, ErrNotFound)
		}
		return Principal{}, storeError("upsert principal", err)
	}

	return queryPrincipal(ctx, r.db, principalByIDQuery, id)
}

func (r *Repository) Revoke(ctx context.Context, key string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blacklisted_tokens (token_hash, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO NOTHING
	`, key, expiresAt.UTC())
	if err != nil {
		return storeError("insert blacklisted token", err)
	}

	return nil
}

func (r *Repository) IsRevoked(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM blacklisted_tokens
			WHERE token_hash = $1 AND expires_at > NOW()
		)
	`, key).Scan(&exists)
	if err != nil {
		return false, storeError("query blacklisted token", err)
	}

	return exists, nil
}

// PurgeExpiredDenylist deletes up to batchSize denylist rows whose token has expired.
func (r *Repository) PurgeExpiredDenylist(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM blacklisted_tokens
			WHERE expires_at < NOW()
			ORDER BY expires_at ASC
			LIMIT $1
		)
		DELETE FROM blacklisted_tokens t
		USING stale
		WHERE t.id = stale.id
	`, batchSize)
	if err != nil {
		return 0, storeError("delete expired blacklisted tokens", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("expired blacklisted tokens rows affected", err)
	}

	return affected, nil
}

type sqlTx struct {
	tx *sql.Tx
}

const principalColumns = `
	SELECT u.id, u.email, u.username, u.password_hash, u.role_id, r.name,
		u.is_active, u.is_verified, u.failed_attempts, u.is_locked, u.lock_until,
		u.last_login_at, u.created_at, u.updated_at
	FROM users u
	JOIN roles r ON r.id = u.role_id
`

const principalByIDQuery = principalColumns + `WHERE u.id = $1`

func (t *sqlTx) PrincipalByIdentifier(ctx context.Context, identifier string) (Principal, error) {
	return queryPrincipal(ctx, t.tx, principalColumns+`
		WHERE u.email = $1 OR u.username = $1
		ORDER BY (u.email = $1) DESC
		LIMIT 1
		FOR UPDATE OF u
	`, identifier)
}

func (t *sqlTx) PrincipalByID(ctx context.Context, id int64) (Principal, error) {
	return queryPrincipal(ctx, t.tx, principalByIDQuery, id)
}

func (t *sqlTx) SaveLoginState(ctx context.Context, principalID int64, state LoginState) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts = $2, is_locked = $3, lock_until = $4, last_login_at = $5, updated_at = NOW()
		WHERE id = $1
	`, principalID, state.FailedAttempts, state.IsLocked, nullTime(state.LockUntil), nullTime(state.LastLoginAt))
	if err != nil {
		return storeError("update login state", err)
	}

	return nil
}

func (t *sqlTx) RefreshTokenByDigest(ctx context.Context, digest string) (RefreshTokenRecord, error) {
	var record RefreshTokenRecord
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`, digest).Scan(&record.ID, &record.UserID, &record.TokenHash, &record.ExpiresAt, &record.Revoked, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RefreshTokenRecord{}, ErrNotFound
		}
		return RefreshTokenRecord{}, storeError("read refresh token", err)
	}
	record.ExpiresAt = record.ExpiresAt.UTC()

	return record, nil
}

func (t *sqlTx) RevokeRefreshToken(ctx context.Context, id int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return storeError("revoke refresh token", err)
	}

	return nil
}

func (t *sqlTx) InsertRefreshToken(ctx context.Context, record RefreshTokenRecord) (RefreshTokenRecord, error) {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, created_at
	`, record.UserID, record.TokenHash, record.ExpiresAt.UTC()).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return RefreshTokenRecord{}, storeError("insert refresh token", err)
	}
	record.Revoked = false

	return record, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryPrincipal(ctx context.Context, q queryer, query string, args ...any) (Principal, error) {
	var (
		p           Principal
		username    sql.NullString
		lockUntil   sql.NullTime
		lastLoginAt sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.Email, &username, &p.PasswordHash, &p.RoleID, &p.RoleName,
		&p.IsActive, &p.IsVerified, &p.LoginState.FailedAttempts, &p.LoginState.IsLocked, &lockUntil,
		&lastLoginAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, storeError("query principal", err)
	}

	if username.Valid {
		p.Username = &username.String
	}
	if lockUntil.Valid {
		value := lockUntil.Time.UTC()
		p.LoginState.LockUntil = &value
	}
	if lastLoginAt.Valid {
		value := lastLoginAt.Time.UTC()
		p.LoginState.LastLoginAt = &value
	}

	return p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
