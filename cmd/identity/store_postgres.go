package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgate/cmd/security/token"
)

// PostgresStore implements the user store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - RotateRefreshToken is fully atomic and serialized via SELECT ... FOR UPDATE
//   on the user row, so concurrent refreshes for the same user cannot both win.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the user store (default "authgate").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "authgate",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return User{}, pgInvalid(op, "email is required")
	}
	emailNorm := NormalizeEmail(email)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	userID, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	users := pgIdent(s.schema, "users")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, email, email_norm, password_hash, refresh_token_hash, created_at
		   ) VALUES ($1, $2, $3, $4, NULL, $5)`,
		userID,
		email,
		emailNorm,
		pgTrimPtr(in.PasswordHash),
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:           userID,
		Email:        email,
		EmailNorm:    emailNorm,
		PasswordHash: pgTrimPtr(in.PasswordHash),
		CreatedAt:    now,
	}, nil
}

// FindByEmail loads a user by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	emailNorm := NormalizeEmail(email)
	if emailNorm == "" {
		return User{}, pgInvalid(op, "email is required")
	}

	users := pgIdent(s.schema, "users")

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, email_norm, password_hash, refresh_token_hash, created_at
		   FROM `+users+`
		  WHERE email_norm = $1`,
		emailNorm,
	).Scan(&u.ID, &u.Email, &u.EmailNorm, &u.PasswordHash, &u.RefreshTokenHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

// SetRefreshToken unconditionally overwrites the stored refresh-token digest.
func (s *PostgresStore) SetRefreshToken(ctx context.Context, email, tokenHash string, now time.Time) error {
	const op = "identity.SetRefreshToken"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(tokenHash) == "" {
		return pgInvalid(op, "missing token hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	users := pgIdent(s.schema, "users")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+users+`
		    SET refresh_token_hash = $1,
		        token_rotated_at = $2
		  WHERE email_norm = $3`,
		tokenHash, now, NormalizeEmail(email),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

// RotateRefreshToken performs the atomic compare-and-swap of the stored digest.
//
// Security model:
//   - Lock the user row (SELECT ... FOR UPDATE) to serialize concurrent
//     rotations: a lost update here would let two refreshes both succeed
//     with stale state.
//   - On digest mismatch, clear the stored value inside the same transaction
//     and return ErrTokenReused. A superseded token must never rotate again.
func (s *PostgresStore) RotateRefreshToken(ctx context.Context, email, presentedHash, newHash string, now time.Time) error {
	const op = "identity.RotateRefreshToken"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(presentedHash) == "" || strings.TrimSpace(newHash) == "" {
		return pgInvalid(op, "missing token hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	users := pgIdent(s.schema, "users")

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var stored *string
	err = tx.QueryRow(ctx,
		`SELECT refresh_token_hash
		   FROM `+users+`
		  WHERE email_norm = $1
		  FOR UPDATE`,
		NormalizeEmail(email),
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return err
	}

	if stored == nil || !token.SecureEqualHex(*stored, presentedHash) {
		// Reuse or theft: kill the session so the user must re-authenticate.
		if _, err := tx.Exec(ctx,
			`UPDATE `+users+`
			    SET refresh_token_hash = NULL,
			        token_rotated_at = $1
			  WHERE email_norm = $2`,
			now, NormalizeEmail(email),
		); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		return OpError{Op: op, Kind: ErrTokenReused}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+users+`
		    SET refresh_token_hash = $1,
		        token_rotated_at = $2
		  WHERE email_norm = $3`,
		newHash, now, NormalizeEmail(email),
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ClearRefreshToken removes the stored digest (idempotent).
func (s *PostgresStore) ClearRefreshToken(ctx context.Context, email string, now time.Time) error {
	const op = "identity.ClearRefreshToken"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	users := pgIdent(s.schema, "users")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+users+`
		    SET refresh_token_hash = NULL,
		        token_rotated_at = $1
		  WHERE email_norm = $2`,
		now, NormalizeEmail(email),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound}
	}
	return nil
}

// ---- helpers ----

// pgTrimPtr trims a string pointer, returning nil if result is empty.
func pgTrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_users_email_norm":
		return "email", true
	default:
		if strings.Contains(c, "email") {
			return "email", true
		}
		return "unique", true
	}
}
