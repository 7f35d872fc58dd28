package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"signup-verify/internal/account/domain"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// constraintFields maps unique constraint/index names from the migrations to the field they guard.
var constraintFields = map[string]domain.Field{
	"accounts_username_key":     domain.FieldUsername,
	"accounts_email_key":        domain.FieldEmail,
	"accounts_phone_number_key": domain.FieldPhoneNumber,
}

// lookupColumns whitelists the columns GetByField may filter on.
var lookupColumns = map[domain.Field]string{
	domain.FieldID:          "id",
	domain.FieldUsername:    "username",
	domain.FieldEmail:       "email",
	domain.FieldPhoneNumber: "phone_number",
}

const selectColumns = `id, username, email, phone_number, password_hash, is_active, is_staff, is_superuser, verification_code, created_at, updated_at`

// DBTX is the subset of *sql.DB and *sql.Tx used by the repository.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresRepository struct {
	db DBTX
}

// NewPostgresRepository returns an account repository that uses the given db for persistence.
func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.GetByField(ctx, domain.FieldID, id)
}

// GetByField returns the account whose field equals value, or nil if not found.
func (r *PostgresRepository) GetByField(ctx context.Context, field domain.Field, value string) (*domain.Account, error) {
	column, ok := lookupColumns[field]
	if !ok {
		return nil, fmt.Errorf("repository: unsupported lookup field %q", field)
	}
	if field == domain.FieldPhoneNumber && value == "" {
		return nil, nil
	}
	query := `SELECT ` + selectColumns + ` FROM accounts WHERE ` + column + ` = $1`
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Create persists the account. The account must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	const query = `INSERT INTO accounts (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, nullString(a.PhoneNumber), a.PasswordHash,
		a.IsActive, a.IsStaff, a.IsSuperuser, nullString(a.VerificationCode),
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update overwrites the stored account with a. Returns domain.ErrNotFound when no row has a.ID.
func (r *PostgresRepository) Update(ctx context.Context, a *domain.Account) error {
	const query = `UPDATE accounts SET
		username = $2, email = $3, phone_number = $4, password_hash = $5,
		is_active = $6, is_staff = $7, is_superuser = $8, verification_code = $9, updated_at = $10
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, nullString(a.PhoneNumber), a.PasswordHash,
		a.IsActive, a.IsStaff, a.IsSuperuser, nullString(a.VerificationCode), a.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a     domain.Account
		phone sql.NullString
		code  sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &phone, &a.PasswordHash,
		&a.IsActive, &a.IsStaff, &a.IsSuperuser, &code, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PhoneNumber = phone.String
	a.VerificationCode = code.String
	return &a, nil
}

// mapWriteError turns unique violations into *domain.ConflictError so the storage
// constraint, not the pre-check, decides uniqueness under concurrent writes.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if field, ok := constraintFields[pgErr.ConstraintName]; ok {
			return &domain.ConflictError{Field: field}
		}
		return fmt.Errorf("db error: unique violation on %s: %w", pgErr.ConstraintName, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
