// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/companion/internal/platform/apperr"
	"github.com/taibuivan/companion/internal/platform/database/schema"
	"github.com/taibuivan/companion/internal/platform/dberr"
)

// storeError classifies a storage failure. Unreachable databases become
// DEPENDENCY_UNAVAILABLE; everything else is wrapped with its action name.
func storeError(action string, err error) error {
	if dberr.IsUnavailable(err) {
		return apperr.DependencyUnavailable(dependencyDirectory, fmt.Errorf("%s: %w", action, err))
	}
	return fmt.Errorf("%s: %w", action, err)
}

// # User Directory

// PostgresUserDirectory implements [UserDirectory] using pgx.
type PostgresUserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory creates a new PostgreSQL implementation of [UserDirectory].
func NewUserDirectory(pool *pgxpool.Pool) *PostgresUserDirectory {
	return &PostgresUserDirectory{pool: pool}
}

var accountColumns = strings.Join(schema.UserAccount.Columns(), ", ")

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

/*
FindByEmail retrieves an account by its normalised email address.

Description: Soft-deleted rows are returned too, so that the caller can tell a
deleted account from an unknown email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: ErrUserNotFound or database errors
*/
func (directory *PostgresUserDirectory) FindByEmail(context context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		accountColumns, schema.UserAccount.Table, schema.UserAccount.Email,
	)

	user, err := scanUser(directory.pool.QueryRow(context, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storeError("postgres_user_directory_find_by_email_failed", err)
	}

	return user, nil
}

/*
FindByUserID retrieves an account by its public identifier.

Parameters:
  - context: context.Context
  - userID: string (UUID)

Returns:
  - *User: Hydrated account entity
  - error: ErrUserNotFound or database errors
*/
func (directory *PostgresUserDirectory) FindByUserID(context context.Context, userID string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		accountColumns, schema.UserAccount.Table, schema.UserAccount.UserID,
	)

	user, err := scanUser(directory.pool.QueryRow(context, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storeError("postgres_user_directory_find_by_user_id_failed", err)
	}

	return user, nil
}

/*
Insert persists a new account and its registration activity atomically.

Description: Both rows are written in one transaction. A unique violation on
the email column is reported as ErrDuplicateEmail, which is how concurrent
registrations for the same address are resolved.

Parameters:
  - context: context.Context
  - user: *User
  - registration: Activity

Returns:
  - error: ErrDuplicateEmail or database errors
*/
func (directory *PostgresUserDirectory) Insert(context context.Context, user *User, registration Activity) error {
	insertAccount := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s, %s, %s`,
		schema.UserAccount.Table,
		schema.UserAccount.UserID, schema.UserAccount.Email, schema.UserAccount.PasswordHash,
		schema.UserAccount.IsVerified, schema.UserAccount.Status,
		schema.UserAccount.ID, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	)

	err := pgx.BeginFunc(context, directory.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(context, insertAccount,
			user.UserID,
			user.Email,
			user.PasswordHash,
			user.IsVerified,
			string(user.Status),
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return err
		}

		registration.UserID = user.UserID
		return insertActivity(context, tx, registration)
	})

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return storeError("postgres_user_directory_insert_failed", err)
	}

	return nil
}

/*
UpdateStatus changes the lifecycle status of an account.

Description: Moving to deleted stamps deletedat; any other status clears it.
*/
func (directory *PostgresUserDirectory) UpdateStatus(context context.Context, userID string, status Status) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2,
		    %s = CASE WHEN $2 = '%s' THEN COALESCE(%s, now()) ELSE NULL END,
		    %s = now()
		WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.Status,
		schema.UserAccount.DeletedAt, StatusDeleted, schema.UserAccount.DeletedAt,
		schema.UserAccount.UpdatedAt,
		schema.UserAccount.UserID,
	)

	return directory.execOne(context, "postgres_user_directory_update_status_failed", query, userID, string(status))
}

// UpdatePasswordHash replaces the stored hash.
func (directory *PostgresUserDirectory) UpdatePasswordHash(context context.Context, userID, passwordHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.PasswordHash, schema.UserAccount.UpdatedAt,
		schema.UserAccount.UserID,
	)

	return directory.execOne(context, "postgres_user_directory_update_password_failed", query, userID, passwordHash)
}

// MarkVerified flips the verified flag.
func (directory *PostgresUserDirectory) MarkVerified(context context.Context, userID string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = TRUE, %s = now() WHERE %s = $1`,
		schema.UserAccount.Table,
		schema.UserAccount.IsVerified, schema.UserAccount.UpdatedAt,
		schema.UserAccount.UserID,
	)

	return directory.execOne(context, "postgres_user_directory_mark_verified_failed", query, userID)
}

// execOne runs an UPDATE that must touch exactly one account.
func (directory *PostgresUserDirectory) execOne(context context.Context, action, query string, args ...any) error {
	tag, err := directory.pool.Exec(context, query, args...)
	if err != nil {
		return storeError(action, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// # Session Audit

// PostgresSessionAudit implements [SessionAudit] on users.session_audit.
type PostgresSessionAudit struct {
	pool *pgxpool.Pool
}

// NewSessionAudit creates a new PostgreSQL implementation of [SessionAudit].
func NewSessionAudit(pool *pgxpool.Pool) *PostgresSessionAudit {
	return &PostgresSessionAudit{pool: pool}
}

// RecordLogin inserts one audit row for userID.
func (audit *PostgresSessionAudit) RecordLogin(context context.Context, userID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1)`,
		schema.UserSessionAudit.Table, schema.UserSessionAudit.UserID,
	)

	if _, err := audit.pool.Exec(context, query, userID); err != nil {
		return storeError("postgres_session_audit_record_failed", err)
	}
	return nil
}

// ClearLogin removes every audit row for userID.
func (audit *PostgresSessionAudit) ClearLogin(context context.Context, userID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`,
		schema.UserSessionAudit.Table, schema.UserSessionAudit.UserID,
	)

	if _, err := audit.pool.Exec(context, query, userID); err != nil {
		return storeError("postgres_session_audit_clear_failed", err)
	}
	return nil
}

// CountActive returns the number of audit rows for userID.
func (audit *PostgresSessionAudit) CountActive(context context.Context, userID string) (int, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1`,
		schema.UserSessionAudit.Table, schema.UserSessionAudit.UserID,
	)

	var count int
	if err := audit.pool.QueryRow(context, query, userID).Scan(&count); err != nil {
		return 0, storeError("postgres_session_audit_count_failed", err)
	}
	return count, nil
}

// # Activity Log

// PostgresActivityLog implements [ActivityLog] on users.activity_log.
type PostgresActivityLog struct {
	pool *pgxpool.Pool
}

// NewActivityLog creates a new PostgreSQL implementation of [ActivityLog].
func NewActivityLog(pool *pgxpool.Pool) *PostgresActivityLog {
	return &PostgresActivityLog{pool: pool}
}

// Record appends one activity line.
func (activityLog *PostgresActivityLog) Record(context context.Context, activity Activity) error {
	if err := insertActivity(context, activityLog.pool, activity); err != nil {
		return storeError("postgres_activity_log_record_failed", err)
	}
	return nil
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(context context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertActivity(context context.Context, db execer, activity Activity) error {
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5)`,
		schema.UserActivityLog.Table, strings.Join(schema.UserActivityLog.Columns(), ", "),
	)

	_, err := db.Exec(context, query,
		activity.UserID,
		string(activity.Action),
		activity.IPAddress,
		activity.Device,
		activity.CreatedAt,
	)
	return err
}
