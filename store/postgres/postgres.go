// Package postgres implements store.Store backed by PostgreSQL.
//
// Write statements are produced by the store package's identifier-checked
// builders; every value is bound as a parameter. Reads are plain
// parameterized queries. The schema is managed by embedded goose migrations
// (see the migrations subpackage).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/harborline/authcore/store"
	"github.com/harborline/authcore/store/postgres/migrations"
)

// Store implements store.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New returns a Store over the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewFromDSN connects to PostgreSQL, runs pending migrations, and returns a
// ready Store.
func NewFromDSN(ctx context.Context, dsn string) (*Store, error) {
	if err := Migrate(ctx, dsn); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return New(pool), nil
}

// Migrate applies the embedded schema migrations. goose drives a
// database/sql connection, so it opens its own short-lived handle.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Statements with fixed shape are built once through the identifier-checked
// builders; a malformed identifier here is a programming error.
var (
	insertUserSQL     = mustBuildInsert("users", []string{"username", "email", "password_hash", "role", "status", "created_at", "updated_at"})
	insertAttemptSQL  = mustBuildInsert("login_attempts", []string{"username", "ip_address", "attempt_time", "success"})
	updateLoginSQL    = mustBuildUpdate("users", []string{"last_login"}, []string{"id"})
	updatePassSQL     = mustBuildUpdate("users", []string{"password_hash", "updated_at"}, []string{"id"})
	touchSessionSQL   = mustBuildUpdate("user_sessions", []string{"last_activity"}, []string{"session_token"})
	setCSRFSQL        = mustBuildUpdate("user_sessions", []string{"csrf_token"}, []string{"session_token"})
	deleteSessionSQL  = mustBuildDelete("user_sessions", []string{"session_token"})
	deleteUserSessSQL = mustBuildDelete("user_sessions", []string{"user_id"})
	clearAttemptsSQL  = mustBuildDelete("login_attempts", []string{"ip_address"})
)

func mustBuildInsert(table string, cols []string) string {
	q, err := store.BuildInsert(table, cols)
	if err != nil {
		panic(err)
	}
	return q
}

func mustBuildUpdate(table string, set, where []string) string {
	q, err := store.BuildUpdate(table, set, where)
	if err != nil {
		panic(err)
	}
	return q
}

func mustBuildDelete(table string, where []string) string {
	q, err := store.BuildDelete(table, where)
	if err != nil {
		panic(err)
	}
	return q
}

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) (int64, error) {
	query := insertUserSQL + " RETURNING id"
	var id int64
	err := s.pool.QueryRow(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.Role, u.Status, u.CreatedAt, u.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, mapInsertErr(err)
	}
	return id, nil
}

func (s *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE username = $1 OR lower(email) = lower($2)`,
		username, email).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const userColumns = `id, username, email, password_hash, role, status, created_at, updated_at, last_login`

func scanUser(row pgx.Row) (*store.User, error) {
	u := &store.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.Status, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *Store) ActiveUserByIdentifier(ctx context.Context, identifier string) (*store.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE (username = $1 OR lower(email) = lower($1)) AND status = $2`,
		identifier, store.StatusActive)
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id int64) (*store.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *Store) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, updateLoginSQL, at, id)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string, at time.Time) error {
	_, err := s.pool.Exec(ctx, updatePassSQL, hash, at, id)
	return err
}

func (s *Store) UpsertSession(ctx context.Context, sess *store.Session) error {
	// One active session per user: replace the user's row, then insert the
	// new token in the same transaction.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteUserSessSQL, sess.UserID); err != nil {
		return err
	}
	insert := mustBuildInsert("user_sessions",
		[]string{"user_id", "session_token", "csrf_token", "ip_address", "user_agent", "created_at", "last_activity"})
	if _, err := tx.Exec(ctx, insert,
		sess.UserID, sess.Token, sess.CSRFToken, sess.IPAddress, sess.UserAgent,
		sess.CreatedAt, sess.LastActivity); err != nil {
		return mapInsertErr(err)
	}
	return tx.Commit(ctx)
}

func (s *Store) SessionByToken(ctx context.Context, token string) (*store.Session, error) {
	sess := &store.Session{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, session_token, csrf_token, ip_address, user_agent, created_at, last_activity
		 FROM user_sessions WHERE session_token = $1`, token).
		Scan(&sess.UserID, &sess.Token, &sess.CSRFToken, &sess.IPAddress,
			&sess.UserAgent, &sess.CreatedAt, &sess.LastActivity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, token string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, touchSessionSQL, at, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetSessionCSRF(ctx context.Context, token, csrfToken string) error {
	tag, err := s.pool.Exec(ctx, setCSRFSQL, csrfToken, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, deleteSessionSQL, token)
	return err
}

func (s *Store) DeleteSessionsIdleSince(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountFailedAttempts(ctx context.Context, ip string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM login_attempts
		 WHERE ip_address = $1 AND success = false AND attempt_time >= $2`,
		ip, since).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) RecordFailedAttempt(ctx context.Context, username, ip string, at time.Time) error {
	_, err := s.pool.Exec(ctx, insertAttemptSQL, username, ip, at, false)
	return err
}

func (s *Store) RecordLoginSuccess(ctx context.Context, username, ip string, at time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, clearAttemptsSQL, ip); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertAttemptSQL, username, ip, at, true); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE attempt_time < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
