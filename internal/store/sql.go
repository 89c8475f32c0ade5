package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when an insert hits an existing primary key.
var ErrDuplicate = errors.New("record already exists")

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLStore opens dataSourceName with the Postgres driver when it is a
// postgres:// URL and with SQLite otherwise, then creates missing tables.
func NewSQLStore(dataSourceName string) (*SQLStore, error) {
	driver, d := "sqlite3", dialectSQLite
	if strings.HasPrefix(dataSourceName, "postgres://") || strings.HasPrefix(dataSourceName, "postgresql://") {
		driver, d = "pgx", dialectPostgres
	}

	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d == dialectSQLite {
		// SQLite only supports one writer at a time. A single connection also
		// keeps ":memory:" databases from splitting across connections.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLStore{db: db, dialect: d}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) initSchema() error {
	seqColumn := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		seqColumn = "seq BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
        user_id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        email TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`,
		// chats.user_id has no foreign key to users.
		`CREATE TABLE IF NOT EXISTS chats (
        ` + seqColumn + `,
        id TEXT UNIQUE NOT NULL, -- UUID
        user_id TEXT NOT NULL,
        message TEXT NOT NULL,
        reply TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL
    )`,
		`CREATE INDEX IF NOT EXISTS idx_chats_user_id ON chats (user_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites '?' placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// User methods

// GetUserByID returns nil, nil when no user has the given id.
func (s *SQLStore) GetUserByID(ctx context.Context, userID string) (*User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, s.rebind("SELECT user_id, name, email, created_at FROM users WHERE user_id = ?"), userID).
		Scan(&user.UserID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind("INSERT INTO users (user_id, name, email, created_at) VALUES (?, ?, ?, ?)"),
		user.UserID, user.Name, user.Email, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to insert user %s: %w", user.UserID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id, name, email, created_at FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.UserID, &user.Name, &user.Email, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Chat log methods

func (s *SQLStore) AppendChatLog(ctx context.Context, userID, message, reply string) (*ChatLog, error) {
	entry := &ChatLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Reply:     reply,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind("INSERT INTO chats (id, user_id, message, reply, created_at) VALUES (?, ?, ?, ?, ?)"),
		entry.ID, entry.UserID, entry.Message, entry.Reply, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat log: %w", err)
	}
	return entry, nil
}

// GetChatLogsByUserID returns the user's entries in insertion order.
func (s *SQLStore) GetChatLogsByUserID(ctx context.Context, userID string) ([]ChatLog, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT id, user_id, message, reply, created_at FROM chats WHERE user_id = ? ORDER BY seq ASC"), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat logs: %w", err)
	}
	defer rows.Close()

	logs := []ChatLog{}
	for rows.Next() {
		var entry ChatLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Message, &entry.Reply, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat log row: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat logs: %w", err)
	}
	return logs, nil
}
