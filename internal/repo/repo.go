package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	CreateUser(ctx context.Context, login, email, password string) (int, error)
	GetByLogin(ctx context.Context, login string) (int, string, error)

	ListClients(ctx context.Context) ([]string, error)
	AddClient(ctx context.Context, name string) error
	ListConcreteClasses(ctx context.Context) ([]string, error)
	AddConcreteClass(ctx context.Context, name string) error

	LogReport(ctx context.Context, e ReportEntry) error
	GetReport(ctx context.Context, id string) (ReportEntry, error)
}

// ReportEntry is one line of the generated-report log.
type ReportEntry struct {
	ID            string    `json:"id"`
	Protocol      string    `json:"protocol"`
	SetID         string    `json:"set_id"`
	Client        string    `json:"client"`
	ConcreteClass string    `json:"concrete_class"`
	SampleAge     int       `json:"sample_age"`
	Operator      int       `json:"operator,omitempty"`
	Files         []string  `json:"files"`
	CreatedAt     time.Time `json:"created_at"`
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	login TEXT UNIQUE NOT NULL,
	email TEXT NOT NULL,
	password TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS clients (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS concrete_classes (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS reports (
	id UUID PRIMARY KEY,
	protocol TEXT NOT NULL,
	set_id TEXT NOT NULL,
	client TEXT NOT NULL,
	concrete_class TEXT NOT NULL,
	sample_age INTEGER NOT NULL,
	operator INTEGER,
	files TEXT[] NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Open connects to PostgreSQL and creates missing tables.
func Open(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", WithSSLMode(connStr))
	if err != nil {
		return nil, fmt.Errorf("configure database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is not responding: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// WithSSLMode requires TLS unless the connection string picks a mode.
func WithSSLMode(connStr string) string {
	if connStr == "" {
		connStr = "user=postgres dbname=postgres password=password sslmode=disable"
	}
	if strings.Contains(connStr, "sslmode=") {
		return connStr
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		sep := "?"
		if strings.Contains(connStr, "?") {
			sep = "&"
		}
		return connStr + sep + "sslmode=require"
	}
	return connStr + " sslmode=require"
}

func (r *PostgresRepository) CreateUser(ctx context.Context, login, email, password string) (int, error) {
	var id int
	query := "INSERT INTO users (login, email, password) VALUES ($1, $2, $3) RETURNING id"
	err := r.db.QueryRowContext(ctx, query, login, email, password).Scan(&id)
	return id, err
}

// GetByLogin returns a zero id and hash for an unknown login.
func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (int, string, error) {
	var id int
	var hash string

	query := "SELECT id, password FROM users WHERE login=$1"

	err := r.db.QueryRowContext(ctx, query, login).Scan(&id, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", nil
		}
		return 0, "", err
	}
	return id, hash, nil
}

func (r *PostgresRepository) ListClients(ctx context.Context) ([]string, error) {
	return r.names(ctx, "SELECT name FROM clients ORDER BY name")
}

func (r *PostgresRepository) AddClient(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO clients (name) VALUES ($1) ON CONFLICT DO NOTHING", name)
	return err
}

func (r *PostgresRepository) ListConcreteClasses(ctx context.Context) ([]string, error) {
	return r.names(ctx, "SELECT name FROM concrete_classes ORDER BY name")
}

func (r *PostgresRepository) AddConcreteClass(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO concrete_classes (name) VALUES ($1) ON CONFLICT DO NOTHING", name)
	return err
}

func (r *PostgresRepository) names(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *PostgresRepository) LogReport(ctx context.Context, e ReportEntry) error {
	var operator sql.NullInt64
	if e.Operator != 0 {
		operator = sql.NullInt64{Int64: int64(e.Operator), Valid: true}
	}
	query := `INSERT INTO reports (id, protocol, set_id, client, concrete_class, sample_age, operator, files)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.Protocol, e.SetID, e.Client, e.ConcreteClass,
		e.SampleAge, operator, pq.Array(e.Files))
	return err
}

func (r *PostgresRepository) GetReport(ctx context.Context, id string) (ReportEntry, error) {
	var e ReportEntry
	var operator sql.NullInt64
	query := `SELECT id, protocol, set_id, client, concrete_class, sample_age, operator, files, created_at
		FROM reports WHERE id=$1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Protocol, &e.SetID, &e.Client,
		&e.ConcreteClass, &e.SampleAge, &operator, pq.Array(&e.Files), &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ReportEntry{}, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ReportEntry{}, err
	}
	e.Operator = int(operator.Int64)
	return e, nil
}
