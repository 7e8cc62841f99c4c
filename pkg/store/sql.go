package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/covercash2/green/pkg/types"
)

// timeLayout is fixed width so that created_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dialect captures the differences between SQL backends.
type dialect struct {
	name         string
	numberedArgs bool // $1, $2 instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite"}
	postgresDialect = dialect{name: "postgres", numberedArgs: true}
)

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(query string) string {
	if !d.numberedArgs {
		return query
	}

	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// sqlStore implements Store over database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
}

const deploymentColumns = "id, delivery_id, repo, ref, rev, previous_rev, status, message, flake_commit, created_at"

// AddDeployment stores a deployment record. A record with an existing ID
// replaces the old one.
func (s *sqlStore) AddDeployment(d *types.Deployment) error {
	_, err := s.db.Exec(s.dialect.rebind(`
		INSERT INTO deployments (`+deploymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			flake_commit = excluded.flake_commit,
			previous_rev = excluded.previous_rev
	`),
		d.ID,
		nullString(d.DeliveryID),
		d.Repo,
		d.Ref,
		d.Rev,
		nullString(d.PreviousRev),
		string(d.Status),
		nullString(d.Message),
		nullString(d.FlakeCommit),
		d.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting deployment: %w", err)
	}
	return nil
}

// GetDeployment retrieves a deployment by ID.
func (s *sqlStore) GetDeployment(id string) (*types.Deployment, error) {
	row := s.db.QueryRow(s.dialect.rebind(
		"SELECT "+deploymentColumns+" FROM deployments WHERE id = ?"), id)

	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying deployment: %w", err)
	}
	return d, nil
}

// ListDeployments returns the most recent deployments, newest first.
func (s *sqlStore) ListDeployments(limit int) ([]*types.Deployment, error) {
	query := "SELECT " + deploymentColumns + " FROM deployments ORDER BY created_at DESC, id ASC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying deployments: %w", err)
	}
	defer rows.Close()

	result := []*types.Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning deployment: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deployments: %w", err)
	}
	return result, nil
}

// LatestDeployment returns the newest deployment with the given status.
func (s *sqlStore) LatestDeployment(status types.DeploymentStatus) (*types.Deployment, error) {
	query := "SELECT " + deploymentColumns + " FROM deployments"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT 1"

	d, err := scanDeployment(s.db.QueryRow(s.dialect.rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest deployment: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*types.Deployment, error) {
	var (
		d                                             types.Deployment
		deliveryID, previousRev, message, flakeCommit sql.NullString
		status, createdAt                             string
	)
	err := row.Scan(&d.ID, &deliveryID, &d.Repo, &d.Ref, &d.Rev, &previousRev, &status, &message, &flakeCommit, &createdAt)
	if err != nil {
		return nil, err
	}

	d.DeliveryID = deliveryID.String
	d.PreviousRev = previousRev.String
	d.Message = message.String
	d.FlakeCommit = flakeCommit.String
	d.Status = types.DeploymentStatus(status)

	d.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
