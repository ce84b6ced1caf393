package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/bintree/pkg/debug"
	"github.com/vanderheijden86/bintree/pkg/metrics"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// Schema is the members table layout read by SQLiteProvider.
const Schema = `
CREATE TABLE IF NOT EXISTS members (
	id                INTEGER PRIMARY KEY,
	parent_id         INTEGER REFERENCES members(id),
	position          TEXT CHECK (position IN ('LEFT', 'RIGHT') OR position IS NULL),
	member_id         TEXT NOT NULL,
	email             TEXT NOT NULL DEFAULT '',
	is_active         INTEGER NOT NULL DEFAULT 0,
	name              TEXT,
	join_date         TEXT,
	rank              TEXT,
	bv_left           REAL NOT NULL DEFAULT 0,
	bv_right          REAL NOT NULL DEFAULT 0,
	sponsor_member_id TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_members_slot ON members(parent_id, position);
`

// SQLiteProvider serves trees from a members table.
type SQLiteProvider struct {
	db  *sql.DB
	src DataSource
}

// NewSQLiteProvider opens a SQLite database for reading
func NewSQLiteProvider(src DataSource) (*SQLiteProvider, error) {
	if src.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", src.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", src.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return &SQLiteProvider{db: db, src: src}, nil
}

// Source implements Provider.
func (p *SQLiteProvider) Source() DataSource { return p.src }

// Close closes the database connection
func (p *SQLiteProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Tree implements Provider. Rows are validated as a whole, so a cycle or a
// doubly claimed slot anywhere in the table is reported even when it lies
// outside the requested subtree.
func (p *SQLiteProvider) Tree(ctx context.Context, rootID, depth int) (*model.TreeNode, error) {
	defer metrics.Timer(metrics.TreeLoad)()
	start := time.Now()

	rows, err := p.Members(ctx)
	if err != nil {
		return nil, err
	}
	root, err := model.BuildTree(rows, rootID, depth)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.src.Path, err)
	}
	debug.LogTiming(fmt.Sprintf("sqlite tree (%d rows)", len(rows)), time.Since(start))
	return root, nil
}

// Members reads every row of the members table.
func (p *SQLiteProvider) Members(ctx context.Context) ([]model.Member, error) {
	const query = `
		SELECT id, parent_id, position, member_id, email, is_active,
		       name, join_date, rank, bv_left, bv_right, sponsor_member_id
		FROM members
		ORDER BY id`

	rs, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rs.Close()

	var out []model.Member
	for rs.Next() {
		var (
			m                               model.Member
			parent                          sql.NullInt64
			position                        sql.NullString
			name, joinDate, rank, sponsorID sql.NullString
			active                          int
		)
		if err := rs.Scan(&m.ID, &parent, &position, &m.MemberID, &m.Email, &active,
			&name, &joinDate, &rank, &m.LeftBV, &m.RightBV, &sponsorID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.ParentID = int(parent.Int64)
		m.Position = model.Position(position.String)
		m.IsActive = active != 0
		m.Name = name.String
		m.JoinDate = joinDate.String
		m.Rank = rank.String
		m.SponsorMemberID = sponsorID.String
		out = append(out, m)
	}
	return out, rs.Err()
}

// CountMembers returns the number of rows in the members table.
func (p *SQLiteProvider) CountMembers(ctx context.Context) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&n)
	return n, err
}

// WriteSQLite creates (or replaces the rows of) a members database at path.
func WriteSQLite(ctx context.Context, path string, rows []model.Member) error {
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM members"); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO members (id, parent_id, position, member_id, email, is_active,
		                     name, join_date, rank, bv_left, bv_right, sponsor_member_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range rows {
		if _, err := stmt.ExecContext(ctx, m.ID, nullInt(m.ParentID), nullString(string(m.Position)),
			m.MemberID, m.Email, boolInt(m.IsActive), nullString(m.Name), nullString(m.JoinDate),
			nullString(m.Rank), m.LeftBV, m.RightBV, nullString(m.SponsorMemberID)); err != nil {
			return fmt.Errorf("insert member %d: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
