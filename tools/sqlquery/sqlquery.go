// Package sqlquery lets a tool agent read a sqlite database
package sqlquery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bububa/wowagent/tools"
)

// ErrReadOnly statement is not a single SELECT
var ErrReadOnly = errors.New("only a single SELECT statement is allowed")

// DefaultMaxRows rows returned by one query
const DefaultMaxRows = 100

// Open opens (or creates) the sqlite database at path
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}
	return db, nil
}

// Department headcount of one department
type Department struct {
	Name      string `json:"department"`
	Headcount int    `json:"headcount"`
}

// DefaultDepartments demo rows
var DefaultDepartments = []Department{
	{Name: "专利部", Headcount: 22},
	{Name: "商标部", Headcount: 25},
}

// Seed creates the section_stats table and inserts rows unless it already has data
func Seed(ctx context.Context, db *sql.DB, rows []Department) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS section_stats (
			department TEXT NOT NULL PRIMARY KEY,
			headcount INTEGER NOT NULL DEFAULT 0
		)`); err != nil {
		return fmt.Errorf("failed to create section_stats: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO section_stats (department, headcount) VALUES (?, ?)`, row.Name, row.Headcount); err != nil {
			return fmt.Errorf("failed to insert %s: %w", row.Name, err)
		}
	}
	return tx.Commit()
}

// QueryInput a read only SQL statement
type QueryInput struct {
	SQL string `json:"sql" jsonschema:"title=sql,description=A single SQLite SELECT statement. Table section_stats(department TEXT, headcount INTEGER) lists departments and their number of staff." validate:"required"`
}

// QueryOutput rows keyed by column name
type QueryOutput struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// HeadcountInput department lookup
type HeadcountInput struct {
	Department string `json:"department" jsonschema:"title=department,description=Department name, for example 专利部." validate:"required"`
}

type Querier struct {
	db      *sql.DB
	maxRows int
}

func New(db *sql.DB, maxRows int) *Querier {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Querier{db: db, maxRows: maxRows}
}

// checkReadOnly accepts one SELECT or WITH statement
func checkReadOnly(stmt string) (string, error) {
	stmt = strings.TrimSpace(stmt)
	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	if strings.Contains(stmt, ";") {
		return "", ErrReadOnly
	}
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "", ErrReadOnly
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
	default:
		return "", ErrReadOnly
	}
	return stmt, nil
}

// Query runs a read only statement
func (q *Querier) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	stmt, err := checkReadOnly(input.SQL)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	ret := &QueryOutput{Columns: columns}
	for rows.Next() && len(ret.Rows) < q.maxRows {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if bs, ok := values[i].([]byte); ok {
				row[col] = string(bs)
				continue
			}
			row[col] = values[i]
		}
		ret.Rows = append(ret.Rows, row)
	}
	return ret, rows.Err()
}

// Headcount returns the staff of one department
func (q *Querier) Headcount(ctx context.Context, input *HeadcountInput) (*Department, error) {
	ret := &Department{Name: input.Department}
	err := q.db.QueryRowContext(ctx, `SELECT headcount FROM section_stats WHERE department = ?`, input.Department).Scan(&ret.Headcount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unknown department %s", input.Department)
	}
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Tools returns sql_query and section_staff
func (q *Querier) Tools() []tools.Tool {
	return []tools.Tool{
		tools.NewFunc("sql_query", q.Query, tools.WithDescription("Runs a read only SQL query against the company database.")),
		tools.NewFunc("section_staff", q.Headcount, tools.WithDescription("Returns the number of staff of a department.")),
	}
}
