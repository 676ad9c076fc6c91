// Package ledger is a small reference implementation of the batch endpoint.
// It persists submitted transactions in PostgreSQL and reports per-row
// failures by their 1-based position in the batch.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/txnimport/internal/core"
)

// Row failure messages reported in the errored list.
const (
	MsgInvalidDate     = "Invalid date"
	MsgInvalidAmount   = "Invalid amount"
	MsgUnknownCategory = "Unknown category"
	MsgDescription     = "Description is required"
)

// contextCheckInterval is how often (in rows) the insert loop checks for cancellation.
const contextCheckInterval = 500

const schemaSQL = `
CREATE TABLE IF NOT EXISTS categories (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS transactions (
	id                   UUID PRIMARY KEY,
	txn_date             DATE NOT NULL,
	amount               NUMERIC(14, 2) NOT NULL,
	description          TEXT NOT NULL,
	category_id          BIGINT REFERENCES categories (id),
	receipt_name         TEXT,
	receipt_content_type TEXT,
	receipt              BYTEA,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// BatchInserter persists one batch and reports the outcome per row.
type BatchInserter interface {
	InsertBatch(ctx context.Context, rows []core.SubmitRow) (*core.BatchResponse, error)
}

// Store writes batches to PostgreSQL.
type Store struct {
	pool       *pgxpool.Pool
	categories *categoryCache
}

// NewStore creates a store. cacheSize bounds the category lookup cache.
func NewStore(pool *pgxpool.Pool, cacheSize int) *Store {
	return &Store{
		pool:       pool,
		categories: newCategoryCache(cacheSize),
	}
}

// EnsureSchema creates the ledger tables if they do not exist and drops any
// cached category ids, which may predate the tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	s.categories.Clear()
	return nil
}

// preparedRow is a submitted row that passed server-side parsing.
type preparedRow struct {
	date        time.Time
	amount      decimal.Decimal
	description string
	categoryID  int64 // zero when the row names a category by text or has none
	category    string
	receipt     *core.ReceiptPayload
}

// rowError is a per-row rejection carrying the message reported to the client.
type rowError struct {
	msg string
}

func (e *rowError) Error() string { return e.msg }

// prepareRow parses a submitted row without touching the database.
func prepareRow(row core.SubmitRow) (preparedRow, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return preparedRow{}, &rowError{MsgInvalidDate}
	}

	amount, err := core.ParseMoney(row.Amount)
	if err != nil {
		return preparedRow{}, &rowError{MsgInvalidAmount}
	}

	desc := strings.TrimSpace(row.Description)
	if desc == "" {
		return preparedRow{}, &rowError{MsgDescription}
	}

	p := preparedRow{
		date:        date,
		amount:      amount,
		description: desc,
		category:    strings.TrimSpace(row.Category),
		receipt:     row.Receipt,
	}

	if id := strings.TrimSpace(row.CategoryID); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return preparedRow{}, &rowError{MsgUnknownCategory}
		}
		p.categoryID = n
		p.category = ""
	}

	return p, nil
}

// InsertBatch persists rows in one transaction. Each row runs under its own
// savepoint so a failing row rolls back alone and the rest still commit.
func (s *Store) InsertBatch(ctx context.Context, rows []core.SubmitRow) (*core.BatchResponse, error) {
	resp := &core.BatchResponse{
		Imported: []core.ImportedRow{},
		Errored:  []core.ImportErrorRecord{},
	}
	if len(rows) == 0 {
		return resp, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Category lookups from released savepoints; cached only after commit.
	resolved := make(map[string]int64)

	for i, row := range rows {
		pos := i + 1

		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		p, err := prepareRow(row)
		if err != nil {
			resp.Errored = append(resp.Errored, core.ImportErrorRecord{Row: pos, Message: err.Error()})
			continue
		}

		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return nil, fmt.Errorf("create savepoint: %w", err)
		}

		res, err := s.insertRow(ctx, tx, p, resolved)
		if err != nil {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return nil, fmt.Errorf("rollback savepoint: %w", rbErr)
			}
			resp.Errored = append(resp.Errored, core.ImportErrorRecord{Row: pos, Message: rowMessage(err)})
			continue
		}

		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return nil, fmt.Errorf("release savepoint: %w", err)
		}
		if res.categoryKey != "" {
			resolved[res.categoryKey] = res.categoryID
		}

		resp.Imported = append(resp.Imported, core.ImportedRow{
			ID:          res.id,
			Date:        p.date.Format(time.DateOnly),
			Amount:      p.amount.StringFixed(2),
			Description: p.description,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	for key, id := range resolved {
		s.categories.Put(key, id)
	}

	return resp, nil
}

type insertResult struct {
	id          string
	categoryKey string
	categoryID  int64
}

// insertRow resolves the row's category and inserts the transaction.
func (s *Store) insertRow(ctx context.Context, tx pgx.Tx, p preparedRow, resolved map[string]int64) (insertResult, error) {
	var res insertResult

	switch {
	case p.categoryID != 0:
		res.categoryKey = "id:" + strconv.FormatInt(p.categoryID, 10)
		ok, err := s.categoryExists(ctx, tx, res.categoryKey, p.categoryID, resolved)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, &rowError{MsgUnknownCategory}
		}
		res.categoryID = p.categoryID

	case p.category != "":
		res.categoryKey = "name:" + p.category
		id, err := s.resolveCategory(ctx, tx, res.categoryKey, p.category, resolved)
		if err != nil {
			return res, err
		}
		res.categoryID = id
	}

	var categoryID *int64
	if res.categoryID != 0 {
		categoryID = &res.categoryID
	}

	id := uuid.New()
	var receiptName, receiptType *string
	var receipt []byte
	if p.receipt != nil {
		receiptName = &p.receipt.FileName
		receiptType = &p.receipt.ContentType
		receipt = p.receipt.Data
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, txn_date, amount, description, category_id, receipt_name, receipt_content_type, receipt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, p.date, p.amount, p.description, categoryID, receiptName, receiptType, receipt,
	)
	if err != nil {
		return res, fmt.Errorf("insert transaction: %w", err)
	}

	res.id = id.String()
	return res, nil
}

func (s *Store) lookup(key string, resolved map[string]int64) (int64, bool) {
	if id, ok := resolved[key]; ok {
		return id, true
	}
	return s.categories.Get(key)
}

func (s *Store) categoryExists(ctx context.Context, tx pgx.Tx, key string, id int64, resolved map[string]int64) (bool, error) {
	if _, ok := s.lookup(key, resolved); ok {
		return true, nil
	}

	var found int64
	err := tx.QueryRow(ctx, `SELECT id FROM categories WHERE id = $1`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup category: %w", err)
	}
	return true, nil
}

// resolveCategory finds or creates a category by name.
func (s *Store) resolveCategory(ctx context.Context, tx pgx.Tx, key, name string, resolved map[string]int64) (int64, error) {
	if id, ok := s.lookup(key, resolved); ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO categories (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolve category: %w", err)
	}
	return id, nil
}

// rowMessage turns an insert failure into the message reported for the row.
func rowMessage(err error) string {
	var re *rowError
	if errors.As(err, &re) {
		return re.msg
	}
	return "Insert failed"
}
