// Package ledger owns transaction persistence: deduplicated inserts,
// filtered reads with tax nesting, point updates, and deletes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/jackc/pgx/v5"

	"github.com/bankbook-dev/bankbook/internal/database"
	"github.com/bankbook-dev/bankbook/internal/model"
)

const selectColumns = `id, booking_date_time, value_date_time, day_order_id,
	bank_statement_description, stan_id, debit, credit, available_balance,
	description, category, originator_name, group_name, is_taxes`

const categoriesCacheKey = "categories"

// Service provides transaction storage on PostgreSQL.
type Service struct {
	db              *database.DB
	defaultPageSize int
	cache           *ristretto.Cache
}

// NewService creates a ledger Service. defaultPageSize is used by reads
// that do not request a page size.
func NewService(db *database.DB, defaultPageSize int) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     1000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}
	return &Service{
		db:              db,
		defaultPageSize: defaultPageSize,
		cache:           cache,
	}, nil
}

// Insert stores records that are not already present, keyed by
// (booking_date_time, day_order_id). Existing rows are left untouched
// even when other fields differ, so re-importing the same statement is a
// no-op. Returns the number of rows actually inserted.
func (s *Service) Insert(ctx context.Context, records []model.Transaction) (int, error) {
	inserted := 0
	for i, rec := range records {
		tag, err := s.db.Pool.Exec(ctx, `
			INSERT INTO transactions (
				booking_date_time, value_date_time, day_order_id,
				bank_statement_description, stan_id, debit, credit,
				available_balance, description, category, originator_name,
				group_name, is_taxes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT ON CONSTRAINT transactions_booking_day_order_key DO NOTHING`,
			rec.BookingDateTime, rec.ValueDateTime, rec.DayOrderID,
			rec.BankStatementDescription, rec.StanID, rec.Debit, rec.Credit,
			rec.AvailableBalance, rec.Description, rec.Category,
			rec.OriginatorName, rec.GroupName, rec.IsTaxes,
		)
		if err != nil {
			return inserted, fmt.Errorf("inserting record %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if inserted > 0 {
		s.invalidate()
	}
	return inserted, nil
}

// Query holds the optional, conjunctive read filters.
type Query struct {
	Page     int
	PageSize int

	StartDate *time.Time
	EndDate   *time.Time
	// Category filters by exact category value.
	Category string
	// DescriptionLike is a case-insensitive substring match on the
	// cleaned description.
	DescriptionLike string
	// OriginatorLike is a case-insensitive substring match on the
	// originator name.
	OriginatorLike string
	// ID filters to a single transaction when non-zero.
	ID int64
	// OnlyAnnotated keeps rows with both description and category set.
	OnlyAnnotated bool
	// IncludeTaxes returns tax rows in the primary result set instead of
	// nesting them under matching STAN ids.
	IncludeTaxes bool
}

// Page is one page of read results.
type Page struct {
	Transactions []model.Transaction `json:"transactions"`
	Total        int                 `json:"total"`
	Page         int                 `json:"page"`
	PageSize     int                 `json:"page_size"`
	TotalPages   int                 `json:"total_pages"`
}

func (q Query) where() (string, []any) {
	var conds []string
	var args []any
	add := func(format string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if !q.IncludeTaxes {
		conds = append(conds, "is_taxes = FALSE")
	}
	if q.StartDate != nil {
		add("booking_date_time >= $%d", *q.StartDate)
	}
	if q.EndDate != nil {
		add("booking_date_time <= $%d", *q.EndDate)
	}
	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.DescriptionLike != "" {
		add("description ILIKE $%d", "%"+q.DescriptionLike+"%")
	}
	if q.OriginatorLike != "" {
		add("originator_name ILIKE $%d", "%"+q.OriginatorLike+"%")
	}
	if q.ID != 0 {
		add("id = $%d", q.ID)
	}
	if q.OnlyAnnotated {
		conds = append(conds, "description IS NOT NULL AND category IS NOT NULL")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Read returns one page of transactions, newest booking date first and
// latest-in-day first within a day. Unless IncludeTaxes is set, tax rows
// are excluded from the page and instead nested under any primary row
// sharing their STAN id; that nested lookup deliberately ignores the
// caller's date range.
func (s *Service) Read(ctx context.Context, q Query) (*Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = s.defaultPageSize
	}

	where, args := q.where()

	var total int
	err := s.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("counting transactions: %w", err)
	}

	limitArgs := append(args, q.PageSize, (q.Page-1)*q.PageSize)
	sql := fmt.Sprintf(
		"SELECT %s FROM transactions%s ORDER BY booking_date_time DESC, day_order_id DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := s.db.Pool.Query(ctx, sql, limitArgs...)
	if err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	defer rows.Close()

	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}

	if !q.IncludeTaxes {
		for i := range txns {
			if txns[i].StanID == nil {
				continue
			}
			related, err := s.relatedTaxes(ctx, *txns[i].StanID)
			if err != nil {
				return nil, err
			}
			txns[i].RelatedTaxes = related
		}
	}

	totalPages := (total + q.PageSize - 1) / q.PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	return &Page{
		Transactions: txns,
		Total:        total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   totalPages,
	}, nil
}

// relatedTaxes finds every tax-flagged row carrying stanID, regardless of
// any date filter on the primary read.
func (s *Service) relatedTaxes(ctx context.Context, stanID string) ([]model.Transaction, error) {
	rows, err := s.db.Pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE is_taxes = TRUE AND stan_id = $1 ORDER BY booking_date_time, day_order_id", selectColumns),
		stanID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading related taxes: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// Get returns a single transaction, or nil when the id does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	row := s.db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE id = $1", selectColumns), id)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading transaction %d: %w", id, err)
	}
	return &txn, nil
}

// Update applies the set to the transaction with the given id. Returns
// false without side effects when the id does not exist.
func (s *Service) Update(ctx context.Context, id int64, set model.UpdateSet) (bool, error) {
	if err := set.Validate(); err != nil {
		return false, err
	}
	if set.Empty() {
		var exists bool
		err := s.db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("checking transaction %d: %w", id, err)
		}
		return exists, nil
	}

	assigns, args := updateAssignments(set)
	args = append(args, id)
	tag, err := s.db.Pool.Exec(ctx,
		fmt.Sprintf("UPDATE transactions SET %s WHERE id = $%d", strings.Join(assigns, ", "), len(args)),
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("updating transaction %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		s.invalidate()
		return true, nil
	}
	return false, nil
}

// UpdateBulk applies the same set to every existing id. Missing ids are
// skipped and not counted.
func (s *Service) UpdateBulk(ctx context.Context, ids []int64, set model.UpdateSet) (int, error) {
	updated := 0
	for _, id := range ids {
		ok, err := s.Update(ctx, id, set)
		if err != nil {
			return updated, err
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func updateAssignments(set model.UpdateSet) ([]string, []any) {
	var assigns []string
	var args []any
	add := func(column string, val any) {
		args = append(args, val)
		assigns = append(assigns, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if set.Description != nil {
		add("description", *set.Description)
	}
	if set.Category != nil {
		add("category", string(*set.Category))
	}
	if set.OriginatorName != nil {
		add("originator_name", *set.OriginatorName)
	}
	if set.GroupName != nil {
		add("group_name", *set.GroupName)
	}
	if set.IsTaxes != nil {
		add("is_taxes", *set.IsTaxes)
	}
	return assigns, args
}

// Delete removes a transaction. Returns false when the id does not exist.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Pool.Exec(ctx, "DELETE FROM transactions WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("deleting transaction %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		s.invalidate()
		return true, nil
	}
	return false, nil
}

// Categories returns the distinct non-null categories in use, through a
// small read cache invalidated by every write path.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	if cached, ok := s.cache.Get(categoriesCacheKey); ok {
		if cats, ok := cached.([]string); ok {
			return cats, nil
		}
	}

	rows, err := s.db.Pool.Query(ctx,
		"SELECT DISTINCT category FROM transactions WHERE category IS NOT NULL ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading categories: %w", err)
	}

	// Wait so the entry is visible before the next read.
	s.cache.Set(categoriesCacheKey, cats, 1)
	s.cache.Wait()
	return cats, nil
}

// Unannotated returns rows still missing a description or category, the
// backlog the annotation collaborator works through.
func (s *Service) Unannotated(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.Pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE description IS NULL OR category IS NULL ORDER BY booking_date_time, day_order_id", selectColumns))
	if err != nil {
		return nil, fmt.Errorf("reading unannotated transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *Service) invalidate() {
	s.cache.Del(categoriesCacheKey)
	s.cache.Wait()
}

func scanTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var txn model.Transaction
	err := row.Scan(
		&txn.ID, &txn.BookingDateTime, &txn.ValueDateTime, &txn.DayOrderID,
		&txn.BankStatementDescription, &txn.StanID, &txn.Debit, &txn.Credit,
		&txn.AvailableBalance, &txn.Description, &txn.Category,
		&txn.OriginatorName, &txn.GroupName, &txn.IsTaxes,
	)
	if err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}
