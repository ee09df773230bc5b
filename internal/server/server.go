// Package server is the HTTP front end: a thin JSON layer over the
// ledger, the analytics engine, and the import pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bankbook-dev/bankbook/internal/analytics"
	"github.com/bankbook-dev/bankbook/internal/annotate"
	"github.com/bankbook-dev/bankbook/internal/ledger"
	"github.com/bankbook-dev/bankbook/internal/logging"
	"github.com/bankbook-dev/bankbook/internal/model"
	"github.com/bankbook-dev/bankbook/internal/pipeline"
	"github.com/bankbook-dev/bankbook/internal/statement"
)

// dateParam is the query-parameter date layout.
const dateParam = "2006-01-02"

// Ledger is the slice of the transaction store the front end serves.
type Ledger interface {
	Read(ctx context.Context, q ledger.Query) (*ledger.Page, error)
	Get(ctx context.Context, id int64) (*model.Transaction, error)
	Update(ctx context.Context, id int64, set model.UpdateSet) (bool, error)
	UpdateBulk(ctx context.Context, ids []int64, set model.UpdateSet) (int, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Categories(ctx context.Context) ([]string, error)
}

// Analytics is the slice of the analytics engine the front end serves.
type Analytics interface {
	TotalExpenditure(ctx context.Context, start, end *time.Time) (decimal.Decimal, error)
	TotalIncome(ctx context.Context, start, end *time.Time) (decimal.Decimal, error)
	IncomeExpenditureRatio(ctx context.Context, start, end *time.Time) (float64, error)
	PercentileBreakdown(ctx context.Context, start, end *time.Time) (*analytics.Breakdown, error)
	ExpenditureStats(ctx context.Context, start, end *time.Time) (analytics.Stats, error)
	MonthlyForecast(ctx context.Context, year int, month time.Month) (analytics.Forecast, error)
}

// Importer runs the statement import pipeline.
type Importer interface {
	Process(ctx context.Context, path string, annotate bool) (pipeline.Result, error)
}

// NewRouter builds the HTTP routes.
func NewRouter(led Ledger, stats Analytics, imp Importer) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/transactions", listTransactions(led))
		r.Get("/transactions/{id}", getTransaction(led))
		r.Patch("/transactions", updateTransactionsBulk(led))
		r.Patch("/transactions/{id}", updateTransaction(led))
		r.Delete("/transactions/{id}", deleteTransaction(led))
		r.Get("/categories", listCategories(led))
		r.Post("/import", importStatement(imp))

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/expenditure", totalHandler(stats.TotalExpenditure, "total_expenditure"))
			r.Get("/income", totalHandler(stats.TotalIncome, "total_income"))
			r.Get("/ratio", ratioHandler(stats))
			r.Get("/breakdown", breakdownHandler(stats))
			r.Get("/stats", statsHandler(stats))
			r.Get("/forecast", forecastHandler(stats))
		})
	})

	return r
}

func listTransactions(led Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := queryFromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		page, err := led.Read(r.Context(), q)
		if err != nil {
			logging.Logger.WithError(err).Error("reading transactions failed")
			http.Error(w, "failed to read transactions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func queryFromRequest(r *http.Request) (ledger.Query, error) {
	var q ledger.Query
	params := r.URL.Query()

	var err error
	if q.Page, err = intParam(params.Get("page"), 1); err != nil {
		return q, errors.New("invalid page")
	}
	if q.PageSize, err = intParam(params.Get("page_size"), 0); err != nil {
		return q, errors.New("invalid page_size")
	}
	if q.StartDate, err = dateParamValue(params.Get("start_date")); err != nil {
		return q, errors.New("invalid start_date, want YYYY-MM-DD")
	}
	if q.EndDate, err = dateParamValue(params.Get("end_date")); err != nil {
		return q, errors.New("invalid end_date, want YYYY-MM-DD")
	}
	if v := params.Get("id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return q, errors.New("invalid id")
		}
		q.ID = id
	}
	q.Category = params.Get("category")
	q.DescriptionLike = params.Get("description")
	q.OriginatorLike = params.Get("originator")
	q.OnlyAnnotated = params.Get("only_annotated") == "true"
	q.IncludeTaxes = params.Get("include_taxes") == "true"
	return q, nil
}

func getTransaction(led Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		txn, err := led.Get(r.Context(), id)
		if err != nil {
			logging.Logger.WithError(err).WithField("id", id).Error("reading transaction failed")
			http.Error(w, "failed to read transaction", http.StatusInternalServerError)
			return
		}
		if txn == nil {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, txn)
	}
}

func updateTransaction(led Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		var set model.UpdateSet
		if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := set.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ok, err := led.Update(r.Context(), id, set)
		if err != nil {
			logging.Logger.WithError(err).WithField("id", id).Error("updating transaction failed")
			http.Error(w, "failed to update transaction", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
	}
}

func updateTransactionsBulk(led Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs     []int64         `json:"ids"`
			Updates model.UpdateSet `json:"updates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := req.Updates.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		updated, err := led.UpdateBulk(r.Context(), req.IDs, req.Updates)
		if err != nil {
			logging.Logger.WithError(err).Error("bulk update failed")
			http.Error(w, "failed to update transactions", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
	}
}

func deleteTransaction(led Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}

		ok, err := led.Delete(r.Context(), id)
		if err != nil {
			logging.Logger.WithError(err).WithField("id", id).Error("deleting transaction failed")
			http.Error(w, "failed to delete transaction", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listCategories(led Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := led.Categories(r.Context())
		if err != nil {
			logging.Logger.WithError(err).Error("reading categories failed")
			http.Error(w, "failed to read categories", http.StatusInternalServerError)
			return
		}
		if cats == nil {
			cats = []string{}
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

func importStatement(imp Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path     string `json:"path"`
			Annotate bool   `json:"annotate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			http.Error(w, "invalid request body, want {\"path\": ...}", http.StatusBadRequest)
			return
		}

		res, err := imp.Process(r.Context(), req.Path, req.Annotate)
		switch {
		case errors.Is(err, statement.ErrHeaderNotFound):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, annotate.ErrNotConfigured):
			// Extraction and insertion already happened; report both.
			writeJSON(w, http.StatusConflict, map[string]any{
				"result": res,
				"error":  err.Error(),
			})
			return
		case err != nil:
			logging.Logger.WithError(err).WithField("path", req.Path).Error("import failed")
			http.Error(w, "import failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func totalHandler(total func(context.Context, *time.Time, *time.Time) (decimal.Decimal, error), field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := rangeFromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sum, err := total(r.Context(), start, end)
		if err != nil {
			logging.Logger.WithError(err).Error("analytics total failed")
			http.Error(w, "analytics query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]decimal.Decimal{field: sum})
	}
}

func ratioHandler(stats Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := rangeFromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ratio, err := stats.IncomeExpenditureRatio(r.Context(), start, end)
		if err != nil {
			logging.Logger.WithError(err).Error("analytics ratio failed")
			http.Error(w, "analytics query failed", http.StatusInternalServerError)
			return
		}

		// +Inf is a defined result but not representable in JSON.
		var value any = ratio
		if math.IsInf(ratio, 1) {
			value = "Infinity"
		}
		writeJSON(w, http.StatusOK, map[string]any{"ratio": value})
	}
}

func breakdownHandler(stats Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := rangeFromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		bd, err := stats.PercentileBreakdown(r.Context(), start, end)
		if err != nil {
			logging.Logger.WithError(err).Error("analytics breakdown failed")
			http.Error(w, "analytics query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, bd)
	}
}

func statsHandler(stats Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := rangeFromRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		st, err := stats.ExpenditureStats(r.Context(), start, end)
		if err != nil {
			logging.Logger.WithError(err).Error("analytics stats failed")
			http.Error(w, "analytics query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func forecastHandler(stats Analytics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, err := strconv.Atoi(r.URL.Query().Get("year"))
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		month, err := strconv.Atoi(r.URL.Query().Get("month"))
		if err != nil || month < 1 || month > 12 {
			http.Error(w, "invalid month", http.StatusBadRequest)
			return
		}

		fc, err := stats.MonthlyForecast(r.Context(), year, time.Month(month))
		if err != nil {
			logging.Logger.WithError(err).Error("analytics forecast failed")
			http.Error(w, "analytics query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, fc)
	}
}

func rangeFromRequest(r *http.Request) (start, end *time.Time, err error) {
	if start, err = dateParamValue(r.URL.Query().Get("start_date")); err != nil {
		return nil, nil, errors.New("invalid start_date, want YYYY-MM-DD")
	}
	if end, err = dateParamValue(r.URL.Query().Get("end_date")); err != nil {
		return nil, nil, errors.New("invalid end_date, want YYYY-MM-DD")
	}
	return start, end, nil
}

func dateParamValue(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateParam, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.WithError(err).Error("encoding response failed")
	}
}
