package statement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankbook-dev/bankbook/internal/model"
)

// ErrHeaderNotFound reports a CSV without the "Booking Date" header row.
var ErrHeaderNotFound = errors.New("header row not found")

// headerMarker locates the header row. Banks prepend variable-length
// preambles, so there is no fixed row offset.
const headerMarker = "Booking Date"

// dateFormat is the statement date layout, e.g. "05 Jan 2024".
const dateFormat = "02 Jan 2006"

const (
	colBookingDate = 0
	colValueDate   = 1
	colDescription = 3
	colDebit       = 4
	colCredit      = 5
	colBalance     = 6
)

var (
	stanPattern = regexp.MustCompile(`(?i)STAN\s*\((\d+)\)`)
	amountNoise = regexp.MustCompile(`[^0-9.\-]`)
	taxMarkers  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)FBRTax`),
		regexp.MustCompile(`(?i)Withholding Tax`),
		regexp.MustCompile(`(?i)Charges Taxes`),
		regexp.MustCompile(`(?i)CHG:.*Tax`),
	}
)

// Parser extracts transactions from bank statement CSV exports.
type Parser struct{}

// NewParser creates a statement Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Extract reads and parses the CSV at path.
func (p *Parser) Extract(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	txns, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return txns, nil
}

// Parse reads statement CSV rows and returns normalized transactions.
//
// Parsing is best-effort per row: rows with an empty first cell (summary
// and blank lines) are skipped, and a row that fails date parsing or is
// too short is dropped without failing the file. Only a missing header
// row is fatal.
func (p *Parser) Parse(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // preamble and summary rows vary in width

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading statement CSV: %w", err)
	}

	// Tolerate a leading byte-order mark.
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	headerIdx := -1
	for i, row := range rows {
		if len(row) > 0 && strings.Contains(row[0], headerMarker) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, ErrHeaderNotFound
	}

	var txns []model.Transaction
	dayCounts := make(map[string]int)
	for _, row := range rows[headerIdx+1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		txn, ok := parseRow(row, dayCounts)
		if !ok {
			continue
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// parseRow converts one data row. ok is false for malformed rows, which
// callers drop silently.
func parseRow(row []string, dayCounts map[string]int) (model.Transaction, bool) {
	booking, err := time.Parse(dateFormat, strings.TrimSpace(field(row, colBookingDate)))
	if err != nil {
		return model.Transaction{}, false
	}
	value, err := time.Parse(dateFormat, strings.TrimSpace(field(row, colValueDate)))
	if err != nil {
		return model.Transaction{}, false
	}

	dayKey := booking.Format("2006-01-02")
	dayCounts[dayKey]++

	desc := strings.TrimSpace(field(row, colDescription))

	balance := decimal.Zero
	if b := parseAmount(field(row, colBalance)); b.Valid {
		balance = b.Decimal
	}

	return model.Transaction{
		BookingDateTime:          booking,
		ValueDateTime:            value,
		DayOrderID:               dayCounts[dayKey],
		BankStatementDescription: desc,
		StanID:                   extractStanID(desc),
		Debit:                    parseAmount(field(row, colDebit)),
		Credit:                   parseAmount(field(row, colCredit)),
		AvailableBalance:         balance,
		IsTaxes:                  isTaxEntry(desc),
	}, true
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

// extractStanID pulls the transaction-network reference out of a
// description like "Payment STAN (123456)".
func extractStanID(desc string) *string {
	m := stanPattern.FindStringSubmatch(desc)
	if m == nil {
		return nil
	}
	return &m[1]
}

func isTaxEntry(desc string) bool {
	for _, re := range taxMarkers {
		if re.MatchString(desc) {
			return true
		}
	}
	return false
}

// parseAmount strips everything except digits, '.' and '-', then parses
// the remainder. This tolerates thousands separators and currency symbols
// but will mis-read amounts containing stray digit-like noise; that loss
// of fidelity matches the statement formats seen so far.
func parseAmount(s string) decimal.NullDecimal {
	cleaned := amountNoise.ReplaceAllString(strings.TrimSpace(s), "")
	if cleaned == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
