package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/platemetrics/delivery-api/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table holds the parsed rows of one platform export together with the header
// index. Column lookup is name-tolerant so downstream parsers are isolated from
// header-naming churn across export format revisions.
type Table struct {
	exact      map[string]int
	normalized map[string]int
	rows       [][]string
}

// Row is one data row of a Table
type Row struct {
	table  *Table
	values []string
}

// NewTable parses a raw export buffer into a Table. A leading UTF-8 byte-order
// mark is stripped. For Uber Eats exports the first line is sniffed for the
// descriptive caption some format revisions prepend; when detected, column
// parsing starts at line two.
func NewTable(buf []byte, platform domain.Platform) (*Table, error) {
	buf = bytes.TrimPrefix(buf, utf8BOM)

	if platform == domain.PlatformUberEats {
		if line, rest, ok := bytes.Cut(buf, []byte("\n")); ok && IsCaptionLine(string(line)) {
			buf = rest
		}
	}

	r := csv.NewReader(bytes.NewReader(buf))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty export")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	t := &Table{
		exact:      make(map[string]int, len(header)),
		normalized: make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, ok := t.exact[h]; !ok {
			t.exact[h] = i
		}
		n := normalizeHeader(h)
		if _, ok := t.normalized[n]; !ok {
			t.normalized[n] = i
		}
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		t.rows = append(t.rows, rec)
	}

	return t, nil
}

// Rows returns the data rows of the table
func (t *Table) Rows() []Row {
	rows := make([]Row, len(t.rows))
	for i, v := range t.rows {
		rows[i] = Row{table: t, values: v}
	}
	return rows
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Get returns the value for the first matching header name. Each candidate is
// tried against the exact header first, then against the normalized header set.
// No match yields the empty string.
func (r Row) Get(names ...string) string {
	for _, name := range names {
		if i, ok := r.table.exact[name]; ok {
			return r.value(i)
		}
		if i, ok := r.table.normalized[normalizeHeader(name)]; ok {
			return r.value(i)
		}
	}
	return ""
}

func (r Row) value(i int) string {
	if i < 0 || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

// IsCaptionLine reports whether a raw first line looks like the descriptive
// sentence some Uber Eats export revisions prepend above the real header. The
// platform changed formats over time without a version marker, so this sniff is
// the only way to tell the variants apart.
func IsCaptionLine(line string) bool {
	l := strings.ToLower(line)
	return strings.Contains(l, "as per") || strings.Contains(l, "whether it")
}

// normalizeHeader lowercases a header and strips whitespace, punctuation and
// parentheses so historical spellings of the same column collapse together
func normalizeHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	for _, c := range strings.ToLower(h) {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ParseMoney parses a currency/percentage cell permissively: currency symbols,
// thousands separators, percent signs and trailing multiplier markers are
// stripped. Unparsable values resolve to zero; malformed numeric cells are
// common in real exports and must not block ingestion of the row.
func ParseMoney(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "x"), "X")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if neg {
		return -v
	}
	return v
}

// dateLayouts covers the date formats observed across export revisions
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"01/02/2006",
	"1/2/2006 15:04",
	"Jan 2, 2006",
	time.RFC3339,
}

// ParseDate parses a date cell against the known layouts. Failure yields the
// zero time with the row still accepted.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
