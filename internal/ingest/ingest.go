// Package ingest loads customer reviews from CSV and JSON exports.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"swotlens/internal/core"
	"swotlens/internal/logger"
)

// MinContentLength is the shortest review text kept, in runes.
const MinContentLength = 4

// ErrNoReviewColumn means no header could be mapped to the review text.
var ErrNoReviewColumn = errors.New("no review column found")

// Field is a ReviewRecord attribute a column can map to.
type Field string

const (
	FieldReview Field = "review"
	FieldSource Field = "source"
	FieldPrice  Field = "price"
	FieldRating Field = "rating"
	FieldMenu   Field = "menu"
	FieldDate   Field = "date"
	FieldUser   Field = "user"
)

// Header aliases, matched case-insensitively against the whole header.
var aliases = map[Field][]string{
	FieldReview: {"review", "reviews", "comment", "comments", "content", "feedback", "text", "đánh giá", "nhận xét", "nội dung"},
	FieldSource: {"source", "nguồn", "nguon", "shop_type", "store_type"},
	FieldPrice:  {"price", "giá", "gia", "cost", "chi phí", "amount", "giá cả"},
	FieldRating: {"rating", "điểm", "diem", "score", "star", "stars", "sao", "rate"},
	FieldMenu:   {"menu", "product", "sản phẩm", "item", "món", "dish", "drink", "food"},
	FieldDate:   {"date", "ngày", "ngay", "time", "thời gian", "created", "created_at", "timestamp"},
	FieldUser:   {"user", "customer", "khách hàng", "name", "tên", "author", "người đánh giá"},
}

// FileStats describes what one file contributed.
type FileStats struct {
	Path       string
	Rows       int         // Data rows read
	Kept       int         // Rows turned into records
	Empty      int         // Rows dropped for missing or too-short content
	Duplicates int         // Rows dropped because the review text was already seen
	Unknown    int         // Rows whose source value was unrecognized
	Source     core.Source // Source applied to rows that carry none
}

// Loader turns review exports into records.
type Loader struct {
	defaultSource core.Source
	log           *slog.Logger
	seen          map[string]bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithDefaultSource sets the source for rows that carry none.
func WithDefaultSource(s core.Source) Option {
	return func(l *Loader) { l.defaultSource = s }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// NewLoader creates a Loader. Rows without a source default to MY_SHOP.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{defaultSource: core.SourceMyShop, seen: make(map[string]bool)}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Get()
	}
	return l
}

// LoadFiles loads every path in order. Review text repeated across files is
// kept only the first time it appears.
func (l *Loader) LoadFiles(paths ...string) ([]core.ReviewRecord, []FileStats, error) {
	var all []core.ReviewRecord
	stats := make([]FileStats, 0, len(paths))
	for _, path := range paths {
		records, st, err := l.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, records...)
		stats = append(stats, st)
	}
	return all, stats, nil
}

// LoadFile reads one .csv or .json file. Rows without a source get the
// loader's default source.
func (l *Loader) LoadFile(path string) ([]core.ReviewRecord, FileStats, error) {
	return l.LoadFileAs(path, l.defaultSource)
}

// LoadFileAs reads one file, giving rows without a source the source s.
func (l *Loader) LoadFileAs(path string, fileSource core.Source) ([]core.ReviewRecord, FileStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, FileStats{Path: path}, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var records []core.ReviewRecord
	var st FileStats
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		records, st, err = l.ReadJSON(bytes.NewReader(data), fileSource)
	case ".csv", ".txt", "":
		records, st, err = l.ReadCSV(bytes.NewReader(data), fileSource)
	default:
		return nil, FileStats{Path: path}, fmt.Errorf("unsupported file type %s (use .csv or .json)", path)
	}
	st.Path = path
	if err != nil {
		return nil, st, fmt.Errorf("failed to load %s: %w", path, err)
	}

	l.log.Info("Loaded reviews", "file", path, "rows", st.Rows, "kept", st.Kept,
		"empty", st.Empty, "duplicates", st.Duplicates, "source", st.Source)
	if st.Unknown > 0 {
		l.log.Warn("Unrecognized source values mapped to default", "file", path, "rows", st.Unknown, "default", l.defaultSource)
	}
	return records, st, nil
}

// ReadCSV reads a CSV export with a header row.
func (l *Loader) ReadCSV(r io.Reader, fileSource core.Source) ([]core.ReviewRecord, FileStats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, FileStats{Source: fileSource}, ErrNoReviewColumn
	}
	if err != nil {
		return nil, FileStats{Source: fileSource}, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	columns := MapColumns(header)
	if _, ok := columns[FieldReview]; !ok {
		return nil, FileStats{Source: fileSource}, fmt.Errorf("%w in header %v", ErrNoReviewColumn, header)
	}

	b := l.newBuilder(fileSource, columns)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, b.stats, fmt.Errorf("failed to read row %d: %w", b.stats.Rows+2, err)
		}
		b.add(func(f Field) string {
			i, ok := columns[f]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		})
	}
	return b.records, b.stats, nil
}

// ReadJSON reads a JSON array of objects keyed like CSV headers.
func (l *Loader) ReadJSON(r io.Reader, fileSource core.Source) ([]core.ReviewRecord, FileStats, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, FileStats{Source: fileSource}, fmt.Errorf("failed to decode JSON reviews: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)
	columns := MapColumns(names)
	if _, ok := columns[FieldReview]; !ok && len(rows) > 0 {
		return nil, FileStats{Source: fileSource}, fmt.Errorf("%w in keys %v", ErrNoReviewColumn, names)
	}

	b := l.newBuilder(fileSource, columns)
	for _, row := range rows {
		b.add(func(f Field) string {
			i, ok := columns[f]
			if !ok {
				return ""
			}
			return stringify(row[names[i]])
		})
	}
	return b.records, b.stats, nil
}

// MapColumns assigns header positions to fields by exact alias. The first
// matching column wins.
func MapColumns(header []string) map[Field]int {
	columns := make(map[Field]int)
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, field := range []Field{FieldReview, FieldSource, FieldPrice, FieldRating, FieldMenu, FieldDate, FieldUser} {
		for i, h := range normalized {
			if claimed(columns, i) {
				continue
			}
			if slices.Contains(aliases[field], h) {
				columns[field] = i
				break
			}
		}
	}
	return columns
}

type builder struct {
	loader     *Loader
	fileSource core.Source
	hasSource  bool
	records    []core.ReviewRecord
	stats      FileStats
}

func (l *Loader) newBuilder(fileSource core.Source, columns map[Field]int) *builder {
	_, hasSource := columns[FieldSource]
	return &builder{
		loader:     l,
		fileSource: fileSource,
		hasSource:  hasSource,
		stats:      FileStats{Source: fileSource},
	}
}

func (b *builder) add(get func(Field) string) {
	b.stats.Rows++

	content := cleanCell(get(FieldReview))
	if len([]rune(content)) < MinContentLength {
		b.stats.Empty++
		return
	}
	key := strings.ToLower(content)
	if b.loader.seen[key] {
		b.stats.Duplicates++
		return
	}
	b.loader.seen[key] = true

	source := b.fileSource
	if b.hasSource {
		if raw := cleanCell(get(FieldSource)); raw != "" {
			parsed, err := core.ParseSource(raw)
			if err != nil {
				b.stats.Unknown++
				parsed = b.loader.defaultSource
			}
			source = parsed
		}
	}

	b.records = append(b.records, core.ReviewRecord{
		Content:  content,
		Source:   source,
		Price:    cleanCell(get(FieldPrice)),
		Rating:   cleanCell(get(FieldRating)),
		MenuItem: cleanCell(get(FieldMenu)),
		Date:     cleanCell(get(FieldDate)),
		Author:   cleanCell(get(FieldUser)),
	})
	b.stats.Kept++
}

// cleanCell trims a cell and blanks spreadsheet placeholders.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "null", "none", "n/a":
		return ""
	}
	return s
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return fmt.Sprint(v)
}

func claimed(columns map[Field]int, i int) bool {
	for _, c := range columns {
		if c == i {
			return true
		}
	}
	return false
}
