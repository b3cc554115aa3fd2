package terminology

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/synaptica-ai/patho-fhir/pkg/common/httpclient"
	"github.com/synaptica-ai/patho-fhir/pkg/common/logger"
)

const columns = 4

// Source points a table at a file path or an http(s) URL.
type Source struct {
	Table    Table
	Location string
}

// LoadError is fatal to the process: a registry with a broken table must
// never serve lookups.
type LoadError struct {
	Table    Table
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("mapping table '%s' from '%s': %v", e.Table, e.Location, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Parse decodes a four-column table: local code, local short name, code,
// display. Blank lines and lines starting with '#' are skipped, as is a header
// row whose first column reads "localCode".
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []Entry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
		}
		if len(record) != columns {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", ErrMalformedRow, line, len(record), columns)
		}
		if len(entries) == 0 && strings.EqualFold(strings.TrimSpace(record[0]), "localCode") {
			continue
		}
		entries = append(entries, Entry{
			LocalCode:      strings.TrimSpace(record[0]),
			LocalShortName: strings.TrimSpace(record[1]),
			Code:           strings.TrimSpace(record[2]),
			Display:        strings.TrimSpace(record[3]),
		})
	}
	return entries, nil
}

// Loader reads every configured table eagerly.
type Loader struct {
	client  *http.Client
	timeout time.Duration
}

func NewLoader(timeout time.Duration) *Loader {
	return &Loader{client: httpclient.New(timeout), timeout: timeout}
}

func (l *Loader) Load(ctx context.Context, sources []Source) (*Registry, error) {
	reg := &Registry{tables: make(map[Table]*table, len(sources))}
	for _, src := range sources {
		if src.Location == "" {
			return nil, &LoadError{Table: src.Table, Location: src.Location, Err: errors.New("no location configured")}
		}
		if _, dup := reg.tables[src.Table]; dup {
			return nil, &LoadError{Table: src.Table, Location: src.Location, Err: errors.New("table configured twice")}
		}
		entries, err := l.read(ctx, src.Location)
		if err != nil {
			return nil, &LoadError{Table: src.Table, Location: src.Location, Err: err}
		}
		t, err := newTable(src.Table, entries)
		if err != nil {
			return nil, &LoadError{Table: src.Table, Location: src.Location, Err: err}
		}
		reg.tables[src.Table] = t

		logger.Log.WithFields(map[string]interface{}{
			"table":    src.Table,
			"location": src.Location,
			"rows":     len(entries),
		}).Info("Loaded mapping table")
	}
	return reg, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]Entry, error) {
	if !isRemote(location) {
		f, err := os.Open(filepath.Clean(location))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return Parse(f)
	}

	var entries []Entry
	err := httpclient.Retry(ctx, 3, 200*time.Millisecond, func() error {
		var err error
		entries, err = l.fetch(ctx, location)
		return err
	})
	return entries, err
}

func (l *Loader) fetch(ctx context.Context, location string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &httpclient.RetriableError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
