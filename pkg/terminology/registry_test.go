package terminology

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specimenTypes = `localCode,localShortName,snomedCode,snomedDisplay
# biopsies
LUPE,Lunge PE,122610009,Specimen from lung obtained by biopsy
MAPE,Magen PE,309210009,Specimen from stomach obtained by biopsy
`

func TestParseSkipsHeaderAndComments(t *testing.T) {
	entries, err := Parse(strings.NewReader(specimenTypes))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{
		LocalCode:      "LUPE",
		LocalShortName: "Lunge PE",
		Code:           "122610009",
		Display:        "Specimen from lung obtained by biopsy",
	}, entries[0])
}

func TestParseRejectsWrongColumnCount(t *testing.T) {
	_, err := Parse(strings.NewReader("LUPE,Lunge PE,122610009\n"))
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestNewRegistryRejectsDuplicateKeys(t *testing.T) {
	entries, err := Parse(strings.NewReader("1,a,1,x\n1,b,2,y\n"))
	require.NoError(t, err)

	_, err = NewRegistry(map[Table][]Entry{ContainerType: entries})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.ErrorContains(t, err, "'1'")
}

func TestNewRegistryRejectsUnknownTables(t *testing.T) {
	_, err := NewRegistry(map[Table][]Entry{"organ-type": {{LocalCode: "1", Code: "2"}}})
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.ErrorContains(t, err, "'organ-type'")
}

func TestResolve(t *testing.T) {
	entries, err := Parse(strings.NewReader(specimenTypes))
	require.NoError(t, err)
	reg, err := NewRegistry(map[Table][]Entry{SpecimenType: entries})
	require.NoError(t, err)

	t.Run("by local code", func(t *testing.T) {
		entry, ok := reg.Resolve(SpecimenType, "LUPE")
		require.True(t, ok)
		assert.Equal(t, "122610009", entry.Code)
	})
	t.Run("by short name ignoring case and spacing", func(t *testing.T) {
		entry, ok := reg.Resolve(SpecimenType, "  magen   pe ")
		require.True(t, ok)
		assert.Equal(t, "309210009", entry.Code)
	})
	t.Run("miss", func(t *testing.T) {
		_, ok := reg.Resolve(SpecimenType, "Haut PE")
		assert.False(t, ok)
	})
	t.Run("unknown table", func(t *testing.T) {
		_, ok := reg.Resolve(ExtractionMethod, "LUPE")
		assert.False(t, ok)
		assert.False(t, reg.Has(ExtractionMethod))
	})
	t.Run("nil registry", func(t *testing.T) {
		var empty *Registry
		_, ok := empty.Resolve(SpecimenType, "LUPE")
		assert.False(t, ok)
	})

	assert.Equal(t, 2, reg.Size(SpecimenType))
}

func TestResolveConcurrentReaders(t *testing.T) {
	entries, err := Parse(strings.NewReader(specimenTypes))
	require.NoError(t, err)
	reg, err := NewRegistry(map[Table][]Entry{SpecimenType: entries})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				entry, ok := reg.Resolve(SpecimenType, "Lunge PE")
				if !ok || entry.Code != "122610009" {
					t.Errorf("unexpected lookup result %v %v", entry, ok)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestLoaderReadsFilesAndURLs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "container-type.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,Kassette,434711009,Specimen container\n"), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(specimenTypes))
	}))
	defer server.Close()

	reg, err := NewLoader(5*time.Second).Load(context.Background(), []Source{
		{Table: ContainerType, Location: path},
		{Table: SpecimenType, Location: server.URL + "/specimen-type.csv"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Size(ContainerType))
	assert.Equal(t, 2, reg.Size(SpecimenType))
}

func TestLoaderFailuresAreLoadErrors(t *testing.T) {
	dir := t.TempDir()
	dup := filepath.Join(dir, "dup.csv")
	require.NoError(t, os.WriteFile(dup, []byte("1,a,1,x\n1,b,2,y\n"), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	cases := map[string]Source{
		"duplicate key": {Table: ContainerType, Location: dup},
		"missing file":  {Table: ContainerType, Location: filepath.Join(dir, "absent.csv")},
		"http 404":      {Table: SpecimenType, Location: server.URL},
		"no location":   {Table: ExtractionMethod},
		"unknown table": {Table: "organ-type", Location: dup},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewLoader(time.Second).Load(context.Background(), []Source{src})
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, src.Table, loadErr.Table)
		})
	}
}

func TestLoaderUnknownTableIsSentinel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "organ-type.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,Kassette,434711009,Specimen container\n"), 0o600))

	_, err := NewLoader(time.Second).Load(context.Background(), []Source{{Table: "organ-type", Location: path}})
	assert.ErrorIs(t, err, ErrUnknownTable)
}
