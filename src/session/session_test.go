package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/table"
)

func cityTable(t *testing.T, body string) *table.Table {
	t.Helper()
	tbl, err := table.Decode([]byte(body))
	require.NoError(t, err)
	return tbl
}

func TestSetURLClearsState(t *testing.T) {
	s := New()
	require.NotEmpty(t, s.ID)
	assert.True(t, s.SetURL("https://a"))
	s.SetSelection("city", []string{"A"})
	s.SetVisibleColumns([]string{"city"})

	assert.False(t, s.SetURL("https://a"))
	_, ok := s.Selection("city")
	assert.True(t, ok, "same URL keeps selections")

	assert.True(t, s.SetURL("https://b"))
	_, ok = s.Selection("city")
	assert.False(t, ok)
	assert.Equal(t, []string{"x", "y"}, s.ResolveVisibleColumns([]string{"x", "y"}))
}

func TestResolveSelection(t *testing.T) {
	tbl := cityTable(t, `[{"city":"A","kind":"x"},{"city":"B","kind":"y"},{"city":"C","kind":"x"}]`)
	s := New()
	s.SetSelection("city", []string{"B", "gone", "A"})
	s.SetSelection("nope", []string{"z"})

	sel := s.ResolveSelection(tbl, []string{"city", "kind"})
	assert.Equal(t, analysis.Selection{
		"city": {"B", "A"},
		"kind": {"x", "y"},
	}, sel)

	stored, _ := s.Selection("city")
	assert.Equal(t, []string{"B", "gone", "A"}, stored, "pruning does not rewrite the session")

	s.SetSelection("kind", []string{})
	sel = s.ResolveSelection(tbl, []string{"city", "kind"})
	assert.Equal(t, []string{}, sel["kind"])
	assert.Equal(t, 0, analysis.Filter(tbl.All(), sel).Len())

	s.ClearSelection("kind")
	sel = s.ResolveSelection(tbl, []string{"kind"})
	assert.Equal(t, []string{"x", "y"}, sel["kind"])
}

func TestSelectionsAreCopies(t *testing.T) {
	s := New()
	keys := []string{"A"}
	s.SetSelection("city", keys)
	keys[0] = "Z"
	got := s.Selections()
	assert.Equal(t, []string{"A"}, got["city"])
	got["city"][0] = "Q"
	again, _ := s.Selection("city")
	assert.Equal(t, []string{"A"}, again)
}

func TestVisibleColumns(t *testing.T) {
	s := New()
	cols := []string{"a", "b", "c"}
	assert.Equal(t, cols, s.ResolveVisibleColumns(cols))
	s.SetVisibleColumns([]string{"c", "a", "zz"})
	assert.Equal(t, []string{"a", "c"}, s.ResolveVisibleColumns(cols))
	s.SetVisibleColumns([]string{})
	assert.Equal(t, []string{}, s.ResolveVisibleColumns(cols))
	s.SetVisibleColumns(nil)
	assert.Equal(t, cols, s.ResolveVisibleColumns(cols))
}

func TestReset(t *testing.T) {
	s := New()
	id := s.ID
	s.SetURL("https://a")
	s.SetSelection("c", []string{"x"})
	s.Reset()
	assert.Equal(t, id, s.ID)
	assert.Empty(t, s.URL())
	assert.Empty(t, s.Selections())
}

func TestStore(t *testing.T) {
	var live atomic.Int64
	st := NewStore(time.Minute, func(n int) { live.Store(int64(n)) })
	st.Start()
	defer st.Stop()

	a := st.Create()
	b, created := st.GetOrCreate("unknown")
	assert.True(t, created)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, int64(2), live.Load())

	got, ok := st.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)
	again, created := st.GetOrCreate(a.ID)
	assert.False(t, created)
	assert.Same(t, a, again)

	_, ok = st.Get("")
	assert.False(t, ok)

	st.Delete(a.ID)
	_, ok = st.Get(a.ID)
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return live.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestStoreExpiry(t *testing.T) {
	st := NewStore(50*time.Millisecond, nil)
	st.Start()
	defer st.Stop()

	s := st.Create()
	require.Equal(t, 1, st.Len())
	// Get touches the entry, so watch the count instead
	assert.Eventually(t, func() bool { return st.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
	_, ok := st.Get(s.ID)
	assert.False(t, ok)
}
