// Package session keeps the per-user dashboard state between pipeline runs: the
// URL, filter selections and visible dataset columns.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/table"
)

// Session is one user's state. Methods do not lock; callers that share a session
// across goroutines hold Lock for the duration of a run.
type Session struct {
	mu sync.Mutex

	ID      string
	Created time.Time
	LastRun time.Time

	url        string
	selections map[string][]string
	visible    []string
}

// New returns an empty session with a random ID.
func New() *Session {
	return &Session{
		ID:         uuid.NewString(),
		Created:    time.Now(),
		selections: map[string][]string{},
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// URL returns the current endpoint.
func (s *Session) URL() string { return s.url }

// SetURL stores u. Changing the URL forgets selections and column visibility since
// they belong to the previous dataset. It reports whether the URL changed.
func (s *Session) SetURL(u string) bool {
	if u == s.url {
		return false
	}
	s.url = u
	s.selections = map[string][]string{}
	s.visible = nil
	return true
}

// Selection returns the stored keys for column; ok is false when the user never
// changed that filter.
func (s *Session) Selection(column string) ([]string, bool) {
	keys, ok := s.selections[column]
	if !ok {
		return nil, false
	}
	return append([]string{}, keys...), true
}

// SetSelection stores the selected value keys of column. An empty slice is kept and
// means "nothing selected".
func (s *Session) SetSelection(column string, keys []string) {
	s.selections[column] = append([]string{}, keys...)
}

// ClearSelection drops the stored filter of column so it reverts to all values.
func (s *Session) ClearSelection(column string) { delete(s.selections, column) }

// Selections returns a copy of every stored filter.
func (s *Session) Selections() analysis.Selection {
	out := make(analysis.Selection, len(s.selections))
	for k, v := range s.selections {
		out[k] = append([]string{}, v...)
	}
	return out
}

// SetVisibleColumns stores the dataset columns to show. nil means all columns.
func (s *Session) SetVisibleColumns(cols []string) {
	if cols == nil {
		s.visible = nil
		return
	}
	s.visible = append([]string{}, cols...)
}

// Reset clears everything except the ID.
func (s *Session) Reset() {
	s.url = ""
	s.selections = map[string][]string{}
	s.visible = nil
	s.LastRun = time.Time{}
}

// ResolveSelection builds the selection for a run over t: stored keys pruned to
// values that still exist, or every distinct value for columns without a stored
// filter. The session itself is not modified.
func (s *Session) ResolveSelection(t *table.Table, categorical []string) analysis.Selection {
	defaults := analysis.DefaultSelection(t, categorical)
	out := make(analysis.Selection, len(defaults))
	for col, all := range defaults {
		stored, ok := s.selections[col]
		if !ok {
			out[col] = all
			continue
		}
		exists := make(map[string]struct{}, len(all))
		for _, k := range all {
			exists[k] = struct{}{}
		}
		kept := []string{}
		for _, k := range stored {
			if _, ok := exists[k]; ok {
				kept = append(kept, k)
			}
		}
		out[col] = kept
	}
	return out
}

// ResolveVisibleColumns returns the stored visible columns that exist in columns, in
// table order, or all columns when nothing is stored.
func (s *Session) ResolveVisibleColumns(columns []string) []string {
	if s.visible == nil {
		return append([]string{}, columns...)
	}
	want := make(map[string]struct{}, len(s.visible))
	for _, c := range s.visible {
		want[c] = struct{}{}
	}
	out := []string{}
	for _, c := range columns {
		if _, ok := want[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
