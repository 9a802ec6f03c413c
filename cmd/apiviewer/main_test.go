package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/widget"

	"github.com/zenriquezs/APIReader/src/config"
	"github.com/zenriquezs/APIReader/src/dashboard"
	"github.com/zenriquezs/APIReader/src/table"
)

func newTestUI(t *testing.T) *uiState {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	w := a.NewWindow("test")
	cfg := config.Default()
	return newUI(a, w, cfg, dashboard.NewFromConfig(cfg, nil))
}

func runOnce(t *testing.T, state *uiState, url string) *dashboard.Result {
	t.Helper()
	state.sess.SetURL(url)
	return state.dash.Run(context.Background(), state.sess)
}

func TestApplyResult_PopulatesAndClears(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"city":"A","sales":10},{"city":"B","sales":20},{"city":null,"sales":30}]`)
	}))
	defer srv.Close()

	state := newTestUI(t)
	applyResult(state, runOnce(t, state, srv.URL))

	if got := len(state.filtersBox.Objects); got != 3 {
		t.Fatalf("expected label+group+separator for one filter, got %d objects", got)
	}
	cg, ok := state.filtersBox.Objects[1].(*widget.CheckGroup)
	if !ok {
		t.Fatalf("expected a CheckGroup, got %T", state.filtersBox.Objects[1])
	}
	if len(cg.Options) != 3 || len(cg.Selected) != 3 {
		t.Fatalf("expected every city option selected by default: %v / %v", cg.Options, cg.Selected)
	}
	if got := len(state.chartTabs.Items); got != 4 {
		t.Fatalf("expected 4 chart tabs, got %d", got)
	}
	if len(state.chartImages) != 4 || state.chartImages[0].Image == nil {
		t.Fatalf("chart images not rendered")
	}
	if got := len(state.cardsBox.Objects); got != 2 {
		t.Fatalf("expected heading and card grid, got %d", got)
	}
	if cellText(state.res, 0, 0) != "city" || cellText(state.res, 3, 0) != table.NullLabel {
		t.Fatalf("unexpected table cells %q %q", cellText(state.res, 0, 0), cellText(state.res, 3, 0))
	}
	if got := state.columnsGroup.Selected; len(got) != 2 {
		t.Fatalf("expected both columns visible, got %v", got)
	}
	if len(state.statusBox.Objects) != 0 {
		t.Fatalf("expected no status messages on success")
	}

	// a failing URL must not leave the previous dataset on screen
	applyResult(state, runOnce(t, state, ""))
	if len(state.filtersBox.Objects) != 0 || len(state.chartTabs.Items) != 0 || len(state.cardsBox.Objects) != 0 {
		t.Fatalf("stale widgets after halted run")
	}
	if len(state.statusBox.Objects) != 1 {
		t.Fatalf("expected one status message, got %d", len(state.statusBox.Objects))
	}
	lbl := state.statusBox.Objects[0].(*widget.Label)
	if lbl.Importance != widget.WarningImportance {
		t.Fatalf("missing URL should be a warning, got %v", lbl.Importance)
	}
	if cellText(state.res, 0, 0) != "" {
		t.Fatalf("table should be empty after halt")
	}
}

func TestFilterLabelsRoundTrip(t *testing.T) {
	tbl, err := table.Decode([]byte(`[{"c":"x"},{"c":null},{"c":"y"}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res := &dashboard.Result{
		Table:     tbl,
		Options:   map[string][]table.Value{"c": tbl.All().Distinct("c")},
		Selection: map[string][]string{"c": {table.NullKey, "y"}},
	}
	labels, keyOf := filterOptions(res, "c")
	if len(labels) != 3 || labels[1] != table.NullLabel {
		t.Fatalf("unexpected labels %v", labels)
	}
	sel := selectedLabels(res, "c")
	if len(sel) != 2 || sel[0] != table.NullLabel || sel[1] != "y" {
		t.Fatalf("unexpected selected labels %v", sel)
	}
	keys := labelsToKeys(append(sel, "unknown"), keyOf)
	if len(keys) != 2 || keys[0] != table.NullKey || keys[1] != "y" {
		t.Fatalf("unexpected keys %q", keys)
	}
}

func TestFilterLabelsKeepNullDistinct(t *testing.T) {
	tbl, err := table.Decode([]byte(`[{"c":"(null)"},{"c":null},{"c":"x"}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res := &dashboard.Result{
		Table:     tbl,
		Options:   map[string][]table.Value{"c": tbl.All().Distinct("c")},
		Selection: map[string][]string{"c": {table.NullKey}},
	}
	labels, keyOf := filterOptions(res, "c")
	if len(labels) != 3 || labels[0] != `"(null)"` || labels[1] != table.NullLabel {
		t.Fatalf("unexpected labels %q", labels)
	}
	if keyOf[labels[0]] != "(null)" || keyOf[labels[1]] != table.NullKey || labels[2] != "x" {
		t.Fatalf("labels map to the wrong keys: %q", keyOf)
	}
	sel := selectedLabels(res, "c")
	if len(sel) != 1 || sel[0] != table.NullLabel {
		t.Fatalf("unexpected selected labels %q", sel)
	}
	if keys := labelsToKeys(sel, keyOf); len(keys) != 1 || keys[0] != table.NullKey {
		t.Fatalf("unexpected keys %q", keys)
	}
}

func TestRecentURLs(t *testing.T) {
	state := newTestUI(t)
	for i := 0; i < 12; i++ {
		addRecentURL(state, fmt.Sprintf("https://h/%d", i))
	}
	addRecentURL(state, "https://h/5")
	got := recentURLs(state)
	if len(got) != 10 {
		t.Fatalf("expected 10 recent URLs, got %d", len(got))
	}
	if got[0] != "https://h/5" || got[1] != "https://h/11" {
		t.Fatalf("most recent first expected, got %v", got[:2])
	}
	clearRecentURLs(state)
	if len(recentURLs(state)) != 0 {
		t.Fatalf("expected cleared list")
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	state := newTestUI(t)
	state.urlEntry.SetText(" https://example.com/data ")
	state.showHints = false
	savePrefs(state)

	state.urlEntry.SetText("")
	state.showHints = true
	loadPrefs(state)
	if state.urlEntry.Text != "https://example.com/data" || state.showHints {
		t.Fatalf("prefs not restored: %q hints=%v", state.urlEntry.Text, state.showHints)
	}
}

func TestImportanceFor(t *testing.T) {
	if importanceFor(dashboard.LevelError) != widget.DangerImportance ||
		importanceFor(dashboard.LevelWarning) != widget.WarningImportance ||
		importanceFor(dashboard.LevelInfo) != widget.MediumImportance {
		t.Fatalf("unexpected importance mapping")
	}
}

func TestChartSizeHeadless(t *testing.T) {
	w, h := chartSize(nil)
	if w != 900 || h < 300 {
		t.Fatalf("unexpected headless chart size %dx%d", w, h)
	}
}
