package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	png "image/png"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/zenriquezs/APIReader/cmd/apiviewer/uihelpers"
	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/config"
	"github.com/zenriquezs/APIReader/src/dashboard"
	"github.com/zenriquezs/APIReader/src/logging"
	"github.com/zenriquezs/APIReader/src/render"
	"github.com/zenriquezs/APIReader/src/session"
	"github.com/zenriquezs/APIReader/src/table"
)

// maxTableRows caps the rows shown in the dataset table.
const maxTableRows = 1000

type uiState struct {
	app    fyne.App
	window fyne.Window
	cfg    config.Config
	dash   *dashboard.Dashboard
	sess   *session.Session

	res    *dashboard.Result
	charts []analysis.ChartSpec

	// pipeline runs happen off the UI goroutine; only the UI goroutine touches these
	running bool
	pending []func(*session.Session)

	showHints bool

	// widgets
	urlEntry     *widget.Entry
	loadBtn      *widget.Button
	hintsChk     *widget.Check
	statusBox    *fyne.Container
	filtersBox   *fyne.Container
	cardsBox     *fyne.Container
	columnsGroup *widget.CheckGroup
	datasetLabel *widget.Label
	table        *widget.Table
	chartTabs    *container.AppTabs
	chartImages  []*canvas.Image
}

// dark theme wrapper
type darkTheme struct{}

func (d *darkTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}
func (d *darkTheme) Font(style fyne.TextStyle) fyne.Resource { return theme.DefaultTheme().Font(style) }
func (d *darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}
func (d *darkTheme) Size(name fyne.ThemeSizeName) float32 { return theme.DefaultTheme().Size(name) }

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warnf("[viewer] .env: %v", err)
	}
	cmd := &cli.Command{
		Name:  "apiviewer",
		Usage: "desktop viewer for JSON API data",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "API URL to open", Sources: cli.EnvVars("APIDASH_URL")},
			&cli.StringFlag{Name: "config", Usage: "config file", Sources: cli.EnvVars("APIDASH_CONFIG")},
			&cli.StringFlag{Name: "screenshots-out", Usage: "render all charts as PNG into `DIR` and exit"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			logging.SetLogLevel(cfg.Log.Level)
			logging.SetFormat(cfg.Log.Format)
			if cmd.IsSet("url") {
				cfg.URL = cmd.String("url")
			}
			if out := cmd.String("screenshots-out"); out != "" {
				paths, err := RunScreenshotsMode(ctx, cfg, cfg.URL, out)
				for _, p := range paths {
					fmt.Println(p)
				}
				return err
			}
			runUI(cfg, cmd.IsSet("url"))
			return nil
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logging.Errorf("[viewer] %v", err)
		os.Exit(1)
	}
}

func runUI(cfg config.Config, urlFromFlag bool) {
	a := app.NewWithID("com.apidash.viewer")
	a.Settings().SetTheme(&darkTheme{})
	w := a.NewWindow("API Data Analytics")
	w.Resize(fyne.NewSize(1280, 860))

	state := newUI(a, w, cfg, dashboard.NewFromConfig(cfg, nil))
	buildMenus(state)
	loadPrefs(state)
	if urlFromFlag || state.urlEntry.Text == "" {
		state.urlEntry.SetText(cfg.URL)
	}

	done := make(chan struct{})
	w.SetOnClosed(func() {
		savePrefs(state)
		close(done)
	})
	watchResize(state, done)

	submitURL(state, state.urlEntry.Text)
	w.ShowAndRun()
}

// newUI builds every widget and sets the window content. Callbacks are wired after
// all widgets exist so none of them fires against a half-built state.
func newUI(a fyne.App, w fyne.Window, cfg config.Config, dash *dashboard.Dashboard) *uiState {
	state := &uiState{
		app:       a,
		window:    w,
		cfg:       cfg,
		dash:      dash,
		sess:      session.New(),
		showHints: cfg.Charts.Hints,
	}

	state.urlEntry = widget.NewEntry()
	state.urlEntry.SetPlaceHolder("https://example.com/data.json")
	state.loadBtn = widget.NewButton("Load", nil)
	state.hintsChk = widget.NewCheck("Chart hints", nil)
	state.hintsChk.SetChecked(state.showHints)

	state.statusBox = container.NewVBox()
	state.filtersBox = container.NewVBox()
	state.cardsBox = container.NewVBox()
	state.columnsGroup = widget.NewCheckGroup(nil, nil)
	state.columnsGroup.Horizontal = true
	state.datasetLabel = widget.NewLabel("")

	state.table = widget.NewTable(
		func() (int, int) {
			if state.res == nil || state.res.Halted() {
				return 0, 0
			}
			return min(state.res.View.Len(), maxTableRows) + 1, len(state.res.VisibleColumns)
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			lbl := o.(*widget.Label)
			lbl.TextStyle = fyne.TextStyle{Bold: id.Row == 0}
			lbl.SetText(cellText(state.res, id.Row, id.Col))
		},
	)
	state.chartTabs = container.NewAppTabs()
	state.chartTabs.SetTabLocation(container.TabLocationTop)

	sidebar := container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			widget.NewLabel("API URL"),
			state.urlEntry,
			container.NewHBox(state.loadBtn, state.hintsChk),
			widget.NewSeparator(),
		),
		nil, nil, nil,
		container.NewVScroll(state.filtersBox),
	)
	dataset := widget.NewAccordion(widget.NewAccordionItem("View dataset",
		container.NewBorder(container.NewVBox(state.datasetLabel, state.columnsGroup), nil, nil, nil,
			container.NewGridWrap(fyne.NewSize(1000, 320), state.table)),
	))
	mainColumn := container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle("API DATA ANALYTICS: KPI, TRENDS & PREDICTIONS", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			state.statusBox,
			state.cardsBox,
			dataset,
		),
		nil, nil, nil,
		state.chartTabs,
	)
	split := container.NewHSplit(sidebar, mainColumn)
	split.Offset = 0.22
	w.SetContent(split)

	state.loadBtn.OnTapped = func() { submitURL(state, state.urlEntry.Text) }
	state.urlEntry.OnSubmitted = func(s string) { submitURL(state, s) }
	state.hintsChk.OnChanged = func(b bool) {
		state.showHints = b
		savePrefs(state)
		redrawCharts(state)
	}
	return state
}

// menus and shortcuts
func buildMenus(state *uiState) {
	if state == nil || state.window == nil || state.app == nil {
		return
	}
	var items []*fyne.MenuItem
	for _, u := range recentURLs(state) {
		u := u
		items = append(items, fyne.NewMenuItem(uihelpers.TruncateMiddle(u, 60), func() {
			state.urlEntry.SetText(u)
			submitURL(state, u)
		}))
	}
	clearRecent := fyne.NewMenuItem("Clear Recent", func() { clearRecentURLs(state); buildMenus(state) })
	recentMenu := fyne.NewMenu("Recent URLs", append(items, clearRecent)...)
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Reload", func() { reload(state, nil) }),
		fyne.NewMenuItem("Reset Session", func() { resetSession(state) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Chart…", func() { exportChartPNG(state) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { state.window.Close() }),
	)
	state.window.SetMainMenu(fyne.NewMainMenu(fileMenu, recentMenu))

	canv := state.window.Canvas()
	if canv != nil {
		for _, mod := range []fyne.KeyModifier{fyne.KeyModifierSuper, fyne.KeyModifierControl} {
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: mod}, func(fyne.Shortcut) { reload(state, nil) })
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyE, Modifier: mod}, func(fyne.Shortcut) { exportChartPNG(state) })
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: mod}, func(fyne.Shortcut) { state.window.Close() })
		}
	}
}

func submitURL(state *uiState, raw string) {
	u := strings.TrimSpace(raw)
	if u != "" {
		addRecentURL(state, u)
		buildMenus(state)
	}
	savePrefs(state)
	reload(state, func(s *session.Session) { s.SetURL(u) })
}

func resetSession(state *uiState) {
	state.urlEntry.SetText("")
	savePrefs(state)
	reload(state, func(s *session.Session) { s.Reset() })
}

// reload queues change (may be nil) and reruns the pipeline in the background.
// Changes made while a run is in flight are applied together on the next run.
func reload(state *uiState, change func(*session.Session)) {
	if change != nil {
		state.pending = append(state.pending, change)
	}
	if state.running {
		return
	}
	changes := state.pending
	state.pending = nil
	state.running = true
	state.loadBtn.Disable()
	go func() {
		state.sess.Lock()
		for _, c := range changes {
			c(state.sess)
		}
		res := state.dash.Run(context.Background(), state.sess)
		state.sess.Unlock()
		fyne.Do(func() {
			state.running = false
			applyResult(state, res)
			if len(state.pending) > 0 {
				reload(state, nil)
				return
			}
			state.loadBtn.Enable()
		})
	}()
}

// applyResult pushes a pipeline result into every widget. A halted result clears the
// data widgets so nothing from an earlier dataset stays visible.
func applyResult(state *uiState, res *dashboard.Result) {
	state.res = res
	showStatus(state, res.Status)
	if res.Halted() {
		state.charts = nil
		state.filtersBox.Objects = nil
		state.filtersBox.Refresh()
		state.cardsBox.Objects = nil
		state.cardsBox.Refresh()
		state.columnsGroup.OnChanged = nil
		state.columnsGroup.Options = nil
		state.columnsGroup.Selected = nil
		state.columnsGroup.Refresh()
		state.datasetLabel.SetText("")
		state.table.Refresh()
		state.chartImages = nil
		state.chartTabs.SetItems(nil)
		return
	}
	rebuildFilters(state)
	rebuildCards(state)
	rebuildDataset(state)
	state.charts = res.Charts
	rebuildChartTabs(state)
}

func showStatus(state *uiState, msgs []dashboard.Message) {
	objs := make([]fyne.CanvasObject, 0, len(msgs))
	for _, m := range msgs {
		lbl := widget.NewLabel(m.Text)
		lbl.Wrapping = fyne.TextWrapWord
		lbl.Importance = importanceFor(m.Level)
		objs = append(objs, lbl)
	}
	state.statusBox.Objects = objs
	state.statusBox.Refresh()
}

func importanceFor(l dashboard.Level) widget.Importance {
	switch l {
	case dashboard.LevelError:
		return widget.DangerImportance
	case dashboard.LevelWarning:
		return widget.WarningImportance
	default:
		return widget.MediumImportance
	}
}

func rebuildFilters(state *uiState) {
	res := state.res
	var objs []fyne.CanvasObject
	for _, col := range res.Classification.Categorical {
		col := col
		labels, keyOf := filterOptions(res, col)
		cg := widget.NewCheckGroup(labels, nil)
		cg.Selected = selectedLabels(res, col)
		cg.OnChanged = func(sel []string) {
			keys := labelsToKeys(sel, keyOf)
			reload(state, func(s *session.Session) { s.SetSelection(col, keys) })
		}
		objs = append(objs,
			widget.NewLabelWithStyle("Select "+col, fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			cg,
			widget.NewSeparator(),
		)
	}
	state.filtersBox.Objects = objs
	state.filtersBox.Refresh()
}

// optionLabels returns one check label per option, aligned with opts. The null label
// is reserved for nulls; a value whose text clashes with it or with an earlier label
// is quoted until it is unique.
func optionLabels(opts []table.Value) []string {
	used := make(map[string]bool, len(opts))
	labels := make([]string, len(opts))
	for i, v := range opts {
		l := v.String()
		if !v.Null && l == table.NullLabel {
			l = strconv.Quote(l)
		}
		for used[l] {
			l = strconv.Quote(l)
		}
		used[l] = true
		labels[i] = l
	}
	return labels
}

// filterOptions returns the display labels of col's values and a label to key map.
func filterOptions(res *dashboard.Result, col string) ([]string, map[string]string) {
	opts := res.Options[col]
	labels := optionLabels(opts)
	keyOf := make(map[string]string, len(opts))
	for i, v := range opts {
		keyOf[labels[i]] = v.Key()
	}
	return labels, keyOf
}

func selectedLabels(res *dashboard.Result, col string) []string {
	selected := map[string]bool{}
	for _, k := range res.Selection[col] {
		selected[k] = true
	}
	opts := res.Options[col]
	labels := optionLabels(opts)
	out := []string{}
	for i, v := range opts {
		if selected[v.Key()] {
			out = append(out, labels[i])
		}
	}
	return out
}

func labelsToKeys(labels []string, keyOf map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for _, l := range labels {
		if k, ok := keyOf[l]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func rebuildCards(state *uiState) {
	metrics := state.res.Metrics
	if len(metrics) == 0 {
		state.cardsBox.Objects = nil
		state.cardsBox.Refresh()
		return
	}
	cards := make([]fyne.CanvasObject, 0, len(metrics))
	for _, m := range metrics {
		cards = append(cards, widget.NewCard(m.Label(), m.Help(), nil))
	}
	cols := uihelpers.ComputeCardColumns(windowWidth(state), len(cards))
	state.cardsBox.Objects = []fyne.CanvasObject{
		widget.NewLabelWithStyle("Maximum values", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWithColumns(cols, cards...),
	}
	state.cardsBox.Refresh()
}

func rebuildDataset(state *uiState) {
	res := state.res
	state.datasetLabel.SetText(fmt.Sprintf("Showing %d of %d filtered rows (%d total)",
		min(res.View.Len(), maxTableRows), res.View.Len(), res.Table.Len()))

	state.columnsGroup.OnChanged = nil
	state.columnsGroup.Options = res.Table.ColumnNames()
	state.columnsGroup.Selected = append([]string{}, res.VisibleColumns...)
	state.columnsGroup.Refresh()
	state.columnsGroup.OnChanged = func(sel []string) {
		cols := append([]string{}, sel...)
		reload(state, func(s *session.Session) { s.SetVisibleColumns(cols) })
	}

	for i, w := range uihelpers.ComputeTableColumnWidths(windowWidth(state), len(res.VisibleColumns)) {
		state.table.SetColumnWidth(i, float32(w))
	}
	state.table.Refresh()
}

// cellText returns the dataset table text; row 0 is the header.
func cellText(res *dashboard.Result, row, col int) string {
	if res == nil || res.Halted() || col < 0 || col >= len(res.VisibleColumns) {
		return ""
	}
	name := res.VisibleColumns[col]
	if row == 0 {
		return name
	}
	if row-1 >= res.View.Len() {
		return ""
	}
	return res.View.Value(row-1, name).String()
}

func rebuildChartTabs(state *uiState) {
	prev := state.chartTabs.SelectedIndex()
	w, h := chartSize(state)
	opts := render.Options{Width: w, Height: h, Hints: state.showHints}
	items := make([]*container.TabItem, 0, len(state.charts))
	state.chartImages = state.chartImages[:0]
	for _, spec := range state.charts {
		img := canvas.NewImageFromImage(render.Image(spec, opts))
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(float32(w), float32(h)))
		state.chartImages = append(state.chartImages, img)
		items = append(items, container.NewTabItem(uihelpers.TruncateMiddle(spec.Title, 40), container.NewScroll(img)))
	}
	state.chartTabs.SetItems(items)
	if prev >= 0 && prev < len(items) {
		state.chartTabs.SelectIndex(prev)
	}
}

// redrawCharts re-renders the current charts at the current size without rerunning
// the pipeline.
func redrawCharts(state *uiState) {
	if len(state.chartImages) != len(state.charts) {
		rebuildChartTabs(state)
		return
	}
	w, h := chartSize(state)
	opts := render.Options{Width: w, Height: h, Hints: state.showHints}
	for i, spec := range state.charts {
		img := state.chartImages[i]
		img.Image = render.Image(spec, opts)
		img.SetMinSize(fyne.NewSize(float32(w), float32(h)))
		img.Refresh()
	}
}

func windowWidth(state *uiState) float32 {
	if state == nil || state.window == nil || state.window.Canvas() == nil {
		return 0
	}
	return state.window.Canvas().Size().Width
}

// chartSize computes a chart size from the main column width (the window minus the sidebar).
func chartSize(state *uiState) (int, int) {
	ww := windowWidth(state)
	if ww <= 0 {
		return uihelpers.ComputeChartDimensions(900)
	}
	return uihelpers.ComputeChartDimensions(int(ww*0.75) - 24)
}

// watchResize redraws charts when the window width changes.
func watchResize(state *uiState, done <-chan struct{}) {
	prevW := int(windowWidth(state))
	go func() {
		t := time.NewTicker(300 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				fyne.Do(func() {
					curW := int(windowWidth(state))
					if curW != prevW {
						prevW = curW
						redrawCharts(state)
					}
				})
			}
		}
	}()
}

// export PNG
func exportChartPNG(state *uiState) {
	idx := state.chartTabs.SelectedIndex()
	if idx < 0 || idx >= len(state.chartImages) || state.chartImages[idx].Image == nil {
		dialog.ShowInformation("Export", "No chart to export.", state.window)
		return
	}
	img := state.chartImages[idx].Image
	fsd := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		if err := encodePNG(wc, img); err != nil {
			dialog.ShowError(err, state.window)
		}
	}, state.window)
	fsd.SetFileName(state.charts[idx].FileName() + ".png")
	fsd.Show()
}

func encodePNG(wc fyne.URIWriteCloser, img image.Image) error {
	if err := png.Encode(wc, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// recent URL helpers
func recentURLs(state *uiState) []string {
	raw := state.app.Preferences().StringWithFallback("recentURLs", "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, "\n") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func addRecentURL(state *uiState, u string) {
	filtered := []string{u}
	for _, r := range recentURLs(state) {
		if r != u && len(filtered) < 10 {
			filtered = append(filtered, r)
		}
	}
	state.app.Preferences().SetString("recentURLs", strings.Join(filtered, "\n"))
}

func clearRecentURLs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	state.app.Preferences().SetString("recentURLs", "")
}

// prefs
func savePrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	prefs.SetString("lastURL", strings.TrimSpace(state.urlEntry.Text))
	prefs.SetBool("showHints", state.showHints)
}

func loadPrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	if u := prefs.StringWithFallback("lastURL", ""); u != "" {
		state.urlEntry.SetText(u)
	}
	state.showHints = prefs.BoolWithFallback("showHints", state.showHints)
	state.hintsChk.SetChecked(state.showHints)
}
