// Package server serves the dashboard as a browser page with per-session state.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/config"
	"github.com/zenriquezs/APIReader/src/dashboard"
	"github.com/zenriquezs/APIReader/src/fetcher"
	"github.com/zenriquezs/APIReader/src/logging"
	"github.com/zenriquezs/APIReader/src/metrics"
	"github.com/zenriquezs/APIReader/src/render"
	"github.com/zenriquezs/APIReader/src/session"
	"github.com/zenriquezs/APIReader/src/table"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// maxTableRows caps the dataset rows rendered into the page.
const maxTableRows = 500

// Server is the HTTP front end.
type Server struct {
	cfg     config.Config
	dash    *dashboard.Dashboard
	store   *session.Store
	metrics *metrics.Metrics
	tmpl    *template.Template

	httpServer *http.Server
	ln         net.Listener
}

// New wires a server. m may be nil, in which case /metrics is not served.
func New(cfg config.Config, dash *dashboard.Dashboard, m *metrics.Metrics) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/dashboard.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{cfg: cfg, dash: dash, metrics: m, tmpl: tmpl}
	s.store = session.NewStore(cfg.Server.SessionTTL, m.SetSessions)
	return s, nil
}

// Handler returns the routing mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("POST /{$}", s.handleUpdate)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// Start listens on cfg.Server.Addr and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.Addr, err)
	}
	s.ln = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.store.Start()
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("[server] serve: %v", err)
		}
	}()
	logging.Infof("[server] listening on http://%s", ln.Addr())
	return nil
}

// Addr is the bound address after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.store.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	id := ""
	if c, err := r.Cookie(s.cfg.Server.CookieName); err == nil {
		id = c.Value
	}
	sess, created := s.store.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     s.cfg.Server.CookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		if s.cfg.URL != "" {
			sess.SetURL(s.cfg.URL)
		}
	}
	return sess
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	res := s.dash.Run(r.Context(), sess)
	sess.Unlock()

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "dashboard.html.tmpl", s.page(res)); err != nil {
		logging.Errorf("[server] render page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form: "+err.Error(), http.StatusBadRequest)
		return
	}
	sess := s.session(w, r)
	sess.Lock()
	applyForm(sess, r)
	sess.Unlock()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// applyForm copies the form into the session. A new URL discards the old filters, so
// the submitted filter values are ignored in that case.
func applyForm(sess *session.Session, r *http.Request) {
	if sess.SetURL(strings.TrimSpace(r.PostForm.Get("url"))) {
		return
	}
	for _, col := range r.PostForm["filter_cols"] {
		keys := []string{}
		for _, fk := range r.PostForm["f."+col] {
			if k, ok := decodeKey(fk); ok {
				keys = append(keys, k)
			}
		}
		sess.SetSelection(col, keys)
	}
	if r.PostForm.Get("columns_present") != "" {
		cols := r.PostForm["col"]
		if cols == nil {
			cols = []string{}
		}
		sess.SetVisibleColumns(cols)
	}
}

// Value keys travel through form fields with a prefix, since the null key holds a NUL
// byte that HTML cannot carry.
func encodeKey(k string) string {
	if k == table.NullKey {
		return "n:"
	}
	return "v:" + k
}

func decodeKey(fk string) (string, bool) {
	switch {
	case fk == "n:":
		return table.NullKey, true
	case strings.HasPrefix(fk, "v:"):
		return fk[2:], true
	default:
		return "", false
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Lock()
	sess.Reset()
	sess.Unlock()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type statusView struct {
	Level string
	Text  string
}

type optionView struct {
	Key     string
	Label   string
	Checked bool
}

type filterView struct {
	Column  string
	Options []optionView
}

type columnView struct {
	Name    string
	Checked bool
}

type metricView struct {
	Column string
	Label  string
	Help   string
}

type chartView struct {
	Title string
	SVG   template.HTML
}

type pageData struct {
	URL          string
	Halted       bool
	Status       []statusView
	Filters      []filterView
	Metrics      []metricView
	Columns      []columnView
	Header       []string
	Rows         [][]string
	ShownRows    int
	FilteredRows int
	TotalRows    int
	Charts       []chartView
	Diagnostics  fetcher.Diagnostics
}

func (s *Server) page(res *dashboard.Result) pageData {
	p := pageData{URL: res.URL, Halted: res.Halted(), Diagnostics: res.Diagnostics}
	for _, m := range res.Status {
		p.Status = append(p.Status, statusView{Level: m.Level.String(), Text: m.Text})
	}
	if res.Halted() {
		return p
	}
	for _, col := range res.Classification.Categorical {
		selected := map[string]bool{}
		for _, k := range res.Selection[col] {
			selected[k] = true
		}
		fv := filterView{Column: col}
		for _, v := range res.Options[col] {
			fv.Options = append(fv.Options, optionView{Key: encodeKey(v.Key()), Label: v.String(), Checked: selected[v.Key()]})
		}
		p.Filters = append(p.Filters, fv)
	}
	for _, m := range res.Metrics {
		p.Metrics = append(p.Metrics, metricView{Column: m.Column, Label: m.Label(), Help: m.Help()})
	}
	visible := map[string]bool{}
	for _, c := range res.VisibleColumns {
		visible[c] = true
	}
	for _, c := range res.Table.ColumnNames() {
		p.Columns = append(p.Columns, columnView{Name: c, Checked: visible[c]})
	}
	p.Header = res.VisibleColumns
	p.TotalRows = res.Table.Len()
	p.FilteredRows = res.View.Len()
	p.ShownRows = min(p.FilteredRows, maxTableRows)
	for i := 0; i < p.ShownRows; i++ {
		row := make([]string, len(res.VisibleColumns))
		for j, c := range res.VisibleColumns {
			row[j] = res.View.Value(i, c).String()
		}
		p.Rows = append(p.Rows, row)
	}
	opts := render.Options{Width: s.cfg.Charts.Width, Height: s.cfg.Charts.Height}
	for _, spec := range res.Charts {
		p.Charts = append(p.Charts, chartView{Title: spec.Title, SVG: chartSVG(spec, opts)})
	}
	return p
}

func chartSVG(spec analysis.ChartSpec, opts render.Options) template.HTML {
	var buf bytes.Buffer
	if err := render.Render(&buf, spec, render.SVG, opts); err != nil {
		if !errors.Is(err, render.ErrNoData) {
			logging.Warnf("[server] chart %q: %v", spec.Title, err)
		}
		return template.HTML("<p>" + template.HTMLEscapeString(spec.Title) + ": no data to plot.</p>")
	}
	// render.Render escapes every label it writes into SVG
	return template.HTML(buf.String()) //nolint:gosec
}
