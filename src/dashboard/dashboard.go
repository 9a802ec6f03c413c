// Package dashboard runs the full fetch, classify, filter, summarize and chart
// pipeline for one session and packs the outcome into a Result for presentation.
package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/config"
	"github.com/zenriquezs/APIReader/src/fetcher"
	"github.com/zenriquezs/APIReader/src/logging"
	"github.com/zenriquezs/APIReader/src/metrics"
	"github.com/zenriquezs/APIReader/src/session"
	"github.com/zenriquezs/APIReader/src/table"
)

// Level is the severity of a status message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Message is one line of the status area.
type Message struct {
	Level Level
	Text  string
}

// Fetcher is the data source of the pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Response, error)
}

// Result is everything the presentation layer needs for one run. When Halted is
// true only URL, Status, Err and Diagnostics are set.
type Result struct {
	URL         string
	Status      []Message
	Err         error
	Diagnostics fetcher.Diagnostics

	Table          *table.Table
	Classification analysis.Classification
	// Options lists the selectable values of each categorical column.
	Options        map[string][]table.Value
	Selection      analysis.Selection
	View           *table.View
	VisibleColumns []string
	Metrics        []analysis.Metric
	Charts         []analysis.ChartSpec
	Elapsed        time.Duration
}

// Halted reports whether the run stopped before producing data.
func (r *Result) Halted() bool { return r.Table == nil }

// ErrorKind is the fetcher kind of Err.
func (r *Result) ErrorKind() fetcher.Kind { return fetcher.KindOf(r.Err) }

// Dashboard ties a Fetcher to the analysis stages.
type Dashboard struct {
	fetcher Fetcher
	metrics *metrics.Metrics
}

// New builds a Dashboard. m may be nil.
func New(f Fetcher, m *metrics.Metrics) *Dashboard {
	return &Dashboard{fetcher: f, metrics: m}
}

// NewFromConfig builds a Dashboard with an HTTP fetcher configured from cfg.
func NewFromConfig(cfg config.Config, m *metrics.Metrics) *Dashboard {
	return New(fetcher.New(FetchOptions(cfg)), m)
}

// FetchOptions maps the fetch section of the configuration onto fetcher options.
func FetchOptions(cfg config.Config) fetcher.Options {
	return fetcher.Options{
		Timeout:          cfg.Fetch.Timeout,
		InsecureFallback: cfg.Fetch.InsecureFallback,
		MaxBodyBytes:     cfg.Fetch.MaxBodyBytes,
		UserAgent:        cfg.Fetch.UserAgent,
		GeoIP:            cfg.Fetch.GeoIP,
		GeoIPCountryDB:   cfg.Fetch.GeoIPCountryDB,
		GeoIPASNDB:       cfg.Fetch.GeoIPASNDB,
	}
}

// Run executes the pipeline from the top using the session's URL and selections.
// It never panics on bad input; every failure ends up in Result.Status. The caller
// must hold the session lock if the session is shared.
func (d *Dashboard) Run(ctx context.Context, sess *session.Session) *Result {
	start := time.Now()
	res := &Result{URL: sess.URL()}
	defer func() {
		res.Elapsed = time.Since(start)
		sess.LastRun = time.Now()
	}()

	resp, err := d.fetcher.Fetch(ctx, res.URL)
	if err == nil && (resp == nil || resp.Table == nil) {
		err = &fetcher.EmptyResultError{URL: res.URL}
	}
	if resp != nil {
		res.Diagnostics = resp.Diagnostics
		for _, w := range resp.Warnings {
			res.Status = append(res.Status, Message{Level: LevelWarning, Text: warningText(w)})
		}
	}
	d.metrics.ObserveFetch(fetcher.KindOf(err).String(), res.Diagnostics.Elapsed, res.Diagnostics.InsecureFallback)
	if err != nil {
		res.Err = err
		res.Status = append(res.Status, errorMessage(err))
		if fetcher.KindOf(err) == fetcher.KindMissingInput || fetcher.KindOf(err) == fetcher.KindEmptyResult {
			d.metrics.ObserveRun("halted")
		} else {
			d.metrics.ObserveRun("error")
		}
		return res
	}

	t := resp.Table
	d.metrics.ObserveTable(t.Len(), t.NumColumns())
	res.Table = t
	res.Classification = analysis.Classify(t)
	res.Options = analysis.Options(t, res.Classification.Categorical)
	res.Selection = sess.ResolveSelection(t, res.Classification.Categorical)
	res.View = analysis.Filter(t.All(), res.Selection)
	res.VisibleColumns = sess.ResolveVisibleColumns(t.ColumnNames())
	res.Metrics = analysis.Summarize(res.View, res.Classification.Numeric)
	res.Charts = analysis.BuildCharts(res.View, res.Classification.Categorical, res.Classification.Numeric)

	if res.View.Len() == 0 {
		res.Status = append(res.Status, Message{Level: LevelInfo, Text: "No rows match the current filters."})
	}
	logging.Infof("[dashboard] %s rows=%d filtered=%d categorical=%v numeric=%v charts=%d",
		res.URL, t.Len(), res.View.Len(), res.Classification.Categorical, res.Classification.Numeric, len(res.Charts))
	d.metrics.ObserveRun("ok")
	return res
}

func warningText(err error) string {
	var tlsErr *fetcher.TLSError
	if errors.As(err, &tlsErr) {
		return "SSL error: certificate verification failed (" + tlsErr.Err.Error() + "); data was loaded without verification."
	}
	return err.Error()
}

func errorMessage(err error) Message {
	switch fetcher.KindOf(err) {
	case fetcher.KindMissingInput:
		return Message{Level: LevelWarning, Text: "URL required. Please enter the API URL."}
	case fetcher.KindTLS:
		return Message{Level: LevelError, Text: "SSL error: check the server's certificate configuration. " + err.Error()}
	case fetcher.KindEmptyResult:
		return Message{Level: LevelWarning, Text: "The API returned no data."}
	default:
		return Message{Level: LevelError, Text: "Error fetching data from the API: " + err.Error()}
	}
}
