// apidash entrypoint.
//
// Commands:
//  1. serve: browser dashboard, one pipeline state per session cookie.
//  2. report: fetch once, print the detected schema, maxima and chart list (text or JSON).
//  3. render: fetch once and write every chart as PNG or SVG into a directory.
//
// Settings come from defaults, an optional apidash.{yaml,json,toml}, APIDASH_* environment
// variables (a .env file in the working directory is loaded first) and finally flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli/v3"

	"github.com/zenriquezs/APIReader/src/config"
	"github.com/zenriquezs/APIReader/src/dashboard"
	"github.com/zenriquezs/APIReader/src/logging"
	"github.com/zenriquezs/APIReader/src/metrics"
	"github.com/zenriquezs/APIReader/src/render"
	"github.com/zenriquezs/APIReader/src/server"
	"github.com/zenriquezs/APIReader/src/session"
	"github.com/zenriquezs/APIReader/src/table"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warnf("[main] .env: %v", err)
	}
	if err := newApp().Run(ctx, os.Args); err != nil {
		logging.Errorf("[main] %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	urlFlag := &cli.StringFlag{
		Name:    "url",
		Aliases: []string{"u"},
		Usage:   "API endpoint returning a JSON array of records",
		Sources: cli.EnvVars("APIDASH_URL"),
	}
	filterFlag := &cli.StringSliceFlag{
		Name:  "filter",
		Usage: "keep rows where `COLUMN=VALUE` (repeat to allow several values; (null) selects missing values, a leading \\ takes VALUE literally)",
	}

	return &cli.Command{
		Name:  "apidash",
		Usage: "JSON API data dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (default: apidash.* in ., ./configs, $HOME/.apidash, /etc/apidash)",
				Sources: cli.EnvVars("APIDASH_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the dashboard over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address (overrides server.addr)"},
					urlFlag,
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					if cmd.IsSet("addr") {
						cfg.Server.Addr = cmd.String("addr")
					}
					return serve(ctx, cfg)
				},
			},
			{
				Name:  "report",
				Usage: "fetch once and print the summary",
				Flags: []cli.Flag{
					urlFlag,
					filterFlag,
					&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					sess, err := newSession(cfg.URL, cmd.StringSlice("filter"))
					if err != nil {
						return err
					}
					res := dashboard.NewFromConfig(cfg, nil).Run(ctx, sess)
					out := cmd.Root().Writer
					if cmd.Bool("json") {
						err = writeReportJSON(out, res)
					} else {
						err = writeReportText(out, res)
					}
					if err != nil {
						return err
					}
					return runError(res)
				},
			},
			{
				Name:  "render",
				Usage: "fetch once and write the charts to files",
				Flags: []cli.Flag{
					urlFlag,
					filterFlag,
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "charts", Usage: "output directory"},
					&cli.StringFlag{Name: "format", Value: "png", Usage: "png or svg"},
					&cli.IntFlag{Name: "width", Usage: "image width (overrides charts.width)"},
					&cli.IntFlag{Name: "height", Usage: "image height (overrides charts.height)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := loadConfig(cmd)
					if err != nil {
						return err
					}
					format, err := render.ParseFormat(cmd.String("format"))
					if err != nil {
						return err
					}
					if cmd.IsSet("width") {
						cfg.Charts.Width = int(cmd.Int("width"))
					}
					if cmd.IsSet("height") {
						cfg.Charts.Height = int(cmd.Int("height"))
					}
					sess, err := newSession(cfg.URL, cmd.StringSlice("filter"))
					if err != nil {
						return err
					}
					res := dashboard.NewFromConfig(cfg, nil).Run(ctx, sess)
					if err := runError(res); err != nil {
						return err
					}
					opts := render.Options{Width: cfg.Charts.Width, Height: cfg.Charts.Height, Hints: cfg.Charts.Hints}
					paths, err := render.WriteFiles(cmd.String("out"), res.Charts, format, opts)
					for _, p := range paths {
						fmt.Fprintln(cmd.Root().Writer, p)
					}
					return err
				},
			},
		},
	}
}

// loadConfig reads file and env settings, then applies the global and url flags.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("url") {
		cfg.URL = cmd.String("url")
	}
	logging.SetLogLevel(cfg.Log.Level)
	logging.SetFormat(cfg.Log.Format)
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	srv, err := server.New(cfg, dashboard.NewFromConfig(cfg, m), m)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	logging.Infof("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// newSession builds a one-shot session from a URL and COLUMN=VALUE filters.
func newSession(url string, filters []string) (*session.Session, error) {
	sess := session.New()
	sess.SetURL(url)
	sel, err := parseFilters(filters)
	if err != nil {
		return nil, err
	}
	for col, keys := range sel {
		sess.SetSelection(col, keys)
	}
	return sess, nil
}

func parseFilters(filters []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, f := range filters {
		col, val, ok := strings.Cut(f, "=")
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q, want COLUMN=VALUE", f)
		}
		switch {
		case val == table.NullLabel:
			val = table.NullKey
		case strings.HasPrefix(val, `\`):
			val = val[1:]
		}
		out[col] = append(out[col], val)
	}
	return out, nil
}

// runError turns a halted run into a command error. Warnings such as a missing URL
// or an empty result still fail the command since nothing was produced.
func runError(res *dashboard.Result) error {
	if !res.Halted() {
		return nil
	}
	if len(res.Status) > 0 {
		return errors.New(res.Status[len(res.Status)-1].Text)
	}
	return errors.New("no data")
}

func writeReportText(w io.Writer, res *dashboard.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", res.URL)
	for _, m := range res.Status {
		fmt.Fprintf(&b, "[%s] %s\n", m.Level, m.Text)
	}
	if !res.Halted() {
		fmt.Fprintf(&b, "Rows: %d (filtered %d)\n", res.Table.Len(), res.View.Len())
		fmt.Fprintf(&b, "Categorical: %s\n", strings.Join(res.Classification.Categorical, ", "))
		fmt.Fprintf(&b, "Numeric: %s\n", strings.Join(res.Classification.Numeric, ", "))
		cols := make([]string, 0, len(res.Selection))
		for c := range res.Selection {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			labels := make([]string, len(res.Selection[c]))
			for i, k := range res.Selection[c] {
				labels[i] = table.LabelForKey(k)
			}
			fmt.Fprintf(&b, "Filter %s: %s\n", c, strings.Join(labels, ", "))
		}
		b.WriteString("Maximum values:\n")
		for _, m := range res.Metrics {
			fmt.Fprintf(&b, "  %-20s %s\n", m.Column, m.Label())
		}
		b.WriteString("Charts:\n")
		for _, c := range res.Charts {
			fmt.Fprintf(&b, "  %-10s %s\n", c.Kind, c.Title)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type reportColumn struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Nulls int    `json:"nulls"`
}

type reportMetric struct {
	Column string   `json:"column"`
	Max    *float64 `json:"max"`
	Label  string   `json:"label"`
}

type reportChart struct {
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Column string `json:"column"`
	Group  string `json:"group,omitempty"`
}

type reportMessage struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

type report struct {
	URL          string              `json:"url"`
	Halted       bool                `json:"halted"`
	Status       []reportMessage     `json:"status"`
	Rows         int                 `json:"rows"`
	FilteredRows int                 `json:"filtered_rows"`
	Columns      []reportColumn      `json:"columns"`
	Categorical  []string            `json:"categorical"`
	Numeric      []string            `json:"numeric"`
	Selection    map[string][]string `json:"selection,omitempty"`
	Metrics      []reportMetric      `json:"metrics"`
	Charts       []reportChart       `json:"charts"`
	ElapsedMS    int64               `json:"elapsed_ms"`
	RemoteIP     string              `json:"remote_ip,omitempty"`
	StatusCode   int                 `json:"status_code,omitempty"`
	Insecure     bool                `json:"tls_unverified,omitempty"`
}

func buildReport(res *dashboard.Result) report {
	r := report{
		URL:        res.URL,
		Halted:     res.Halted(),
		Status:     []reportMessage{},
		Columns:    []reportColumn{},
		Metrics:    []reportMetric{},
		Charts:     []reportChart{},
		ElapsedMS:  res.Elapsed.Milliseconds(),
		RemoteIP:   res.Diagnostics.RemoteIP,
		StatusCode: res.Diagnostics.StatusCode,
		Insecure:   res.Diagnostics.InsecureFallback,
	}
	for _, m := range res.Status {
		r.Status = append(r.Status, reportMessage{Level: m.Level.String(), Text: m.Text})
	}
	if res.Halted() {
		return r
	}
	r.Rows = res.Table.Len()
	r.FilteredRows = res.View.Len()
	r.Categorical = res.Classification.Categorical
	r.Numeric = res.Classification.Numeric
	for i := 0; i < res.Table.NumColumns(); i++ {
		c := res.Table.ColumnAt(i)
		r.Columns = append(r.Columns, reportColumn{Name: c.Name, Kind: c.Kind.String(), Nulls: c.NullCount()})
	}
	if len(res.Selection) > 0 {
		r.Selection = map[string][]string{}
		for col, keys := range res.Selection {
			labels := make([]string, len(keys))
			for i, k := range keys {
				labels[i] = table.LabelForKey(k)
			}
			r.Selection[col] = labels
		}
	}
	for _, m := range res.Metrics {
		rm := reportMetric{Column: m.Column, Label: m.Label()}
		if m.OK {
			v := m.Max
			rm.Max = &v
		}
		r.Metrics = append(r.Metrics, rm)
	}
	for _, c := range res.Charts {
		r.Charts = append(r.Charts, reportChart{Kind: c.Kind.String(), Title: c.Title, Column: c.Column, Group: c.GroupColumn})
	}
	return r
}

func writeReportJSON(w io.Writer, res *dashboard.Result) error {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(buildReport(res), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
