package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/zenriquezs/APIReader/src/analysis"
	"github.com/zenriquezs/APIReader/src/config"
	"github.com/zenriquezs/APIReader/src/dashboard"
	"github.com/zenriquezs/APIReader/src/fetcher"
	"github.com/zenriquezs/APIReader/src/table"
)

func main() {
	cmd := &cli.Command{
		Name:  "apischema",
		Usage: "print the detected column kinds of a JSON array (URL or local file)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "API URL", Sources: cli.EnvVars("APIDASH_URL")},
			&cli.StringFlag{Name: "file", Usage: "read a local JSON file instead of fetching"},
			&cli.StringFlag{Name: "config", Usage: "config file", Sources: cli.EnvVars("APIDASH_CONFIG")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var (
				t   *table.Table
				err error
			)
			if path := cmd.String("file"); path != "" {
				t, err = loadFile(path)
			} else {
				t, err = fetchTable(ctx, cmd.String("config"), cmd.String("url"))
			}
			if err != nil {
				return err
			}
			return describe(cmd.Root().Writer, t)
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadFile(path string) (*table.Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := table.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func fetchTable(ctx context.Context, cfgPath, url string) (*table.Table, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if url == "" {
		url = cfg.URL
	}
	resp, err := fetcher.New(dashboard.FetchOptions(cfg)).Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	for _, w := range resp.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}
	return resp.Table, nil
}

// describe prints one line per column followed by the categorical/numeric split.
func describe(w io.Writer, t *table.Table) error {
	if t == nil || t.IsEmpty() {
		return errors.New("no rows")
	}
	c := analysis.Classify(t)
	roles := map[string]string{}
	for _, n := range c.Numeric {
		roles[n] = "numeric"
	}
	for _, n := range c.Categorical {
		if roles[n] != "" {
			roles[n] = "categorical+numeric"
		} else {
			roles[n] = "categorical"
		}
	}

	fmt.Fprintf(w, "Rows: %d  Columns: %d\n", t.Len(), t.NumColumns())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tKIND\tNULLS\tDISTINCT\tROLE")
	all := t.All()
	for i := 0; i < t.NumColumns(); i++ {
		col := t.ColumnAt(i)
		role := roles[col.Name]
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", col.Name, col.Kind, col.NullCount(), len(all.Distinct(col.Name)), role)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if c.CategoricalFallback {
		fmt.Fprintf(w, "No text columns: %q is used as the category.\n", c.Categorical[0])
	}
	if c.NumericFallback {
		fmt.Fprintf(w, "No numeric columns: %q is used as the value.\n", c.Numeric[0])
	}
	return nil
}
