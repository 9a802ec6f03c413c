package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/zenriquezs/APIReader/src/config"
	"github.com/zenriquezs/APIReader/src/dashboard"
	"github.com/zenriquezs/APIReader/src/render"
	"github.com/zenriquezs/APIReader/src/session"
)

// RunScreenshotsMode fetches url once and writes every chart as a PNG under outDir.
// It runs headlessly without creating a UI window.
func RunScreenshotsMode(ctx context.Context, cfg config.Config, url, outDir string) ([]string, error) {
	if url == "" {
		url = cfg.URL
	}
	sess := session.New()
	sess.SetURL(url)
	res := dashboard.NewFromConfig(cfg, nil).Run(ctx, sess)
	if res.Halted() {
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, errors.New("no data")
	}
	if len(res.Charts) == 0 {
		return nil, fmt.Errorf("no charts for %s: need at least one categorical and one numeric column", url)
	}
	w, h := chartSize(nil)
	return render.WriteFiles(outDir, res.Charts, render.PNG, render.Options{Width: w, Height: h, Hints: cfg.Charts.Hints})
}
