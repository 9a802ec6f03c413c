package logging

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	saved, savedLevel := baseLogger, GetLogLevel()
	baseLogger = newLogger(&buf)
	t.Cleanup(func() {
		baseLogger = saved
		atomic.StoreInt32(&currentLevel, int32(savedLevel))
	})
	return &buf
}

func TestInfof_NoDoubleFormattingWithPercent(t *testing.T) {
	buf := capture(t)
	SetLogLevel("info")

	msg := "[https://api.example.com/sales] fetched rows=120 cols=4 (100.0% of 64MiB cap) took=283ms"
	Infof("%s", msg)

	out := buf.String()
	if !strings.Contains(out, "(100.0% of 64MiB cap)") {
		t.Fatalf("log output missing expected percent segment: %s", out)
	}
	if strings.Contains(out, "%!") {
		t.Fatalf("log output still shows fmt artifact: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLogLevel("warn")
	assert.Equal(t, LevelWarn, GetLogLevel())

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "warn 3")
	assert.Contains(t, out, "error 4")

	SetLogLevel("nonsense")
	assert.Equal(t, LevelWarn, GetLogLevel())
}

func TestJSONFormatAndFields(t *testing.T) {
	buf := capture(t)
	SetLogLevel("debug")
	SetFormat("json")

	WithFields(map[string]interface{}{"url": "https://x"}).Info("fetched")
	TimeTrack(time.Now(), "classify")

	out := buf.String()
	assert.Contains(t, out, `"url":"https://x"`)
	assert.Contains(t, out, `"msg":"fetched"`)
	assert.Contains(t, out, "classify took")
}
