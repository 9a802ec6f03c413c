// Package fetcher retrieves a JSON array from a remote endpoint and turns it into a
// table.Table, classifying every failure into one of the error types in errors.go.
package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/zenriquezs/APIReader/src/logging"
	"github.com/zenriquezs/APIReader/src/table"
)

// Options tune the HTTP client. Zero values fall back to the defaults below.
type Options struct {
	Timeout          time.Duration
	InsecureFallback bool
	MaxBodyBytes     int64
	UserAgent        string
	// RootCAs replaces the system pool for verification (tests, private CAs).
	RootCAs        *x509.CertPool
	GeoIP          bool
	GeoIPCountryDB string
	GeoIPASNDB     string
}

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 64 << 20
	DefaultUserAgent    = "apidash/1.0"
)

// Diagnostics is best-effort telemetry about the last attempt.
type Diagnostics struct {
	URL          string
	RemoteIP     string
	HTTPProtocol string
	TLSVersion   string
	TLSCipher    string
	StatusCode   int
	ContentType  string
	Elapsed      time.Duration
	// Phase timings of the last attempt; zero when the phase did not happen
	// (reused connection, plain HTTP, IP literal host).
	DNS              time.Duration
	Connect          time.Duration
	TLSHandshake     time.Duration
	TTFB             time.Duration
	Bytes            int64
	InsecureFallback bool
	CountryGeoIP     string
	ASNNumber        uint
	ASNOrg           string
}

// Response is what Fetch produced. Table is nil on error. Warnings carries soft
// failures that did not stop the fetch (a TLS error recovered by the insecure retry).
type Response struct {
	Table       *table.Table
	Diagnostics Diagnostics
	Warnings    []error
}

// Fetcher performs one GET per call; it holds no per-request state.
type Fetcher struct {
	opts     Options
	secure   *http.Client
	insecure *http.Client
}

// New builds a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Fetcher{
		opts:     opts,
		secure:   newClient(opts.Timeout, &tls.Config{RootCAs: opts.RootCAs}),
		insecure: newClient(opts.Timeout, &tls.Config{InsecureSkipVerify: true}), //nolint:gosec // explicit opt-in fallback
	}
}

func newClient(timeout time.Duration, tlsCfg *tls.Config) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Options returns the effective options.
func (f *Fetcher) Options() Options { return f.opts }

// Fetch downloads rawURL and decodes it. The returned Response is never nil.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	defer logging.TimeTrack(time.Now(), "fetch")
	target := strings.TrimSpace(rawURL)
	resp := &Response{Diagnostics: Diagnostics{URL: target}}
	if target == "" {
		logging.Warnf("fetch skipped: URL required")
		return resp, MissingInputError{}
	}
	if err := validateURL(target); err != nil {
		logging.Warnf("[%s] invalid URL: %v", target, err)
		return resp, &TransportError{URL: target, Err: err}
	}

	tbl, err := f.attempt(ctx, f.secure, target, &resp.Diagnostics)
	if err != nil && isCertError(err) {
		tlsErr := &TLSError{URL: target, Err: err}
		if !f.opts.InsecureFallback {
			logging.Errorf("[%s] %v", target, tlsErr)
			return resp, tlsErr
		}
		logging.Warnf("[%s] %v; retrying without certificate verification", target, tlsErr)
		resp.Warnings = append(resp.Warnings, tlsErr)
		resp.Diagnostics = Diagnostics{URL: target, InsecureFallback: true}
		tbl, err = f.attempt(ctx, f.insecure, target, &resp.Diagnostics)
	}
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{URL: target, Err: err}
		}
		logging.Errorf("[%s] fetch failed: %v", target, err)
		return resp, err
	}
	if tbl.IsEmpty() {
		err := &EmptyResultError{URL: target, Rows: tbl.Len(), Columns: tbl.NumColumns()}
		logging.Warnf("[%s] %v", target, err)
		return resp, err
	}
	f.geoip(&resp.Diagnostics)
	resp.Table = tbl
	logging.WithFields(map[string]interface{}{
		"url":     target,
		"rows":    tbl.Len(),
		"columns": tbl.NumColumns(),
		"proto":   resp.Diagnostics.HTTPProtocol,
		"elapsed": resp.Diagnostics.Elapsed.String(),
	}).Info("fetched")
	return resp, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q (want http or https)", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// attempt performs one GET with client. Errors from the client itself are returned
// unwrapped so the caller can tell certificate failures apart.
func (f *Fetcher) attempt(ctx context.Context, client *http.Client, target string, d *Diagnostics) (*table.Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	var dnsStartT, connStartT, tlsStartT time.Time
	trace := &httptrace.ClientTrace{
		DNSStart:          func(httptrace.DNSStartInfo) { dnsStartT = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { d.DNS = time.Since(dnsStartT) },
		ConnectStart:      func(string, string) { connStartT = time.Now() },
		ConnectDone:       func(string, string, error) { d.Connect = time.Since(connStartT) },
		TLSHandshakeStart: func() { tlsStartT = time.Now() },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { d.TLSHandshake = time.Since(tlsStartT) },
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Conn == nil {
				return
			}
			if host, _, err := net.SplitHostPort(info.Conn.RemoteAddr().String()); err == nil {
				d.RemoteIP = host
			}
		},
		GotFirstResponseByte: func() { d.TTFB = time.Since(start) },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	res, err := client.Do(req)
	if err != nil {
		d.Elapsed = time.Since(start)
		return nil, err
	}
	defer res.Body.Close()

	d.StatusCode = res.StatusCode
	d.HTTPProtocol = res.Proto
	d.ContentType = res.Header.Get("Content-Type")
	if res.TLS != nil {
		d.TLSVersion = tlsVersionName(res.TLS.Version)
		d.TLSCipher = tls.CipherSuiteName(res.TLS.CipherSuite)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		d.Elapsed = time.Since(start)
		return nil, &TransportError{URL: target, StatusCode: res.StatusCode, Err: statusError(res)}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, f.opts.MaxBodyBytes+1))
	d.Elapsed = time.Since(start)
	d.Bytes = int64(len(body))
	if err != nil {
		return nil, &TransportError{URL: target, StatusCode: res.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, &TransportError{URL: target, StatusCode: res.StatusCode, Err: fmt.Errorf("response body exceeds %d bytes", f.opts.MaxBodyBytes)}
	}
	tbl, err := table.Decode(body)
	if err != nil {
		return nil, &TransportError{URL: target, StatusCode: res.StatusCode, Err: err}
	}
	return tbl, nil
}

func statusError(res *http.Response) error {
	side := "Server"
	if res.StatusCode < 500 {
		side = "Client"
	}
	if res.StatusCode < 400 {
		side = "Unexpected"
	}
	return fmt.Errorf("%d %s Error: %s", res.StatusCode, side, http.StatusText(res.StatusCode))
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS13:
		return "TLS1.3"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS10:
		return "TLS1.0"
	default:
		return fmt.Sprintf("0x%x", v)
	}
}

func (f *Fetcher) geoip(d *Diagnostics) {
	if !f.opts.GeoIP || d.RemoteIP == "" {
		return
	}
	ip := net.ParseIP(d.RemoteIP)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return
	}
	if cc, ok := lookupCountry(ip, f.opts.GeoIPCountryDB); ok {
		d.CountryGeoIP = cc
	}
	if num, org, ok := lookupASN(ip, f.opts.GeoIPASNDB); ok {
		d.ASNNumber = num
		d.ASNOrg = org
	}
}
