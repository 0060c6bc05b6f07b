// Package cli implements the pptxpreview command-line interface.
//
// # Commands
//
//   - render: decode a deck and write one image per slide plus a manifest
//   - inspect: summarize the decoded document model
//   - serve: HTTP preview service rendering uploaded decks
//   - version: print build information
//
// All commands support --verbose (-v) for debug-level logging. The logger
// travels through context.Context into the library.
package cli

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	slidepreview "github.com/VantageDataChat/SlidePreview"
)

const appName = "pptxpreview"

// Environment variables read after loading .env.
const (
	envServiceURL  = "SLIDEPREVIEW_SERVICE_URL"
	envFontURL     = "SLIDEPREVIEW_FONT_URL"
	envFontDirs    = "SLIDEPREVIEW_FONT_DIRS"
	envConcurrency = "SLIDEPREVIEW_CONCURRENCY"
	envImageHosts  = "SLIDEPREVIEW_IMAGE_HOSTS"
)

// newLogger creates a logger with timestamp formatting.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

func loggerFromContext(ctx context.Context) *log.Logger {
	return slidepreview.LoggerFromContext(ctx, log.Default())
}

// env holds settings taken from the environment.
type env struct {
	ServiceURL  string
	FontURL     string
	FontDirs    []string
	Concurrency int
	// ImageHosts may serve images that decks link to instead of embed.
	ImageHosts []string
}

// loadEnv reads .env (silently ignored when missing) and the process
// environment.
func loadEnv() env {
	_ = godotenv.Load(".env")
	e := env{
		ServiceURL:  os.Getenv(envServiceURL),
		FontURL:     os.Getenv(envFontURL),
		Concurrency: getEnvInt(envConcurrency, 0),
	}
	if dirs := os.Getenv(envFontDirs); dirs != "" {
		e.FontDirs = filepath.SplitList(dirs)
	}
	for _, h := range strings.Split(os.Getenv(envImageHosts), ",") {
		if h = strings.TrimSpace(h); h != "" {
			e.ImageHosts = append(e.ImageHosts, h)
		}
	}
	return e
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

// pipeline wires the decode and render components for one command run.
type pipeline struct {
	reader   *slidepreview.Reader
	remote   *slidepreview.RemoteDecoder
	renderer *slidepreview.Renderer
}

func newPipeline(e env, logger *log.Logger) *pipeline {
	sources := []slidepreview.FontSource{slidepreview.NewSystemFontSource(e.FontDirs...)}
	if e.FontURL != "" {
		sources = append(sources, &slidepreview.HTTPFontSource{URLTemplate: e.FontURL})
	}
	registry := slidepreview.NewFontRegistry(logger, sources...)
	// Images named by the parsing service come from its own host.
	loader := slidepreview.RestrictedSourceLoader{AllowedHosts: e.ImageHosts}
	if u, err := url.Parse(e.ServiceURL); err == nil && u.Hostname() != "" {
		loader.AllowedHosts = append(slices.Clip(e.ImageHosts), u.Hostname())
	}
	p := &pipeline{
		reader: slidepreview.NewReader(logger),
		renderer: slidepreview.NewRenderer(
			slidepreview.NewFontManager(registry, logger),
			slidepreview.NewImageProcessor(loader, logger).AllowLinkHosts(e.ImageHosts...),
			logger,
		),
	}
	if e.ServiceURL != "" {
		p.remote = slidepreview.NewRemoteDecoder(e.ServiceURL, logger)
	}
	return p
}

// decode reads a deck locally, or through the parsing service when one
// is configured.
func (p *pipeline) decode(ctx context.Context, name string, data []byte) (*slidepreview.Document, error) {
	if p.remote != nil {
		return p.remote.Decode(ctx, filepath.Base(name), bytes.NewReader(data))
	}
	return p.reader.ReadBytes(ctx, data)
}
