package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/logging"
)

// Input is exactly one of literal HTML, a local file or a URL.
type Input struct {
	HTML string
	File string
	URL  string
}

func HTMLInput(html string) Input { return Input{HTML: html} }
func FileInput(path string) Input { return Input{File: path} }
func URLInput(rawURL string) Input { return Input{URL: rawURL} }

// Describe is a short label for logs.
func (in Input) Describe() string {
	switch {
	case in.URL != "":
		return "url " + in.URL
	case in.File != "":
		return "file " + in.File
	}
	return fmt.Sprintf("html (%d bytes)", len(in.HTML))
}

func (in Input) validate() error {
	n := 0
	for _, s := range []string{in.HTML, in.File, in.URL} {
		if s != "" {
			n++
		}
	}
	switch n {
	case 0:
		return fmt.Errorf("%w: no input given", domain.ErrInvalidOptions)
	case 1:
		return nil
	}
	return fmt.Errorf("%w: give exactly one of html, file or url", domain.ErrInvalidOptions)
}

// LooksLikeURL reports whether s is an http(s) URL. The CLI uses it to tell
// URL arguments from file paths.
func LooksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrInvalidOptions, raw)
	}
	return u, nil
}

func (c *Converter) acquire(ctx context.Context, in Input) (string, error) {
	switch {
	case in.File != "":
		return c.readFile(in.File)
	case in.URL != "":
		return c.fetchURL(ctx, in.URL)
	}
	if len(in.HTML) > c.settings.MaxHTMLBytes {
		return "", fmt.Errorf("%w: html exceeds %d bytes", domain.ErrInvalidOptions, c.settings.MaxHTMLBytes)
	}
	return in.HTML, nil
}

func (c *Converter) readFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrInputNotFound, path)
		}
		return "", fmt.Errorf("%w: stat %s: %v", domain.ErrIO, path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", domain.ErrInvalidOptions, path)
	}
	if info.Size() > int64(c.settings.MaxHTMLBytes) {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidOptions, path, c.settings.MaxHTMLBytes)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrIO, path, err)
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
}

// fetchURL drives a page to u and serializes the loaded DOM.
func (c *Converter) fetchURL(ctx context.Context, raw string) (string, error) {
	u, err := ValidateURL(raw)
	if err != nil {
		return "", err
	}
	page, err := c.openPage(ctx)
	if err != nil {
		return "", err
	}
	defer c.closePage(page)

	if err := c.navigate(ctx, page, u.String()); err != nil {
		if errors.Is(err, domain.ErrRenderTimeout) || errors.Is(err, domain.ErrEngineUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInputNotFound, u.Redacted(), err)
	}
	if err := c.waitForImages(ctx, page); err != nil {
		logging.Warn("Images did not settle before capture", "url", u.Redacted(), "error", err)
	}
	contentCtx, cancel := context.WithTimeout(ctx, c.settings.NavigationTimeout)
	defer cancel()
	html, err := page.Content(contentCtx)
	if err != nil {
		return "", c.classify("capture dom", err)
	}
	if len(html) > c.settings.MaxHTMLBytes {
		return "", fmt.Errorf("%w: page at %s exceeds %d bytes", domain.ErrInvalidOptions, u.Redacted(), c.settings.MaxHTMLBytes)
	}
	return html, nil
}
