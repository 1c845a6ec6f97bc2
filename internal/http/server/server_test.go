package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/converter"
	"dazzlodocs/internal/domain"
)

type stubConverter struct{ err error }

func (s stubConverter) Convert(ctx context.Context, in converter.Input, opts domain.ConversionOptions, out string) (*domain.ConversionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := os.WriteFile(out, []byte("%PDF"), 0o644); err != nil {
		return nil, err
	}
	return &domain.ConversionResult{OutputPath: out, FileSizeBytes: 4, PageCount: 1}, nil
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Server.PublicDir = ""
	return cfg
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestNew_RoutesAndJSON404(t *testing.T) {
	app := New(Deps{Config: testConfig(t), Converter: stubConverter{}, Version: "test"})

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected /health 200, got %d", resp.StatusCode)
	}

	req404, _ := http.NewRequest(http.MethodGet, "/does-not-exist", nil)
	resp404, err := app.Test(req404)
	if err != nil {
		t.Fatalf("404 request failed: %v", err)
	}
	if resp404.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp404.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp404.Body).Decode(&body); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
	if body.Error.Code != http.StatusNotFound || body.Error.Message != "Not Found" {
		t.Fatalf("unexpected error body: %+v", body)
	}
}

func TestNew_ServesPublicDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.PublicDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.Server.PublicDir, "index.html"), []byte("<h1>dazzlodocs</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Server.PublicDir, "app.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	app := New(Deps{Config: cfg, Converter: stubConverter{}})

	for path, want := range map[string]string{"/": "<h1>dazzlodocs</h1>", "/app.css": "body{}"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || string(body) != want {
			t.Fatalf("%s: got %d %q", path, resp.StatusCode, body)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, "/missing.js", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	var body errorBody
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing static file, got %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code != http.StatusNotFound {
		t.Fatalf("expected JSON 404 body, got %+v (%v)", body, err)
	}

	req, _ = http.NewRequest(http.MethodGet, "/health", nil)
	if resp, err = app.Test(req); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("API routes must win over static files: %v", err)
	}
}

func TestNew_ConvertErrorsAreJSON(t *testing.T) {
	app := New(Deps{Config: testConfig(t), Converter: stubConverter{err: domain.ErrUnauthorized}})

	raw, _ := json.Marshal(map[string]any{"html": "<p>x</p>", "letterhead": true, "password": "wrong"})
	req, _ := http.NewRequest(http.MethodPost, "/convert/html", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Message != domain.ErrUnauthorized.Error() {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestNew_ConvertSuccess(t *testing.T) {
	app := New(Deps{Config: testConfig(t), Converter: stubConverter{}})

	raw, _ := json.Marshal(map[string]any{"html": "<h1>Hello</h1>"})
	req, _ := http.NewRequest(http.MethodPost, "/convert/html", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Success     bool   `json:"success"`
		DownloadURL string `json:"downloadUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Success || out.DownloadURL == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestNew_NilConverterIs503(t *testing.T) {
	app := New(Deps{Config: testConfig(t)})

	raw, _ := json.Marshal(map[string]any{"html": "<p>x</p>"})
	req, _ := http.NewRequest(http.MethodPost, "/convert/html", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
