package handlers

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"

	"dazzlodocs/internal/config"
	"dazzlodocs/internal/converter"
	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/logging"
)

// Converter runs one conversion. *converter.Converter satisfies it.
type Converter interface {
	Convert(ctx context.Context, in converter.Input, opts domain.ConversionOptions, outputPath string) (*domain.ConversionResult, error)
}

// Handler serves the conversion API.
type Handler struct {
	cfg         config.Config
	converter   Converter
	version     string
	engineStats func() any
	started     time.Time
	schedule    func(time.Duration, func())
}

type Option func(*Handler)

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(h *Handler) { h.version = v }
}

// WithEngineStats exposes engine statistics on /engine/stats.
func WithEngineStats(fn func() any) Option {
	return func(h *Handler) { h.engineStats = fn }
}

// New builds a Handler. A nil converter makes every convert endpoint answer 503.
func New(cfg config.Config, conv Converter, opts ...Option) *Handler {
	h := &Handler{
		cfg:       cfg,
		converter: conv,
		version:   "dev",
		started:   time.Now(),
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts the API routes on r.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/health", h.Health)
	r.Get("/options", h.Options)
	r.Get("/engine/stats", h.EngineStats)
	r.Post("/convert/html", h.ConvertHTML)
	r.Post("/convert/file", h.ConvertFile)
	r.Post("/convert/url", h.ConvertURL)
	r.Get("/download/:filename", h.Download)
}

// ConvertResponse is returned by every successful conversion.
type ConvertResponse struct {
	Success        bool            `json:"success"`
	Filename       string          `json:"filename"`
	FileSize       int64           `json:"fileSize"`
	PageCount      int             `json:"pageCount"`
	PageCountExact bool            `json:"pageCountExact"`
	DownloadURL    string          `json:"downloadUrl"`
	Options        ResponseOptions `json:"options"`
}

// ResponseOptions echoes the options the document was printed with.
type ResponseOptions struct {
	Format         domain.PageFormat      `json:"format"`
	Landscape      bool                   `json:"landscape"`
	Margin         domain.Margin          `json:"margin"`
	Scale          float64                `json:"scale"`
	Letterhead     bool                   `json:"letterhead"`
	LetterheadType domain.LetterheadBrand `json:"letterheadType,omitempty"`
	LetterheadMode domain.LetterheadMode  `json:"letterheadMode,omitempty"`
}

// ConvertHTML handles POST /convert/html.
func (h *Handler) ConvertHTML(c *fiber.Ctx) error {
	var req HTMLRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.HTML) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "HTML content is required")
	}
	return h.convert(c, converter.HTMLInput(req.HTML), req.ConvertOptions)
}

// ConvertURL handles POST /convert/url.
func (h *Handler) ConvertURL(c *fiber.Ctx) error {
	var req URLRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.URL) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "URL is required")
	}
	if _, err := converter.ValidateURL(req.URL); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid URL: must be HTTP or HTTPS")
	}
	return h.convert(c, converter.URLInput(strings.TrimSpace(req.URL)), req.ConvertOptions)
}

// ConvertFile handles POST /convert/file with a multipart "htmlFile" field.
func (h *Handler) ConvertFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("htmlFile")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No file uploaded")
	}
	if fh.Size > int64(h.cfg.Limits.MaxUploadBytes) {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Uploaded file is too large")
	}
	if !isHTMLUpload(fh) {
		return fiber.NewError(fiber.StatusBadRequest, "Only HTML files are allowed")
	}
	opts, err := formOptions(c)
	if err != nil {
		return toFiberError(err)
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read upload")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, int64(h.cfg.Limits.MaxUploadBytes)+1))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to read upload")
	}
	if len(data) > h.cfg.Limits.MaxUploadBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Uploaded file is too large")
	}
	if strings.TrimSpace(string(data)) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Uploaded file is empty")
	}
	return h.convert(c, converter.HTMLInput(string(data)), opts)
}

func isHTMLUpload(fh *multipart.FileHeader) bool {
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".html", ".htm":
		return true
	}
	return strings.HasPrefix(strings.ToLower(fh.Header.Get("Content-Type")), "text/html")
}

func (h *Handler) convert(c *fiber.Ctx, in converter.Input, req ConvertOptions) error {
	if h.converter == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "PDF converter not available")
	}
	if strings.TrimSpace(req.Format) == "" {
		req.Format = h.cfg.PDF.DefaultPaper
	}
	opts, err := req.Options()
	if err != nil {
		return toFiberError(err)
	}
	if opts.Letterhead && opts.AccessToken == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Password required for letterhead access")
	}

	filename := "dazzlodocs_" + xid.New().String() + ".pdf"
	out := filepath.Join(h.cfg.Output.Dir, filename)

	res, err := h.converter.Convert(c.UserContext(), in, opts, out)
	if err != nil {
		logging.Error("Conversion failed", "input", in.Describe(), "error", err,
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		return toFiberError(err)
	}

	resp := ConvertResponse{
		Success:        true,
		Filename:       filename,
		FileSize:       res.FileSizeBytes,
		PageCount:      res.PageCount,
		PageCountExact: res.PageCountExact,
		DownloadURL:    strings.TrimRight(h.cfg.Server.PublicBaseURL, "/") + "/download/" + filename,
		Options: ResponseOptions{
			Format:     opts.Format,
			Landscape:  opts.Orientation.IsLandscape(),
			Margin:     opts.Margin,
			Scale:      opts.Scale,
			Letterhead: opts.Letterhead,
		},
	}
	if opts.Letterhead {
		resp.Options.LetterheadType = opts.Brand
		resp.Options.LetterheadMode = opts.Mode
	}
	return c.JSON(resp)
}

var downloadName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.pdf$`)

// Download handles GET /download/:filename. The file is removed after
// output.delete_after_download.
func (h *Handler) Download(c *fiber.Ctx) error {
	name := c.Params("filename")
	if !downloadName.MatchString(name) || strings.Contains(name, "..") {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid filename")
	}
	path := filepath.Join(h.cfg.Output.Dir, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return fiber.NewError(fiber.StatusNotFound, "File not found")
	}
	if err := c.Download(path, name); err != nil {
		return err
	}
	h.schedule(h.cfg.Output.DeleteAfterDownload, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove downloaded file", "path", path, "error", err)
		}
	})
	return nil
}

// Health handles GET /health.
func (h *Handler) Health(c *fiber.Ctx) error {
	state := "ready"
	if h.converter == nil {
		state = "unavailable"
	}
	return c.JSON(fiber.Map{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
		"engine": fiber.Map{
			"name":  h.cfg.PDF.Engine,
			"state": state,
		},
		"version": h.version,
	})
}

// EngineStats handles GET /engine/stats.
func (h *Handler) EngineStats(c *fiber.Ctx) error {
	if h.engineStats == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Engine statistics not available")
	}
	return c.JSON(h.engineStats())
}

// Options handles GET /options.
func (h *Handler) Options(c *fiber.Ctx) error {
	companies := fiber.Map{}
	for _, b := range domain.Brands {
		p, err := domain.Brand(b)
		if err != nil {
			continue
		}
		companies[string(b)] = fiber.Map{
			"name":    p.DisplayName,
			"tagline": p.Tagline,
			"contact": p.ContactLines,
			"website": p.Website,
			"color":   p.AccentColor,
		}
	}
	return c.JSON(fiber.Map{
		"formats":       domain.Formats,
		"defaultFormat": h.cfg.PDF.DefaultPaper,
		"margins":       domain.MarginPresets,
		"orientations":  []domain.Orientation{domain.Portrait, domain.Landscape},
		"features": fiber.Map{
			"letterhead":     true,
			"fileUpload":     true,
			"urlConversion":  true,
			"maxUploadBytes": h.cfg.Limits.MaxUploadBytes,
			"scale": fiber.Map{
				"min":              0.1,
				"max":              2.0,
				"recommendedRange": []float64{domain.MinRecommendedScale, domain.MaxRecommendedScale},
			},
		},
		"letterhead": fiber.Map{
			"types":            domain.Brands,
			"modes":            domain.Modes,
			"companies":        companies,
			"passwordRequired": true,
		},
	})
}
