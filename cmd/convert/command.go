package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dazzlodocs/internal/auth"
	"dazzlodocs/internal/config"
	"dazzlodocs/internal/converter"
	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/infra/chrome"
	"dazzlodocs/internal/infra/logging"
	"dazzlodocs/internal/infra/rod"
	"dazzlodocs/internal/letterhead"
)

// stdinInput is the input argument that reads HTML from standard input.
const stdinInput = "-"

// engineFactory builds the render engine for one CLI run.
type engineFactory func(cfg config.Config) (domain.Engine, error)

func newEngine(cfg config.Config) (domain.Engine, error) {
	if cfg.PDF.Engine == config.EngineRod {
		e, err := rod.New(rod.OptionsFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	b, err := chrome.NewBrowser(chrome.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// convertFlags holds the parsed command line flags.
type convertFlags struct {
	config         string
	format         string
	landscape      bool
	portrait       bool
	margin         string
	scale          float64
	letterhead     bool
	letterheadType string
	letterheadMode string
	password       string
}

func bindFlags(fs *pflag.FlagSet, f *convertFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "path to a config.yaml (defaults are used otherwise)")
	fs.StringVarP(&f.format, "format", "f", "", "page format: A4, A3, Letter, Legal, Tabloid (default pdf.default_paper)")
	fs.BoolVarP(&f.landscape, "landscape", "l", false, "landscape orientation")
	fs.BoolVarP(&f.portrait, "portrait", "p", false, "portrait orientation (default)")
	fs.StringVarP(&f.margin, "margin", "m", "medium", "margin preset: small, medium, large")
	fs.Float64VarP(&f.scale, "scale", "s", 1.0, "print scale, 0.8-1.2 recommended")
	fs.BoolVar(&f.letterhead, "letterhead", false, "add a company letterhead (requires --password)")
	fs.StringVar(&f.letterheadType, "letterhead-type", string(domain.BrandTrivanta), "letterhead brand: trivanta, dazzlo")
	fs.StringVar(&f.letterheadMode, "letterhead-mode", string(domain.ModeAll), "letterhead pages: all, first")
	fs.StringVar(&f.password, "password", "", "access token for letterheads")
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer, engines engineFactory) *cobra.Command {
	var flags convertFlags
	cmd := &cobra.Command{
		Use:   "convert <input|-|url> <output>",
		Short: "Convert HTML to PDF",
		Long: `Convert an HTML file, a URL or HTML read from stdin ("-") into a PDF.

Examples:
  convert report.html report.pdf
  convert https://example.com page.pdf --format Letter --landscape
  cat invoice.html | convert - invoice.pdf --margin small
  convert offer.html offer.pdf --letterhead --letterhead-type dazzlo --letterhead-mode first --password <token>`,
		Args:          cobra.ExactArgs(2),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.InitConsoleLogger(stderr, "warn")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runConvert(ctx, args[0], args[1], &flags, stdin, stdout, engines)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	bindFlags(cmd.Flags(), &flags)
	cmd.MarkFlagsMutuallyExclusive("landscape", "portrait")
	cmd.AddCommand(newTokenCommand(stdout))
	return cmd
}

// newTokenCommand mints letterhead tokens for deployments running
// letterhead.auth.mode jwt.
func newTokenCommand(stdout io.Writer) *cobra.Command {
	var (
		configPath string
		subject    string
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a letterhead access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a := cfg.Letterhead.Auth
			if a.Mode != config.AuthModeJWT {
				return fmt.Errorf("letterhead.auth.mode is %q, tokens can only be issued in mode %q", a.Mode, config.AuthModeJWT)
			}
			if ttl <= 0 {
				return fmt.Errorf("%w: --ttl must be positive", domain.ErrInvalidOptions)
			}
			token, err := auth.NewJWT([]byte(a.JWTSecret), a.JWTIssuer).Issue(subject, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(stdout, token)
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&configPath, "config", "c", "", "path to a config.yaml")
	fs.StringVar(&subject, "subject", "", "token subject, usually the client name")
	fs.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// loadConfig reads --config when given. Config loading panics on invalid
// files, which the CLI reports as a normal error.
func loadConfig(path string) (cfg config.Config, err error) {
	if path == "" {
		return config.Default(), nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return config.LoadFrom(path), nil
}

// buildOptions maps flags onto conversion options. Unknown margin presets,
// letterhead types and modes fall back to their defaults with a warning.
func buildOptions(f *convertFlags, defaultFormat string) (domain.ConversionOptions, error) {
	opts := domain.DefaultOptions()

	name := f.format
	if strings.TrimSpace(name) == "" {
		name = defaultFormat
	}
	format, err := domain.ParsePageFormat(name)
	if err != nil {
		return opts, err
	}
	opts.Format = format
	opts.Orientation = domain.OrientationOf(f.landscape && !f.portrait)

	margin, ok := domain.MarginPreset(f.margin)
	if !ok {
		logging.Warn("Unknown margin preset, using medium", "margin", f.margin)
	}
	opts.Margin = margin
	opts.Scale = f.scale

	opts.Letterhead = f.letterhead
	if opts.Letterhead {
		if opts.Brand, err = domain.ParseBrand(f.letterheadType); err != nil {
			logging.Warn("Invalid letterhead type, using trivanta", "letterhead_type", f.letterheadType)
			opts.Brand = domain.BrandTrivanta
		}
		if opts.Mode, err = domain.ParseMode(f.letterheadMode); err != nil {
			logging.Warn("Invalid letterhead mode, using all", "letterhead_mode", f.letterheadMode)
			opts.Mode = domain.ModeAll
		}
		if f.password == "" {
			return opts, fmt.Errorf("%w: --letterhead requires --password", domain.ErrUnauthorized)
		}
		opts.AccessToken = f.password
	}
	return opts, opts.Validate()
}

func readInput(arg string, stdin io.Reader, maxBytes int) (converter.Input, error) {
	switch {
	case arg == stdinInput:
		data, err := io.ReadAll(io.LimitReader(stdin, int64(maxBytes)+1))
		if err != nil {
			return converter.Input{}, fmt.Errorf("%w: read stdin: %v", domain.ErrIO, err)
		}
		if len(data) > maxBytes {
			return converter.Input{}, fmt.Errorf("%w: stdin exceeds %d bytes", domain.ErrInvalidOptions, maxBytes)
		}
		if strings.TrimSpace(string(data)) == "" {
			return converter.Input{}, errors.New("no HTML received on stdin")
		}
		return converter.HTMLInput(string(data)), nil
	case converter.LooksLikeURL(arg):
		if _, err := converter.ValidateURL(arg); err != nil {
			return converter.Input{}, err
		}
		return converter.URLInput(arg), nil
	}
	return converter.FileInput(arg), nil
}

func runConvert(ctx context.Context, inputArg, output string, f *convertFlags, stdin io.Reader, stdout io.Writer, engines engineFactory) error {
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	opts, err := buildOptions(f, cfg.PDF.DefaultPaper)
	if err != nil {
		return err
	}
	in, err := readInput(inputArg, stdin, cfg.Limits.MaxHTMLBytes)
	if err != nil {
		return err
	}

	authz, err := auth.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("letterhead authorizer: %w", err)
	}
	if c, ok := authz.(io.Closer); ok {
		defer c.Close()
	}
	// A rejected token must not leave directories behind.
	if opts.Letterhead {
		ok, err := authz.Authorize(ctx, opts.AccessToken)
		if err != nil {
			return fmt.Errorf("verify letterhead token: %w", err)
		}
		if !ok {
			return domain.ErrUnauthorized
		}
	}

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create output dir: %v", domain.ErrIO, err)
		}
	}

	engine, err := engines(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logging.Warn("Failed to close render engine", "error", err)
		}
	}()

	letterheads := letterhead.NewGenerator(letterhead.DirLogos{Dir: cfg.Letterhead.AssetDir})
	conv := converter.New(engine, authz, letterheads, converter.SettingsFromConfig(cfg))

	start := time.Now()
	res, err := conv.Convert(ctx, in, opts, output)
	if err != nil {
		return err
	}
	printSummary(stdout, res, opts, time.Since(start))
	return nil
}

func printSummary(w io.Writer, res *domain.ConversionResult, opts domain.ConversionOptions, took time.Duration) {
	pages := fmt.Sprintf("%d", res.PageCount)
	if !res.PageCountExact {
		pages += " (estimated)"
	}
	fmt.Fprintf(w, "PDF created: %s\n", res.OutputPath)
	fmt.Fprintf(w, "  Pages:      %s\n", pages)
	fmt.Fprintf(w, "  Size:       %s\n", formatBytes(res.FileSizeBytes))
	fmt.Fprintf(w, "  Format:     %s %s, scale %.2f\n", opts.Format, opts.Orientation, opts.Scale)
	if opts.Letterhead {
		fmt.Fprintf(w, "  Letterhead: %s (%s)\n", opts.Brand, opts.Mode)
	}
	fmt.Fprintf(w, "  Time:       %s\n", took.Round(time.Millisecond))
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
