package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"dazzlodocs/internal/domain"
	"dazzlodocs/internal/layout"
)

// FlexBool accepts JSON booleans and the strings "true"/"false".
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on":
		*b = true
	case "false", "0", "off", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

// MarginValue is either a preset name or an explicit margin object.
type MarginValue struct {
	Preset string
	Custom *domain.Margin
}

func (m *MarginValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &m.Preset)
	}
	var custom domain.Margin
	if err := json.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("margin must be a preset name or an object: %w", err)
	}
	m.Custom = &custom
	return nil
}

// Resolve returns the margin to print with. An unset value means medium.
func (m MarginValue) Resolve() (domain.Margin, error) {
	if m.Custom != nil {
		return m.Custom.WithDefaults(), nil
	}
	if strings.TrimSpace(m.Preset) == "" {
		return domain.MarginMedium, nil
	}
	margin, ok := domain.MarginPreset(m.Preset)
	if !ok {
		return domain.Margin{}, fmt.Errorf("%w: unknown margin preset %q", domain.ErrInvalidOptions, m.Preset)
	}
	return margin, nil
}

// ConvertOptions are the option fields shared by every convert endpoint.
type ConvertOptions struct {
	Format         string      `json:"format"`
	Landscape      FlexBool    `json:"landscape"`
	Margin         MarginValue `json:"margin"`
	Scale          *float64    `json:"scale"`
	Letterhead     FlexBool    `json:"letterhead"`
	LetterheadType string      `json:"letterheadType"`
	LetterheadMode string      `json:"letterheadMode"`
	Password       string      `json:"password"`
}

// HTMLRequest is the body of POST /convert/html.
type HTMLRequest struct {
	HTML string `json:"html"`
	ConvertOptions
}

// URLRequest is the body of POST /convert/url.
type URLRequest struct {
	URL string `json:"url"`
	ConvertOptions
}

// formOptions reads the option fields of a multipart upload. Booleans are
// only true when the field is the string "true".
func formOptions(c *fiber.Ctx) (ConvertOptions, error) {
	o := ConvertOptions{
		Format:         c.FormValue("format"),
		Landscape:      FlexBool(c.FormValue("landscape") == "true"),
		Margin:         MarginValue{Preset: c.FormValue("margin")},
		Letterhead:     FlexBool(c.FormValue("letterhead") == "true"),
		LetterheadType: c.FormValue("letterheadType"),
		LetterheadMode: c.FormValue("letterheadMode"),
		Password:       c.FormValue("password"),
	}
	if raw := strings.TrimSpace(c.FormValue("scale")); raw != "" {
		s, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return o, fmt.Errorf("%w: scale %q is not a number", domain.ErrInvalidOptions, raw)
		}
		o.Scale = &s
	}
	return o, nil
}

// Options converts the request fields into validated conversion options.
// Unknown formats, presets, letterhead types and modes are rejected.
func (r ConvertOptions) Options() (domain.ConversionOptions, error) {
	opts := domain.DefaultOptions()

	format, err := domain.ParsePageFormat(r.Format)
	if err != nil {
		return opts, err
	}
	opts.Format = format
	opts.Orientation = domain.OrientationOf(bool(r.Landscape))

	if opts.Margin, err = r.Margin.Resolve(); err != nil {
		return opts, err
	}
	if _, _, _, _, err = layout.Inches(opts.Margin); err != nil {
		return opts, err
	}
	if r.Scale != nil {
		opts.Scale = *r.Scale
	}

	opts.Letterhead = bool(r.Letterhead)
	if opts.Letterhead {
		if opts.Brand, err = domain.ParseBrand(r.LetterheadType); err != nil {
			return opts, err
		}
		if opts.Mode, err = domain.ParseMode(r.LetterheadMode); err != nil {
			return opts, err
		}
	}
	opts.AccessToken = r.Password
	return opts, opts.Validate()
}
