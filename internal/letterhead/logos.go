package letterhead

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LogoSource resolves a brand logo asset key to a data URI.
type LogoSource interface {
	DataURI(assetKey string) (string, error)
}

// ErrLogoMissing is returned when the asset file does not exist.
var ErrLogoMissing = errors.New("logo asset missing")

// DirLogos reads logos from a directory on every call, so replacing a file
// on disk takes effect on the next render.
type DirLogos struct {
	Dir string
}

func (d DirLogos) DataURI(assetKey string) (string, error) {
	if assetKey == "" || strings.ContainsAny(assetKey, `/\`) {
		return "", fmt.Errorf("invalid asset key %q", assetKey)
	}
	raw, err := os.ReadFile(filepath.Join(d.Dir, assetKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrLogoMissing, assetKey)
		}
		return "", err
	}
	return EncodeDataURI(raw), nil
}

// EncodeDataURI sniffs the image type and base64 encodes raw.
func EncodeDataURI(raw []byte) string {
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

// StaticLogos serves fixed data URIs, keyed by asset key.
type StaticLogos map[string]string

func (s StaticLogos) DataURI(assetKey string) (string, error) {
	uri, ok := s[assetKey]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrLogoMissing, assetKey)
	}
	return uri, nil
}
