// Package pdfinfo reads metadata from rendered PDFs.
package pdfinfo

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from installing config, fonts and certificates under the
	// user's config dir on first use.
	api.DisableConfigDir()
}

var countRe = regexp.MustCompile(`/Count\s+(\d+)`)

// PageCount returns the number of pages in data. exact is false when the
// document could not be parsed and the count was estimated; the estimate
// is never below 1.
func PageCount(data []byte) (n int, exact bool) {
	if n, err := parsedPageCount(data); err == nil && n > 0 {
		return n, true
	}
	if n := scanPageCount(data); n > 0 {
		return n, false
	}
	return 1, false
}

func parsedPageCount(data []byte) (n int, err error) {
	// pdfcpu can panic on badly damaged input.
	defer func() {
		if r := recover(); r != nil {
			n = 0
		}
	}()
	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, err
	}
	// ReadContext leaves PageCount unset until the page tree is walked.
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

// scanPageCount takes the largest /Count entry, which belongs to the root
// of the page tree.
func scanPageCount(data []byte) int {
	best := 0
	for _, m := range countRe.FindAllSubmatch(data, -1) {
		if v, err := strconv.Atoi(string(m[1])); err == nil && v > best {
			best = v
		}
	}
	return best
}
