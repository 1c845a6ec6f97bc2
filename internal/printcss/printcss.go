// Package printcss inserts print-safe styling and fragments into HTML
// documents before they reach the render engine.
package printcss

import (
	"strings"
)

// Styles is the print stylesheet added to every document.
const Styles = `
* {
  box-sizing: border-box;
}
body {
  margin: 0;
  padding: 0;
  font-family: Arial, sans-serif;
  line-height: 1.6;
  color: #333;
}
div, p, h1, h2, h3, h4, h5, h6 {
  page-break-inside: avoid;
  break-inside: avoid;
}
table {
  border-collapse: collapse;
  width: 100%;
  page-break-inside: avoid;
  break-inside: avoid;
}
th, td {
  border: 1px solid #ddd;
  padding: 8px;
  text-align: left;
}
img {
  max-width: 100%;
  height: auto;
  page-break-inside: avoid;
  break-inside: avoid;
}
ul, ol, li {
  page-break-inside: avoid;
  break-inside: avoid;
}
pre, code {
  page-break-inside: avoid;
  break-inside: avoid;
  white-space: pre-wrap;
  word-wrap: break-word;
}
@media print {
  * {
    -webkit-print-color-adjust: exact !important;
    print-color-adjust: exact !important;
  }
  h1, h2, h3, h4, h5, h6 {
    page-break-after: avoid;
    break-after: avoid;
  }
  img, table, pre, code {
    page-break-inside: avoid;
    break-inside: avoid;
  }
  p {
    orphans: 3;
    widows: 3;
  }
}
`

// Inject adds Styles to the document head. Documents without a closing
// head tag are wrapped in a minimal html/head/body skeleton.
// Every call inserts another copy, callers apply it once per request.
func Inject(htmlContent string) string {
	styleBlock := StyleBlock(Styles)
	if idx := indexFold(htmlContent, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}
	return `<!DOCTYPE html><html><head><meta charset="utf-8">` + styleBlock + "</head><body>" + htmlContent + "</body></html>"
}

// InjectStyle inserts css as a <style> block before </head>, falling back
// to just after <body> and finally to the start of the document.
func InjectStyle(htmlContent, css string) string {
	if css == "" {
		return htmlContent
	}
	styleBlock := StyleBlock(css)
	if idx := indexFold(htmlContent, "</head>"); idx != -1 {
		return htmlContent[:idx] + styleBlock + htmlContent[idx:]
	}
	if pos := bodyContentStart(htmlContent); pos != -1 {
		return htmlContent[:pos] + styleBlock + htmlContent[pos:]
	}
	return styleBlock + htmlContent
}

// InsertAfterBodyOpen places fragment immediately after the opening body
// tag, or at the start of the document when there is none.
func InsertAfterBodyOpen(htmlContent, fragment string) string {
	if fragment == "" {
		return htmlContent
	}
	if pos := bodyContentStart(htmlContent); pos != -1 {
		return htmlContent[:pos] + fragment + htmlContent[pos:]
	}
	return fragment + htmlContent
}

// StyleBlock wraps css in a <style> element.
func StyleBlock(css string) string {
	return "<style>" + sanitizeCSS(css) + "</style>"
}

// sanitizeCSS keeps css from closing the style element early.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

// bodyContentStart returns the offset just past the opening body tag.
func bodyContentStart(htmlContent string) int {
	lower := asciiLower(htmlContent)
	from := 0
	for {
		idx := strings.Index(lower[from:], "<body")
		if idx == -1 {
			return -1
		}
		idx += from
		next := idx + len("<body")
		// Skip tags like <bodyguard>.
		if next < len(lower) && (lower[next] == '>' || lower[next] == ' ' || lower[next] == '\t' || lower[next] == '\n' || lower[next] == '\r' || lower[next] == '/') {
			end := strings.IndexByte(htmlContent[idx:], '>')
			if end == -1 {
				return -1
			}
			return idx + end + 1
		}
		from = next
	}
}

// indexFold is a case-insensitive Index for ASCII needles. Only A-Z are
// folded so byte offsets stay valid in the original string.
func indexFold(s, substr string) int {
	return strings.Index(asciiLower(s), asciiLower(substr))
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
