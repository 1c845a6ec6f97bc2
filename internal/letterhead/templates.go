package letterhead

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	markup = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
	styles = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.css.tmpl"))
)

const (
	tmplNativeHeader = "native_header.html.tmpl"
	tmplNativeFooter = "native_footer.html.tmpl"
	tmplFlowHeader   = "flow_header.html.tmpl"
	tmplFlowFooter   = "flow_footer.html.tmpl"
	tmplStyleAll     = "style_all.css.tmpl"
	tmplStyleFirst   = "style_first.css.tmpl"
)

func renderMarkup(name string, v view) (string, error) {
	var buf bytes.Buffer
	if err := markup.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderStyle(name string, v view) (string, error) {
	var buf bytes.Buffer
	if err := styles.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
