package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var chapterTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/chapter.html")
	if err != nil {
		// Fallback to built-in template if file not found
		chapterTemplate = template.Must(template.New("chapter").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	chapterTemplate = template.Must(template.New("chapter").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for chapter template rendering.
type TemplateData struct {
	OrderNumber int
	Code        string
	Title       string
	Status      string
	WriterName  string
	BodyHTML    template.HTML
	UpdatedAt   time.Time
}

// RenderChapterHTML renders the chapter template with provided data.
func RenderChapterHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := chapterTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load.
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.7; max-width: 720px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{if .Code}}{{.Code}} &mdash; {{end}}{{.Title}}</h1>
  <div class="meta">Chapter {{.OrderNumber}} | {{.Status | lower}}{{if .WriterName}} | {{.WriterName}}{{end}} | {{formatDate .UpdatedAt "Jan 2, 2006"}}</div>
  <div>{{.BodyHTML}}</div>
</body>
</html>`
