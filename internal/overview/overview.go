package overview

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
)

// FileName is the name of the overview document in the output directory.
const FileName = "index.html"

var page = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Release download statistics</title>
</head>
<body>
{{- range . }}
<h2>{{ .Title }}</h2>
<img src="{{ .FileName }}" alt="{{ .Title }}" />
{{- end }}
</body>
</html>
`))

// Render writes the overview document listing files in the given order.
func Render(files []models.ChartFile, w io.Writer) error {
	if err := page.Execute(w, files); err != nil {
		return fmt.Errorf("rendering overview: %w", err)
	}
	return nil
}

// Write renders the overview and stores it as index.html in out.
func Write(files []models.ChartFile, out services.OutputDir) (string, int64, error) {
	var buf bytes.Buffer
	if err := Render(files, &buf); err != nil {
		return "", 0, err
	}
	hash, size, err := out.WriteFile(FileName, &buf)
	if err != nil {
		return "", 0, fmt.Errorf("writing overview: %w", err)
	}
	return hash, size, nil
}
