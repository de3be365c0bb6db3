package builder

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/eightyone/botdock/internal/core/domain"
)

// pythonTemplate renders the assembly steps in contract order: OS packages
// (and font cache rebuild) first, then the dependency manifest, then the
// application tree, then port exposure and the supervised launch command.
// The CMD is shell form so the platform's PORT variable is authoritative and
// the recipe port is only the fallback.
const pythonTemplate = `FROM {{.BaseImage}}
{{if .SystemPackages}}
RUN apt-get update && apt-get install -y --no-install-recommends {{join .SystemPackages " "}} \
    && rm -rf /var/lib/apt/lists/*{{if .RebuildFontCache}} \
    && fc-cache -f{{end}}
{{end}}
WORKDIR /app

COPY {{.Manifest}} .
RUN pip install --no-cache-dir -r {{.Manifest}}

COPY . .

EXPOSE {{.Port}}

CMD gunicorn {{.Module}}:{{.Object}} --bind 0.0.0.0:${PORT:-{{.Port}}}{{if .Workers}} --workers {{.Workers}}{{end}}
`

// goTemplate builds a static binary in a builder stage and ships it on the
// recipe's base image. Module doubles as the cmd directory and binary name.
const goTemplate = `FROM golang:1.24-alpine AS build

WORKDIR /app

COPY go.mod go.sum ./
RUN go mod download

COPY . .
RUN CGO_ENABLED=0 go build -o {{.Module}} ./cmd/{{.Module}}

FROM {{.BaseImage}}
{{if .SystemPackages}}
RUN apk add --no-cache {{join .SystemPackages " "}}{{if .RebuildFontCache}} && fc-cache -f{{end}}
{{end}}
WORKDIR /app

COPY --from=build /app/{{.Module}} .

EXPOSE {{.Port}}

CMD ["./{{.Module}}"]
`

var templates = map[domain.Runtime]*template.Template{
	domain.RuntimePython: template.Must(template.New("python").Funcs(funcs).Parse(pythonTemplate)),
	domain.RuntimeGo:     template.Must(template.New("go").Funcs(funcs).Parse(goTemplate)),
}

var funcs = template.FuncMap{"join": strings.Join}

// RenderDockerfile turns a recipe into Dockerfile text. Rendering is
// deterministic: the same recipe always yields the same bytes.
func RenderDockerfile(r domain.Recipe) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	tmpl, ok := templates[r.Runtime]
	if !ok {
		return "", fmt.Errorf("no template for runtime %q", r.Runtime)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, r); err != nil {
		return "", fmt.Errorf("failed to render dockerfile: %w", err)
	}
	return b.String(), nil
}
