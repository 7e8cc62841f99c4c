package serve

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/covercash2/green/pkg/types"
)

//go:embed templates/index.html
var templateFiles embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFiles, "templates/index.html"))

// renderIndex renders the home page listing routes in name order.
func renderIndex(routes types.Routes) ([]byte, error) {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, struct {
		Routes []types.NamedRoute
	}{
		Routes: routes.Sorted(),
	})
	if err != nil {
		return nil, fmt.Errorf("rendering index: %w", err)
	}
	return buf.Bytes(), nil
}
