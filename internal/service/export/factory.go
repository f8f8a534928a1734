package export

import (
	"fmt"

	"github.com/chemaudit/chemaudit/internal/structure"
)

// Factory dispatches a format to its renderer.
type Factory struct {
	renderers map[Format]Renderer
}

func NewFactory(parser *structure.Parser) *Factory {
	f := &Factory{renderers: make(map[Format]Renderer)}
	for _, r := range []Renderer{
		NewCSVRenderer(),
		NewSheetRenderer(),
		NewSDFRenderer(parser),
		NewJSONRenderer(),
		NewPDFRenderer(),
	} {
		f.renderers[r.SupportedFormat()] = r
	}
	return f
}

func (f *Factory) Get(format Format) (Renderer, error) {
	r, ok := f.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
	return r, nil
}
