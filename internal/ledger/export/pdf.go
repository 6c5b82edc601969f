package export

import (
	"context"
	"fmt"
)

// HTMLConverter turns an HTML document into PDF bytes; report.Client
// satisfies it through Gotenberg.
type HTMLConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFRenderer prints the dataset to HTML and converts it.
type PDFRenderer struct {
	Converter HTMLConverter
}

func (PDFRenderer) ContentType() string { return "application/pdf" }
func (PDFRenderer) Extension() string   { return "pdf" }

// Render implements Renderer.
func (r PDFRenderer) Render(ctx context.Context, ds Dataset) ([]byte, error) {
	if r.Converter == nil {
		return nil, fmt.Errorf("pdf converter not configured")
	}
	html, err := RenderHTML(ds)
	if err != nil {
		return nil, err
	}
	return r.Converter.RenderHTML(ctx, html)
}
