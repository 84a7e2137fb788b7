package exports

import (
	"context"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Download formats.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// List returns the stored export IDs in lexicographic order.
func (x *UseCase) List(ctx context.Context) ([]model.SessionID, error) {
	return x.repo.List(ctx)
}

// Get loads a stored export manifest.
func (x *UseCase) Get(ctx context.Context, id model.SessionID) (*model.Export, error) {
	return x.repo.Load(ctx, id)
}

// Download renders a stored export in the requested format and returns the
// document plus its media type.
func (x *UseCase) Download(ctx context.Context, id model.SessionID, format string) (string, string, error) {
	export, err := x.repo.Load(ctx, id)
	if err != nil {
		return "", "", err
	}

	switch format {
	case FormatMarkdown:
		return export.RenderMarkdown(), "text/markdown; charset=utf-8", nil
	case FormatText:
		return export.RenderText(), "text/plain; charset=utf-8", nil
	default:
		return "", "", goerr.Wrap(model.ErrInvalidArgument, "unsupported download format", goerr.V("format", format))
	}
}
