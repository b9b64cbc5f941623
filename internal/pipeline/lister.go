package pipeline

import (
	"context"

	"ingestpipe/internal/domain"
)

// VideoLister produces the input batch for one run. Three concrete
// implementations are expected in production: a channel-API lister, a
// yt-dlp flat-playlist lister, and a local-file lister; all satisfy this
// one interface so the orchestrator never branches on source kind.
type VideoLister interface {
	List(ctx context.Context) ([]domain.VideoDescriptor, error)
}

// StaticLister is the simplest VideoLister: a fixed, pre-resolved list, used
// by --from-json/--from-files input modes and by tests.
type StaticLister struct {
	Videos []domain.VideoDescriptor
}

func (l StaticLister) List(ctx context.Context) ([]domain.VideoDescriptor, error) {
	return l.Videos, nil
}

// FuncLister adapts a plain function to VideoLister, used by the
// channel-API and yt-dlp-backed listers, which differ only in how they
// populate the slice.
type FuncLister func(ctx context.Context) ([]domain.VideoDescriptor, error)

func (f FuncLister) List(ctx context.Context) ([]domain.VideoDescriptor, error) {
	return f(ctx)
}
