package pipeline

import (
	"context"
	"log/slog"
)

type step string

const (
	stepGeocoding   step = "geocoding"
	stepDiscovering step = "discovering"
	stepBatching    step = "batching"
	stepMerging     step = "merging"
	stepRanking     step = "ranking"
	stepCaching     step = "caching"
	stepDone        step = "done"
)

func (p *Pipeline) step(ctx context.Context, s step, attrs ...slog.Attr) {
	p.log.LogAttrs(ctx, slog.LevelDebug, "pipeline step", append([]slog.Attr{slog.String("step", string(s))}, attrs...)...)
}
