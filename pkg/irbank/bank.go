// Package irbank is the deduplicating store for kernel bodies and task
// metadata. Bodies are content-addressed by fingerprint; identical IR under
// an identical launch shape shares one interned Body and one TaskMeta. The
// bank is shared across compiler goroutines and safe for concurrent use;
// interned values are immutable shared references.
package irbank

import (
	"context"
	"errors"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/ir"
)

var ErrNotFusible = errors.New("bodies are not fusible")

const defaultCacheSize = 1 << 16

// Options configures the bank's interning caches.
type Options struct {
	// MaxEntries bounds each interning cache. Zero means the default.
	MaxEntries int
}

// Bank interns bodies and metadata by body fingerprint.
type Bank struct {
	bodies      *otter.Cache[string, *ir.Body]
	bodiesStats *stats.Counter
	metas       *otter.Cache[string, *ir.TaskMeta]
	metasStats  *stats.Counter
}

// New builds a bank. A nil opts uses defaults.
func New(opts *Options) (*Bank, error) {
	size := defaultCacheSize
	if opts != nil && opts.MaxEntries > 0 {
		size = opts.MaxEntries
	}
	bodiesStats := stats.NewCounter()
	bodies, err := otter.New(&otter.Options[string, *ir.Body]{
		MaximumSize:   size,
		StatsRecorder: bodiesStats,
	})
	if err != nil {
		return nil, fmt.Errorf("irbank: body cache: %w", err)
	}
	metasStats := stats.NewCounter()
	metas, err := otter.New(&otter.Options[string, *ir.TaskMeta]{
		MaximumSize:   size,
		StatsRecorder: metasStats,
	})
	if err != nil {
		return nil, fmt.Errorf("irbank: meta cache: %w", err)
	}
	return &Bank{bodies: bodies, bodiesStats: bodiesStats, metas: metas, metasStats: metasStats}, nil
}

// GetOrInternBody returns the canonical instance for body's fingerprint,
// interning body if no instance exists yet.
func (b *Bank) GetOrInternBody(ctx context.Context, body *ir.Body) (*ir.Body, error) {
	fp := body.Fingerprint()
	return b.bodies.Get(ctx, fp, otter.LoaderFunc[string, *ir.Body](
		func(ctx context.Context, _ string) (*ir.Body, error) {
			return body, nil
		}))
}

// GetOrInternMeta returns the shared task metadata for body, computing it
// by analysis on first sight of the fingerprint. Concurrent callers with
// the same fingerprint share a single computation.
func (b *Bank) GetOrInternMeta(ctx context.Context, body *ir.Body) (*ir.TaskMeta, error) {
	fp := body.Fingerprint()
	meta, err := b.metas.Get(ctx, fp, otter.LoaderFunc[string, *ir.TaskMeta](
		func(ctx context.Context, _ string) (*ir.TaskMeta, error) {
			m := analyzeBody(body)
			ctxzap.Extract(ctx).Debug("interned task meta",
				zap.String("kernel", body.KernelName),
				zap.String("fingerprint", fp),
			)
			return m, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("irbank: intern meta for %s: %w", body.KernelName, err)
	}
	return meta, nil
}

// Stats reports combined hit/miss counters of the interning caches.
func (b *Bank) Stats() (hits, misses uint64) {
	bs, ms := b.bodiesStats.Snapshot(), b.metasStats.Snapshot()
	return bs.Hits + ms.Hits, bs.Misses + ms.Misses
}
