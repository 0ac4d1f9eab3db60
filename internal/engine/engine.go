package engine

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/cache"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/schema"
)

// TracerName is the instrumentation name spans are recorded under.
const TracerName = "github.com/roach88/sieve/internal/engine"

// Span names.
const (
	SpanCompileFilter = "sieve.compile.filter"
	SpanCompileOrder  = "sieve.compile.order"
)

// Span attribute keys.
const (
	AttrBackend   = "sieve.backend"
	AttrSchema    = "sieve.schema"
	AttrCacheHit  = "sieve.cache_hit"
	AttrErrorCode = "sieve.error.code"
	AttrErrorPath = "sieve.error.path"
)

// Engine compiles trees against one schema table.
type Engine struct {
	table  *schema.Table
	cache  *cache.Cache
	tracer trace.Tracer
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables artifact caching. Without it every call compiles.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithTracer records spans through tp instead of the global provider.
func WithTracer(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(TracerName)
	}
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine for table.
func New(table *schema.Table, opts ...Option) *Engine {
	e := &Engine{
		table:  table,
		tracer: otel.GetTracerProvider().Tracer(TracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the engine's schema table.
func (e *Engine) Table() *schema.Table {
	return e.table
}

// CompileFilter compiles filter for backend b, reusing a cached artifact
// when the same tree was compiled for the same backend and schema version.
func CompileFilter[F, A, K, O any](ctx context.Context, e *Engine, b Backend[F, A, K, O], filter ast.Node) (A, error) {
	return compileCached(ctx, e, b.Name, cache.KindFilter, SpanCompileFilter, filter, func() (A, error) {
		return compiler.CompileFilter(e.table, filter, b.Filter)
	})
}

// CompileOrder compiles order for backend b, with the same caching as
// CompileFilter.
func CompileOrder[F, A, K, O any](ctx context.Context, e *Engine, b Backend[F, A, K, O], order ast.Node) (O, error) {
	return compileCached(ctx, e, b.Name, cache.KindOrder, SpanCompileOrder, order, func() (O, error) {
		return compiler.CompileOrder(e.table, order, b.Sort)
	})
}

func compileCached[T any](
	ctx context.Context,
	e *Engine,
	backend string,
	kind cache.Kind,
	spanName string,
	node ast.Node,
	compile func() (T, error),
) (T, error) {
	_, span := e.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String(AttrBackend, backend),
		attribute.String(AttrSchema, e.table.Name()),
	))
	defer span.End()

	key, cacheable := e.cacheKey(backend, kind, node)
	if cacheable {
		if v, ok := e.cache.Get(key); ok {
			if artifact, ok := v.(T); ok {
				span.SetAttributes(attribute.Bool(AttrCacheHit, true))
				e.logger.Debug("compile cache hit",
					"backend", backend,
					"kind", kind.String(),
					"schema", e.table.Name())
				return artifact, nil
			}
		}
	}
	span.SetAttributes(attribute.Bool(AttrCacheHit, false))

	e.logger.Debug("compiling",
		"backend", backend,
		"kind", kind.String(),
		"schema", e.table.Name())

	artifact, err := compile()
	if err != nil {
		var zero T
		code, _ := compiler.CodeOf(err)
		path := errorPath(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.String(AttrErrorCode, string(code)),
			attribute.String(AttrErrorPath, path),
		)
		e.logger.Warn("compile failed",
			"backend", backend,
			"kind", kind.String(),
			"code", string(code),
			"path", path,
			"error", err)
		return zero, err
	}

	if cacheable {
		e.cache.Put(key, artifact)
	}
	e.logger.Debug("compiled",
		"backend", backend,
		"kind", kind.String(),
		"schema", e.table.Name())
	return artifact, nil
}

// cacheKey reports false when caching is off or the tree has no canonical
// form, in which case compilation reports the problem.
func (e *Engine) cacheKey(backend string, kind cache.Kind, node ast.Node) (cache.Key, bool) {
	if e.cache == nil || node == nil {
		return cache.Key{}, false
	}
	shape, err := ast.Canonical(node)
	if err != nil {
		return cache.Key{}, false
	}
	return cache.Key{
		Backend:       backend,
		Kind:          kind,
		Shape:         shape,
		SchemaVersion: e.table.Version(),
	}, true
}

func errorPath(err error) string {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ce.Path
	}
	return ""
}
