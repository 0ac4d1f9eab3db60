package engine

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/backend/document"
	"github.com/roach88/sieve/internal/backend/memory"
	"github.com/roach88/sieve/internal/cache"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/store"
	"github.com/roach88/sieve/internal/testutil"
)

func decodeFilter(t *testing.T, src string) ast.Node {
	t.Helper()
	n, err := ast.DecodeFilter([]byte(src))
	require.NoError(t, err)
	return n
}

func decodeOrder(t *testing.T, src string) ast.Node {
	t.Helper()
	n, err := ast.DecodeOrder([]byte(src))
	require.NoError(t, err)
	return n
}

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestCompileFilter_CacheHit(t *testing.T) {
	c := cache.New(0)
	eng := New(testutil.BarTable(), WithCache(c))
	ctx := context.Background()

	first, err := CompileFilter(ctx, eng, Memory, decodeFilter(t, `{bar: a}`))
	require.NoError(t, err)
	second, err := CompileFilter(ctx, eng, Memory, decodeFilter(t, `{bar: a}`))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, uint64(1), c.Stats().Hits)
}

func TestCompileFilter_CacheMissOnSchemaChange(t *testing.T) {
	c := cache.New(0)
	ctx := context.Background()

	changed := schema.NewBuilder("Bar").
		Scalar("bar", schema.ScalarString, schema.Nullable()).
		MustBuild()
	require.NotEqual(t, testutil.BarTable().Version(), changed.Version())

	_, err := CompileFilter(ctx, New(testutil.BarTable(), WithCache(c)), Memory, decodeFilter(t, `{bar: a}`))
	require.NoError(t, err)
	_, err = CompileFilter(ctx, New(changed, WithCache(c)), Memory, decodeFilter(t, `{bar: a}`))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), c.Stats().Hits)
	assert.Equal(t, 2, c.Len())
}

func TestCompile_CacheSeparatesBackendsAndKinds(t *testing.T) {
	c := cache.New(0)
	eng := New(testutil.BarTable(), WithCache(c))
	ctx := context.Background()

	_, err := CompileFilter(ctx, eng, Memory, decodeFilter(t, `{bar: a}`))
	require.NoError(t, err)
	_, err = CompileFilter(ctx, eng, SQLite, decodeFilter(t, `{bar: a}`))
	require.NoError(t, err)
	_, err = CompileFilter(ctx, eng, Document, decodeFilter(t, `{bar: a}`))
	require.NoError(t, err)
	_, err = CompileOrder(ctx, eng, Memory, decodeOrder(t, `{bar: ASC}`))
	require.NoError(t, err)

	assert.Equal(t, uint64(0), c.Stats().Hits)
	assert.Equal(t, 4, c.Len())
}

func TestCompile_SpansRecordCacheHits(t *testing.T) {
	sr, tp := newRecorder()
	eng := New(testutil.BarTable(), WithCache(cache.New(0)), WithTracer(tp))
	ctx := context.Background()

	for range 2 {
		_, err := CompileOrder(ctx, eng, SQLite, decodeOrder(t, `{foo: {barShort: DESC}}`))
		require.NoError(t, err)
	}

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for i, span := range spans {
		assert.Equal(t, SpanCompileOrder, span.Name())
		a := attrs(span)
		assert.Equal(t, "sqlite", a[AttrBackend].AsString())
		assert.Equal(t, "Bar", a[AttrSchema].AsString())
		assert.Equal(t, i == 1, a[AttrCacheHit].AsBool())
	}
}

func TestCompile_ErrorIsTracedAndLogged(t *testing.T) {
	sr, tp := newRecorder()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	eng := New(testutil.BarTable(), WithTracer(tp), WithLogger(logger))

	_, err := CompileFilter(context.Background(), eng, Memory, decodeFilter(t, `{foo: {nope: 1}}`))
	require.Error(t, err)
	assert.True(t, compiler.IsUnknownField(err))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanCompileFilter, spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	a := attrs(spans[0])
	assert.Equal(t, "UNKNOWN_FIELD", a[AttrErrorCode].AsString())
	assert.Equal(t, "foo.nope", a[AttrErrorPath].AsString())

	assert.Contains(t, logs.String(), "compile failed")
	assert.Contains(t, logs.String(), "code=UNKNOWN_FIELD")
	assert.Contains(t, logs.String(), "path=foo.nope")
}

func TestCompile_FailuresAreNotCached(t *testing.T) {
	c := cache.New(0)
	eng := New(testutil.BarTable(), WithCache(c))

	_, err := CompileFilter(context.Background(), eng, Memory, decodeFilter(t, `{nope: 1}`))
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCompile_UnsupportedOperatorPerBackend(t *testing.T) {
	eng := New(testutil.BarTable())
	filter := decodeFilter(t, `{bar: {contains: a}}`)

	_, err := CompileFilter(context.Background(), eng, DocumentBackend(false), filter)
	assert.True(t, compiler.IsUnsupportedOperator(err))

	_, err = CompileFilter(context.Background(), eng, Document, filter)
	assert.NoError(t, err)
}

func TestCompile_NilOrder(t *testing.T) {
	eng := New(testutil.BarTable(), WithCache(cache.New(0)))

	order, err := CompileOrder(context.Background(), eng, Memory, nil)
	require.NoError(t, err)
	assert.Empty(t, order.Keys())
}

func TestCompile_Concurrent(t *testing.T) {
	eng := New(testutil.BarTable(), WithCache(cache.New(4)))
	filters := []string{`{bar: a}`, `{count: {gt: 1}}`, `{foo: {barBool: true}}`, `{foo: {objectArray: {some: {name: x}}}}`}

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			node, err := ast.DecodeFilter([]byte(filters[n%len(filters)]))
			if !assert.NoError(t, err) {
				return
			}
			_, err = CompileFilter(context.Background(), eng, SQLite, node)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

// The same filter and order select the same records in every backend.
func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()
	eng := New(testutil.BarTable())
	records := testutil.NullableBarRecords()

	st, err := store.Open(filepath.Join(t.TempDir(), "agree.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	_, err = st.InsertMany(ctx, "bars", records)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter string
		order  string
	}{
		{name: "equality", filter: `{bar: testatest}`, order: `{count: ASC}`},
		{name: "null parent excluded", filter: `{foo: {barShort: {neq: 12}}}`, order: `{foo: {barShort: DESC}}`},
		{name: "existential list", filter: `{foo: {objectArray: {some: {weight: {gte: 1}}}}}`, order: `{count: DESC}`},
		{name: "null reversal", filter: `{}`, order: `{foo: {barShort: ASC}}`},
		{name: "multi key", filter: `{foo: {neq: null}}`, order: `{foo: {barBool: DESC, barShort: ASC}}`},
		{name: "disjunction", filter: `{or: [{foo: {barEnum: {in: [FOO]}}}, {bar_ends_with: etest}]}`, order: `{bar: DESC}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, order := decodeFilter(t, tt.filter), decodeOrder(t, tt.order)

			pred, err := CompileFilter(ctx, eng, Memory, filter)
			require.NoError(t, err)
			ordering, err := CompileOrder(ctx, eng, Memory, order)
			require.NoError(t, err)
			want := testutil.IDs(memory.Apply(records, pred, ordering))

			docFilter, err := CompileFilter(ctx, eng, Document, filter)
			require.NoError(t, err)
			docSort, err := CompileOrder(ctx, eng, Document, order)
			require.NoError(t, err)
			found, err := document.NewCollection(records).Find(docFilter, docSort)
			require.NoError(t, err)
			assert.Equal(t, want, testutil.IDs(found), "document")

			where, err := CompileFilter(ctx, eng, SQLite, filter)
			require.NoError(t, err)
			orderBy, err := CompileOrder(ctx, eng, SQLite, order)
			require.NoError(t, err)
			rows, err := st.Find(ctx, "bars", where, orderBy)
			require.NoError(t, err)
			got := make([]ir.Object, len(rows))
			for i, r := range rows {
				got[i] = r.Body
			}
			assert.Equal(t, want, testutil.IDs(got), "sqlite")
		})
	}
}
