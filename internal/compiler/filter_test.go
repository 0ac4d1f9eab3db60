package compiler

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

func compileFilterText(t *testing.T, src string) (string, error) {
	t.Helper()
	node, err := ast.DecodeFilter([]byte(src))
	require.NoError(t, err)
	return CompileFilter[string, string](barTable(), node, exprAdapter{})
}

func TestCompileFilter(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "equality shorthand", src: `{bar: a}`, want: `bar eq "a"`},
		{name: "accessor key", src: `{count: 3}`, want: `n eq 3`},
		{name: "empty object", src: `{}`, want: `true`},
		{name: "implicit and", src: `{bar: a, count: 1}`, want: `(bar eq "a" AND n eq 1)`},
		{name: "operators conjoin", src: `{foo: {barShort: {gte: 12, lt: 14}}}`, want: `foo{(barShort gte 12 AND barShort lt 14)}`},
		{name: "suffix in single value", src: `{bar_in: a}`, want: `bar in ["a"]`},
		{name: "in single value", src: `{bar: {in: a}}`, want: `bar in ["a"]`},
		{name: "suffix not", src: `{bar_not: a}`, want: `bar neq "a"`},
		{name: "suffix not_in", src: `{bar_not_in: [a, b]}`, want: `bar not_in ["a","b"]`},
		{name: "suffix starts_with", src: `{bar_starts_with: a}`, want: `bar starts_with "a"`},
		{name: "enum from string", src: `{foo: {barEnum: BAR}}`, want: `foo{barEnum eq #BAR}`},
		{name: "enum in", src: `{foo: {barEnum: {in: [BAR, BAZ]}}}`, want: `foo{barEnum in [#BAR,#BAZ]}`},
		{name: "null object shorthand", src: `{foo: null}`, want: `foo eq null`},
		{name: "null object operator", src: `{foo: {eq: null}}`, want: `foo eq null`},
		{name: "null check beside fields", src: `{foo: {neq: null, barShort: 1}}`, want: `(foo neq null AND foo{barShort eq 1})`},
		{name: "nullable scalar null", src: `{foo: {barShort: null}}`, want: `foo{barShort eq null}`},
		{name: "nullable in with null", src: `{foo: {barShort: {in: [1, null]}}}`, want: `foo{barShort in [1,null]}`},
		{name: "float literal", src: `{foo: {barFloat: 1.5}}`, want: `foo{barFloat eq 1.5}`},
		{name: "float accepts int", src: `{foo: {barFloat: {gt: 1}}}`, want: `foo{barFloat gt 1}`},
		{name: "implicit exists", src: `{foo: {objectArray: {name: x}}}`, want: `foo{any objectArray{name eq "x"}}`},
		{name: "explicit some", src: `{foo: {objectArray: {some: {name: x}}}}`, want: `foo{any objectArray{name eq "x"}}`},
		{name: "list null check", src: `{foo: {objectArray: null}}`, want: `foo{objectArray eq null}`},
		{name: "empty nested", src: `{foo: {}}`, want: `true`},
		{name: "or", src: `{or: [{bar: a}, {bar: b}]}`, want: `(bar eq "a" OR bar eq "b")`},
		{name: "single or", src: `{or: {bar: a}}`, want: `bar eq "a"`},
		{name: "or inside nested", src: `{foo: {or: [{barShort: 1}, {barBool: true}]}}`, want: `foo{(barShort eq 1 OR barBool eq true)}`},
		{name: "or on one field", src: `{bar: {or: [{eq: a}, {starts_with: b}]}}`, want: `(bar eq "a" OR bar starts_with "b")`},
		{name: "and with sibling", src: `{and: [{bar: a}, {count: 2}], count: 3}`, want: `((bar eq "a" AND n eq 2) AND n eq 3)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := compileFilterText(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFilter_ProgrammaticLiterals(t *testing.T) {
	filter := ast.NewObject(
		ast.NewField("foo", ast.NewObject(
			ast.NewField("barShort", ast.NewLiteral(ir.MustDecimal("2.0"))),
			ast.NewField("barEnum", ast.NewLiteral(ir.Enum("QUX"))),
		)),
	)

	got, err := CompileFilter[string, string](barTable(), filter, exprAdapter{})
	require.NoError(t, err)
	assert.Equal(t, `foo{(barShort eq 2 AND barEnum eq #QUX)}`, got)
}

func TestCompileFilter_SuffixMatchesNestedForm(t *testing.T) {
	pairs := [][2]string{
		{`{bar_in: [a, b]}`, `{bar: {in: [a, b]}}`},
		{`{bar_not: a}`, `{bar: {neq: a}}`},
		{`{bar_not_contains: a}`, `{bar: {not_contains: a}}`},
		{`{foo: {barShort_gte: 3}}`, `{foo: {barShort: {gte: 3}}}`},
	}

	for _, p := range pairs {
		legacy, err := compileFilterText(t, p[0])
		require.NoError(t, err)
		nested, err := compileFilterText(t, p[1])
		require.NoError(t, err)
		assert.Equal(t, nested, legacy, p[0])
	}
}

func TestCompileFilter_SuffixTriesEverySplit(t *testing.T) {
	notOnly := schema.NewBuilder("Flags").
		Scalar("foo_not", schema.ScalarString).
		MustBuild()
	both := schema.NewBuilder("Flags").
		Scalar("foo", schema.ScalarString).
		Scalar("foo_not", schema.ScalarString).
		MustBuild()

	tests := []struct {
		name  string
		table *schema.Table
		src   string
		want  string
	}{
		{name: "shorter suffix when longer misses", table: notOnly, src: `{foo_not_in: [a]}`, want: `foo_not in ["a"]`},
		{name: "exact name wins", table: notOnly, src: `{foo_not: a}`, want: `foo_not eq "a"`},
		{name: "longest suffix first", table: both, src: `{foo_not_in: [a]}`, want: `foo not_in ["a"]`},
		{name: "exact name before suffix", table: both, src: `{foo_not: a}`, want: `foo_not eq "a"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := ast.DecodeFilter([]byte(tt.src))
			require.NoError(t, err)
			got, err := CompileFilter[string, string](tt.table, node, exprAdapter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileFilter_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code Code
		path string
	}{
		{name: "unknown root", src: `{baz: 1}`, code: CodeUnknownField, path: "baz"},
		{name: "unknown nested", src: `{foo: {nope: 1}}`, code: CodeUnknownField, path: "foo.nope"},
		{name: "unknown in list", src: `{foo: {objectArray: {nope: 1}}}`, code: CodeUnknownField, path: "foo.objectArray.nope"},
		{name: "past scalar", src: `{bar: {x: 1}}`, code: CodeNotNavigable, path: "bar.x"},
		{name: "null on non-nullable", src: `{bar: null}`, code: CodeTypeMismatch, path: "bar"},
		{name: "null with ordering op", src: `{foo: {barShort: {gt: null}}}`, code: CodeTypeMismatch, path: "foo.barShort"},
		{name: "bad enum value", src: `{foo: {barEnum: NOPE}}`, code: CodeTypeMismatch, path: "foo.barEnum"},
		{name: "enum from int", src: `{foo: {barEnum: 1}}`, code: CodeTypeMismatch, path: "foo.barEnum"},
		{name: "ordering on boolean", src: `{foo: {barBool: {gt: true}}}`, code: CodeTypeMismatch, path: "foo.barBool"},
		{name: "ordering on enum", src: `{foo: {barEnum: {lt: BAR}}}`, code: CodeTypeMismatch, path: "foo.barEnum"},
		{name: "substring on int", src: `{count: {contains: "1"}}`, code: CodeTypeMismatch, path: "count"},
		{name: "string for int", src: `{count: "1"}`, code: CodeTypeMismatch, path: "count"},
		{name: "fraction for int", src: `{count: 1.5}`, code: CodeTypeMismatch, path: "count"},
		{name: "int beyond int64", src: `{count: {eq: 18446744073709551618}}`, code: CodeTypeMismatch, path: "count"},
		{name: "int below int64", src: `{count: {in: [1, -9223372036854775809]}}`, code: CodeTypeMismatch, path: "count"},
		{name: "int for string", src: `{bar: 1}`, code: CodeTypeMismatch, path: "bar"},
		{name: "value for object", src: `{foo: 5}`, code: CodeTypeMismatch, path: "foo"},
		{name: "ordering on object", src: `{foo: {gt: 1}}`, code: CodeTypeMismatch, path: "foo"},
		{name: "some on object", src: `{foo: {some: {barShort: 1}}}`, code: CodeTypeMismatch, path: "foo"},
		{name: "some on scalar", src: `{bar: {some: {x: 1}}}`, code: CodeTypeMismatch, path: "bar"},
		{name: "list without operator", src: `{bar: [a, b]}`, code: CodeMalformedAST, path: "bar"},
		{name: "unbound operator", src: `{eq: 1}`, code: CodeMalformedAST},
		{name: "empty or", src: `{or: []}`, code: CodeMalformedAST},
		{name: "list for eq", src: `{bar: {eq: [a]}}`, code: CodeMalformedAST, path: "bar.eq"},
		{name: "list for suffix gt", src: `{count_gt: [1]}`, code: CodeMalformedAST, path: "count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileFilterText(t, tt.src)
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.code, ce.Code, ce.Error())
			if tt.path != "" {
				assert.Equal(t, tt.path, ce.Path)
			}
		})
	}
}

func TestCompileFilter_NullOnNonNullableAlwaysMismatch(t *testing.T) {
	ops := []ast.Op{
		ast.OpEq, ast.OpNeq, ast.OpGt, ast.OpGte, ast.OpLt, ast.OpLte,
		ast.OpIn, ast.OpNotIn, ast.OpContains, ast.OpNotStartsWith, ast.OpEndsWith,
	}
	fields := [][]string{{"bar"}, {"count"}, {"foo", "barBool"}, {"foo", "barEnum"}, {"foo", "barFloat"}}

	for _, path := range fields {
		for _, op := range ops {
			filter := buildPath(path, ast.NewObject(ast.NewOperator(op, ast.NewLiteral(ir.Null{}))))
			_, err := CompileFilter[string, string](barTable(), filter, exprAdapter{})
			assert.True(t, IsTypeMismatch(err), "%v %s: %v", path, op, err)

			inList := buildPath(path, ast.NewObject(ast.NewOperator(ast.OpIn, ast.NewValues(ir.Null{}))))
			_, err = CompileFilter[string, string](barTable(), inList, exprAdapter{})
			assert.True(t, IsTypeMismatch(err), "%v in [null]: %v", path, err)
		}
	}
}

func buildPath(path []string, leaf ast.Node) *ast.Object {
	node := leaf
	for i := len(path) - 1; i >= 0; i-- {
		node = ast.NewObject(ast.NewField(path[i], node))
	}
	return node.(*ast.Object)
}

func TestCompileFilter_UnsupportedOperatorFromAdapter(t *testing.T) {
	node, err := ast.DecodeFilter([]byte(`{foo: {barString: {contains: a}}}`))
	require.NoError(t, err)

	_, err = CompileFilter[string, string](barTable(), node, exprAdapter{noSubstring: true})
	require.Error(t, err)
	assert.True(t, IsUnsupportedOperator(err))

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "foo.barString", ce.Path)
	assert.Contains(t, ce.Error(), "operator contains is not supported: no pattern matching")
}

func TestCompileFilter_MalformedTrees(t *testing.T) {
	tests := []struct {
		name string
		node ast.Node
	}{
		{name: "nil", node: nil},
		{name: "literal root", node: ast.NewLiteral(ir.Int(1))},
		{name: "operator without operand", node: ast.NewObject(ast.NewField("bar", ast.NewObject(ast.NewOperator(ast.OpEq, nil))))},
		{name: "sort in filter", node: ast.NewObject(ast.NewField("bar", ast.SortBy(ast.Ascending)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFilter[string, string](barTable(), tt.node, exprAdapter{})
			assert.True(t, IsMalformedAST(err), "got %v", err)
		})
	}
}

func TestCompileFilter_SchemaErrorsMatchSentinels(t *testing.T) {
	_, err := compileFilterText(t, `{nope: 1}`)
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.False(t, errors.Is(err, ErrTypeMismatch))

	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, CodeUnknownField, code)
}

func TestCompileFilter_Concurrent(t *testing.T) {
	table := barTable()
	adapter := exprAdapter{}
	node, err := ast.DecodeFilter([]byte(`{foo: {barShort: {in: [1, 2]}, objectArray: {name: x}}, bar: a}`))
	require.NoError(t, err)

	want, err := CompileFilter[string, string](table, node, adapter)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := CompileFilter[string, string](table, node, adapter)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Code: CodeTypeMismatch, Path: "bar", Message: "null is not allowed on non-nullable field bar"}
	assert.Equal(t, "TYPE_MISMATCH: null is not allowed on non-nullable field bar (path=bar)", err.Error())

	assert.Equal(t, "UNKNOWN_FIELD", ErrUnknownField.Error())
	assert.Equal(t, "MALFORMED_AST: bad", (&CompileError{Code: CodeMalformedAST, Message: "bad"}).Error())
}

func TestAccessorOf(t *testing.T) {
	d, ok := barTable().Lookup("count")
	require.True(t, ok)

	acc := accessorOf(d)
	assert.Equal(t, Accessor{Name: "count", Key: "n", Kind: schema.KindScalar, Scalar: schema.ScalarInt}, acc)
	assert.Equal(t, []string{"n"}, Keys([]Accessor{acc}))

	d, ok = barTable().Lookup("foo")
	require.True(t, ok)
	enum, ok := d.Nested.Lookup("barEnum")
	require.True(t, ok)

	acc = accessorOf(enum)
	assert.Equal(t, []string{"FOO", "BAR", "BAZ", "QUX"}, acc.Values)
	rank, ok := acc.Rank("BAZ")
	assert.True(t, ok)
	assert.Equal(t, 2, rank)
	_, ok = acc.Rank("NOPE")
	assert.False(t, ok)
}
