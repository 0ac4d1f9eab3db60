package harness

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/backend/document"
	"github.com/roach88/sieve/internal/backend/memory"
	"github.com/roach88/sieve/internal/cache"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/store"
)

// Backend names accepted in a case's backends list.
const (
	BackendMemory            = "memory"
	BackendDocument          = "document"
	BackendDocumentNoPattern = "document-nopattern"
	BackendSQLite            = "sqlite"
)

// BackendNames lists every backend a case may name.
var BackendNames = []string{BackendMemory, BackendDocument, BackendDocumentNoPattern, BackendSQLite}

// DefaultBackends run when a case names none.
var DefaultBackends = []string{BackendMemory, BackendDocument, BackendSQLite}

// collection is the store collection scenario records are loaded into.
const collection = "scenario"

// Harness runs the cases of one scenario.
type Harness struct {
	engine  *engine.Engine
	store   *store.Store
	records []ir.Object
	logger  *slog.Logger
}

// Option configures a run.
type Option func(*Harness)

// WithLogger replaces the default discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Records are fed to
// every backend in id order, which is also the store's tie-breaker, so
// rows that compare equal come back in the same order everywhere.
//
// Execution flow:
// 1. Compile the scenario's CUE schema and pick its table
// 2. Load records into an in-memory store
// 3. For each case, compile and execute on every selected backend
// 4. Compare ids or error codes against the case's expectation
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	table, err := loadTable(scenario)
	if err != nil {
		return nil, err
	}

	records, err := convertRecords(scenario.Records)
	if err != nil {
		return nil, fmt.Errorf("failed to convert records: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.DefineCollection(ctx, collection, table); err != nil {
		return nil, err
	}
	if _, err := st.InsertMany(ctx, collection, records); err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	h := &Harness{
		store:   st,
		records: records,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = engine.New(table, engine.WithCache(cache.New(0)), engine.WithLogger(h.logger))

	result := NewResult()
	for _, c := range scenario.Cases {
		cr, err := h.runCase(ctx, &c)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Name, err)
		}
		for _, o := range cr.Outcomes {
			if msg := check(&c, o); msg != "" {
				result.AddError(fmt.Sprintf("%s [%s]: %s", c.Name, o.Backend, msg))
			}
		}
		result.Cases = append(result.Cases, cr)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"cases", len(scenario.Cases),
		"pass", result.Pass,
	)
	return result, nil
}

// runCase decodes the case's trees once and runs them on each backend.
// A tree that does not decode fails every backend with MALFORMED_AST.
func (h *Harness) runCase(ctx context.Context, c *Case) (CaseResult, error) {
	backends := c.Backends
	if len(backends) == 0 {
		backends = DefaultBackends
	}
	cr := CaseResult{Name: c.Name, Outcomes: make([]Outcome, 0, len(backends))}

	filter, order, err := decodeCase(c)
	if err != nil {
		for _, b := range backends {
			o := Outcome{Backend: b}
			if !recordCompileError(&o, err) {
				return cr, err
			}
			cr.Outcomes = append(cr.Outcomes, o)
		}
		return cr, nil
	}

	for _, b := range backends {
		o := Outcome{Backend: b}
		var runErr error
		switch b {
		case BackendMemory:
			o.IDs, o.Artifacts, runErr = h.runMemory(ctx, filter, order)
		case BackendDocument:
			o.IDs, o.Artifacts, runErr = h.runDocument(ctx, engine.Document, filter, order)
		case BackendDocumentNoPattern:
			o.IDs, o.Artifacts, runErr = h.runDocument(ctx, engine.DocumentBackend(false), filter, order)
		case BackendSQLite:
			o.IDs, o.Artifacts, runErr = h.runSQLite(ctx, filter, order)
		default:
			return cr, fmt.Errorf("unknown backend %q", b)
		}
		if runErr != nil && !recordCompileError(&o, runErr) {
			return cr, fmt.Errorf("%s: %w", b, runErr)
		}
		h.logger.Debug("case executed",
			"case", c.Name,
			"backend", b,
			"matched", len(o.IDs),
			"code", o.Code,
		)
		cr.Outcomes = append(cr.Outcomes, o)
	}
	return cr, nil
}

func (h *Harness) runMemory(ctx context.Context, filter, order ast.Node) ([]string, []Artifact, error) {
	pred, err := engine.CompileFilter(ctx, h.engine, engine.Memory, filter)
	if err != nil {
		return nil, nil, err
	}
	ordering, err := engine.CompileOrder(ctx, h.engine, engine.Memory, order)
	if err != nil {
		return nil, nil, err
	}

	keys := make([]string, len(ordering.Keys()))
	for i, k := range ordering.Keys() {
		keys[i] = strings.Join(k.Path(), ".") + " " + k.Direction.String()
	}
	artifacts := []Artifact{{Name: "order", Text: strings.Join(keys, ", ")}}
	return recordIDs(memory.Apply(h.records, pred, ordering)), artifacts, nil
}

func (h *Harness) runDocument(
	ctx context.Context,
	b engine.Backend[document.Fragment, *document.Filter, document.SortKey, *document.Sort],
	filter, order ast.Node,
) ([]string, []Artifact, error) {
	f, err := engine.CompileFilter(ctx, h.engine, b, filter)
	if err != nil {
		return nil, nil, err
	}
	s, err := engine.CompileOrder(ctx, h.engine, b, order)
	if err != nil {
		return nil, nil, err
	}

	filterJSON, err := f.MarshalExtJSON()
	if err != nil {
		return nil, nil, err
	}
	sortJSON, err := s.MarshalExtJSON()
	if err != nil {
		return nil, nil, err
	}
	artifacts := []Artifact{
		{Name: "filter", Text: string(filterJSON)},
		{Name: "sort", Text: string(sortJSON)},
	}

	found, err := document.NewCollection(h.records).Find(f, s)
	if err != nil {
		return nil, nil, err
	}
	return recordIDs(found), artifacts, nil
}

func (h *Harness) runSQLite(ctx context.Context, filter, order ast.Node) ([]string, []Artifact, error) {
	where, err := engine.CompileFilter(ctx, h.engine, engine.SQLite, filter)
	if err != nil {
		return nil, nil, err
	}
	orderBy, err := engine.CompileOrder(ctx, h.engine, engine.SQLite, order)
	if err != nil {
		return nil, nil, err
	}

	params, err := ir.MarshalCanonical(where.Params)
	if err != nil {
		return nil, nil, err
	}
	artifacts := []Artifact{
		{Name: "where", Text: where.SQL},
		{Name: "params", Text: string(params)},
		{Name: "order", Text: orderBy.SQL()},
	}
	if op := orderBy.Params(); len(op) > 0 {
		text, err := ir.MarshalCanonical(op)
		if err != nil {
			return nil, nil, err
		}
		artifacts = append(artifacts, Artifact{Name: "order_params", Text: string(text)})
	}

	rows, err := h.store.Find(ctx, collection, where, orderBy)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, artifacts, nil
}

// check compares an outcome with the case's expectation and returns a
// message describing the mismatch, or "".
func check(c *Case, o Outcome) string {
	if c.Error != "" {
		if o.Code == "" {
			return fmt.Sprintf("expected error %s, got ids %v", c.Error, o.IDs)
		}
		if o.Code != c.Error {
			return fmt.Sprintf("expected error %s, got %s at %q", c.Error, o.Code, o.Path)
		}
		return ""
	}

	if o.Code != "" {
		return fmt.Sprintf("unexpected error %s at %q", o.Code, o.Path)
	}
	if !slices.Equal(c.Expect, o.IDs) {
		return fmt.Sprintf("expected ids %v, got %v", c.Expect, o.IDs)
	}
	return ""
}

// recordCompileError fills o from a compile error and reports whether err
// was one. Decoding failures count as MALFORMED_AST.
func recordCompileError(o *Outcome, err error) bool {
	var ce *compiler.CompileError
	switch {
	case errors.As(err, &ce):
		o.Code = string(ce.Code)
		o.Path = ce.Path
		return true
	case errors.Is(err, ast.ErrMalformed):
		o.Code = string(compiler.CodeMalformedAST)
		var se *ast.SyntaxError
		if errors.As(err, &se) {
			o.Path = se.Path
		}
		return true
	default:
		return false
	}
}

// decodeCase decodes the case's filter and order. An absent filter is the
// empty object; an absent order is nil.
func decodeCase(c *Case) (filter, order ast.Node, err error) {
	filter = ast.NewObject()
	if !isZero(&c.Filter) {
		if filter, err = ast.DecodeFilterNode(&c.Filter); err != nil {
			return nil, nil, err
		}
	}
	if !isZero(&c.Order) {
		if order, err = ast.DecodeOrderNode(&c.Order); err != nil {
			return nil, nil, err
		}
	}
	return filter, order, nil
}

func isZero(n *yaml.Node) bool {
	return n.Kind == 0
}

// loadTable compiles the scenario's schema and returns the named table.
func loadTable(scenario *Scenario) (*schema.Table, error) {
	src, filename := scenario.SchemaSource, scenario.Name+".cue"
	if scenario.Schema != "" {
		data, err := os.ReadFile(scenario.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema: %w", err)
		}
		src, filename = string(data), scenario.Schema
	}

	tables, err := schema.CompileString(filename, src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	table, ok := tables[scenario.Table]
	if !ok {
		return nil, fmt.Errorf("schema has no table %q", scenario.Table)
	}
	return table, nil
}

// convertRecords converts YAML-decoded records to ir.Object and sorts
// them by id.
func convertRecords(raw []map[string]any) ([]ir.Object, error) {
	records := make([]ir.Object, len(raw))
	for i, rec := range raw {
		v, err := ir.FromAny(rec)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		records[i] = v.(ir.Object)
	}
	slices.SortFunc(records, func(a, b ir.Object) int {
		return cmp.Compare(recordID(a), recordID(b))
	})
	return records, nil
}

func recordID(r ir.Object) string {
	id, _ := r.Get("id").(ir.String)
	return string(id)
}

func recordIDs(records []ir.Object) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = recordID(r)
	}
	return ids
}
