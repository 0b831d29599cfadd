package wiregen

import (
	"go.uber.org/zap"

	"github.com/wiregen/wiregen/internal/gen"
	"github.com/wiregen/wiregen/model"
)

// Options configures a generation run.
type Options struct {
	Log      *zap.Logger
	Symbols  SymbolResolver
	Registry *Registry
}

// Option mutates Options.
type Option func(*Options)

// WithLogger installs a logger; the default is zap.NewNop().
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Log = l } }

// WithSymbols installs the symbol-resolution collaborator.
func WithSymbols(s SymbolResolver) Option { return func(o *Options) { o.Symbols = s } }

// WithRegistry shares a registry across runs, e.g. when several protocols
// emit into one output tree.
func WithRegistry(r *Registry) Option { return func(o *Options) { o.Registry = r } }

// NewOptions applies opts over the defaults. Symbols defaults to nil here and
// is filled per model by Generate.
func NewOptions(opts ...Option) *Options {
	o := &Options{Log: zap.NewNop(), Registry: NewRegistry()}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Artifacts is the result of a generation run: generated functions grouped by
// logical module. File placement and formatting into a package tree is the
// output-writer collaborator's concern.
type Artifacts struct {
	Modules map[string][]gen.Func
}

// Render formats one module into a Go source file.
func (a *Artifacts) Render(module string) ([]byte, error) {
	return gen.RenderFile(gen.File{Package: module, Funcs: a.Modules[module]})
}

// Generate runs the full pipeline for every operation of the model's service:
// request serializer, response parser (with error discrimination over the
// operation's declared error shapes), and the protocol's generic error
// parser. Generation-time failures are collected per operation; one bad
// operation never aborts or corrupts the others.
func Generate(m *model.Model, p Protocol, opts ...Option) (*Artifacts, error) {
	o := NewOptions(opts...)
	if o.Symbols == nil {
		o.Symbols = NewDefaultSymbols(m)
	}
	st := &GenState{Model: m, Registry: o.Registry, Symbols: o.Symbols, Log: o.Log}

	var iss Issues
	ops := m.Operations()
	for _, op := range ops {
		if err := GenerateOperation(st, p, op.ID); err != nil {
			if more, ok := AsIssues(err); ok {
				iss = AppendIssues(iss, more...)
			} else {
				iss = AppendIssues(iss, Issue{Shape: string(op.ID), Protocol: p.Name(), Code: CodeGeneratorFailure, Cause: err, Message: err.Error()})
			}
		}
	}
	if _, err := p.GenericErrorParser(st); err != nil {
		if more, ok := AsIssues(err); ok {
			iss = AppendIssues(iss, more...)
		}
	}
	st.Log.Info("generation complete",
		zap.String("protocol", p.Name()),
		zap.Int("operations", len(ops)),
		zap.Int("functions", st.Registry.Len()),
		zap.Int("issues", len(iss)))

	arts := &Artifacts{Modules: st.Registry.Flush()}
	if len(iss) > 0 {
		return arts, iss
	}
	return arts, nil
}

// GenerateOperation interns the serializer and parser entry points for a
// single operation. It may be called concurrently for independent operations
// sharing one GenState; the registry is the only shared mutable state.
func GenerateOperation(st *GenState, p Protocol, op model.ShapeID) error {
	shape, ok := st.Model.Shape(op)
	if !ok {
		return Issues{{Shape: string(op), Protocol: p.Name(), Code: CodeUnknownShape, Message: "operation shape not in model"}}
	}
	if shape.Kind != model.KindOperation {
		return Issues{{Shape: string(op), Protocol: p.Name(), Code: CodeUnsupportedShape, Message: "not an operation shape"}}
	}
	st.Log.Debug("generating operation", zap.String("operation", string(op)), zap.String("protocol", p.Name()))

	if _, err := p.SerializerFor(st, op); err != nil {
		return err
	}
	if _, err := p.ParserFor(st, op); err != nil {
		return err
	}
	return nil
}
