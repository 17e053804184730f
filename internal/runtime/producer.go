package runtime

import (
	"context"
	"fmt"

	"github.com/jward/strata/internal/facts"
)

// ScriptProducer is a facts.Producer backed by a Risor extraction script.
// The script sees these globals in addition to the tree-sitter ones:
//
//	unit_path    slash path of the unit
//	unit_source  file content
//	unit_lang    grammar name for parse_src ("c" or "cpp")
//	is_header    true for header files
//	emit_*       one function per event type, each taking a map
//
// The FileDiscovered event is emitted before the script runs.
type ScriptProducer struct {
	rt     *Runtime
	label  string
	source string
}

// NewScriptProducer loads the script at scriptPath once; every Produce call
// evaluates the same source.
func NewScriptProducer(rt *Runtime, scriptPath string) (*ScriptProducer, error) {
	src, err := rt.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return &ScriptProducer{rt: rt, label: scriptPath, source: src}, nil
}

// Produce implements facts.Producer.
func (p *ScriptProducer) Produce(ctx context.Context, u facts.Unit, emit facts.Emit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := emit(facts.FileDiscovered{Path: u.Path, IsHeader: u.IsHeader}); err != nil {
		return err
	}

	lang, ok := LanguageForFile(u.Path)
	if !ok {
		lang = "cpp"
	}
	e := &emitter{unit: u, emit: emit}
	globals := e.globals()
	globals["unit_path"] = u.Path
	globals["unit_source"] = string(u.Content)
	globals["unit_lang"] = lang
	globals["is_header"] = u.IsHeader

	err := p.rt.eval(ctx, p.source, p.label, globals)
	switch {
	case e.err != nil:
		return e.err
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		return fmt.Errorf("produce %s: %w", u.Path, err)
	}
	return nil
}
