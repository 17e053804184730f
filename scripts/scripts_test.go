package scripts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/runtime"
	"github.com/jward/strata/internal/store"
	"github.com/jward/strata/scripts"
)

const widgetHeader = `#include "bslma_allocator.h"
#include <vector>

namespace bsl {

class Base {};

class Widget : public Base {
  public:
    Result run(Input in, int n);
  private:
    Helper d_helper;
    struct Impl {};
};

Widget makeWidget(Config cfg);

}
`

func extractCpp(t *testing.T, path, src string) []facts.Event {
	t.Helper()
	rt := runtime.NewRuntime("", runtime.WithRuntimeFS(scripts.FS))
	p, err := runtime.NewScriptProducer(rt, runtime.ExtractionScriptPath("cpp"))
	require.NoError(t, err)

	var events []facts.Event
	err = p.Produce(context.Background(), facts.Unit{Path: path, Content: []byte(src), IsHeader: true}, func(ev facts.Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func types(events []facts.Event) map[string]facts.TypeDeclared {
	out := make(map[string]facts.TypeDeclared)
	for _, ev := range events {
		if td, ok := ev.(facts.TypeDeclared); ok {
			out[td.QualifiedName] = td
		}
	}
	return out
}

func members(events []facts.Event) map[string]facts.MemberDeclared {
	out := make(map[string]facts.MemberDeclared)
	for _, ev := range events {
		if md, ok := ev.(facts.MemberDeclared); ok {
			out[md.QualifiedName] = md
		}
	}
	return out
}

func usages(events []facts.Event, site facts.Site) []string {
	var out []string
	for _, ev := range events {
		if u, ok := ev.(facts.UsageDiscovered); ok && u.Site == site {
			out = append(out, u.Spelling)
		}
	}
	return out
}

func TestCppScript_Includes(t *testing.T) {
	t.Parallel()
	events := extractCpp(t, "bslw_widget.h", widgetHeader)

	var includes []facts.IncludeDiscovered
	for _, ev := range events {
		if inc, ok := ev.(facts.IncludeDiscovered); ok {
			includes = append(includes, inc)
		}
	}
	require.Len(t, includes, 2)
	assert.Equal(t, "bslma_allocator.h", includes[0].Spelling)
	assert.False(t, includes[0].System)
	assert.Equal(t, "vector", includes[1].Spelling)
	assert.True(t, includes[1].System)
}

func TestCppScript_Types(t *testing.T) {
	t.Parallel()
	got := types(extractCpp(t, "bslw_widget.h", widgetHeader))

	require.Contains(t, got, "bsl::Base")
	require.Contains(t, got, "bsl::Widget")
	require.Contains(t, got, "bsl::Widget::Impl")

	assert.Equal(t, store.TypeClass, got["bsl::Widget"].Kind)
	assert.Equal(t, "bsl", got["bsl::Widget"].Namespace)

	impl := got["bsl::Widget::Impl"]
	assert.Equal(t, store.TypeStruct, impl.Kind)
	assert.Equal(t, "bsl::Widget", impl.Parent)
	assert.Equal(t, store.AccessPrivate, impl.Access)
}

func TestCppScript_Members(t *testing.T) {
	t.Parallel()
	events := extractCpp(t, "bslw_widget.h", widgetHeader)
	got := members(events)

	run := got["bsl::Widget::run"]
	assert.Equal(t, facts.MemberMethod, run.Kind)
	assert.Equal(t, store.AccessPublic, run.Access)
	assert.Equal(t, "Result", run.ReturnType)
	assert.Equal(t, []string{"Input", "int"}, run.Params)

	field := got["bsl::Widget::d_helper"]
	assert.Equal(t, facts.MemberField, field.Kind)
	assert.Equal(t, store.AccessPrivate, field.Access)
	assert.Equal(t, "Helper", field.TypeName)

	fn := got["bsl::makeWidget"]
	assert.Equal(t, facts.MemberFunction, fn.Kind)

	assert.Equal(t, []string{"Base"}, usages(events, facts.SiteBase))
	assert.Equal(t, []string{"Helper"}, usages(events, facts.SiteField))
	assert.ElementsMatch(t, []string{"Input", "Config"}, usages(events, facts.SiteParameter))
	assert.ElementsMatch(t, []string{"Result", "Widget"}, usages(events, facts.SiteReturn))
}
