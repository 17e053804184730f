package extract

import (
	"testing"

	"github.com/jward/strata/internal/facts"
	"github.com/jward/strata/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	nsN      = facts.Scope{Kind: facts.ScopeNamespace, Name: "n"}
	typeC    = facts.Scope{Kind: facts.ScopeType, Name: "n::C"}
	lambda   = facts.Scope{Kind: facts.ScopeLambda}
	freeFunc = facts.Scope{Kind: facts.ScopeFunction, Name: "n::helper"}
)

func method(access store.Access) facts.Scope {
	return facts.Scope{Kind: facts.ScopeMethod, Name: "n::C::m", Access: access}
}

func TestClassify_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		usage   facts.UsageDiscovered
		want    store.EdgeKind
		wantSrc store.Ref
	}{
		{
			name:  "base specifier",
			usage: facts.UsageDiscovered{Site: facts.SiteBase, Context: []facts.Scope{nsN, typeC}},
			want:  store.EdgeIsA,
		},
		{
			name:  "public method parameter",
			usage: facts.UsageDiscovered{Site: facts.SiteParameter, Context: []facts.Scope{nsN, typeC, method(store.AccessPublic)}},
			want:  store.EdgeUsesInTheInterface,
		},
		{
			name:  "protected method return",
			usage: facts.UsageDiscovered{Site: facts.SiteReturn, Context: []facts.Scope{nsN, typeC, method(store.AccessProtected)}},
			want:  store.EdgeUsesInTheInterface,
		},
		{
			name:  "private method parameter",
			usage: facts.UsageDiscovered{Site: facts.SiteParameter, Context: []facts.Scope{nsN, typeC, method(store.AccessPrivate)}},
			want:  store.EdgeUsesInTheImplementation,
		},
		{
			name:  "public field",
			usage: facts.UsageDiscovered{Site: facts.SiteField, Access: store.AccessPublic, Context: []facts.Scope{nsN, typeC}},
			want:  store.EdgeUsesInTheInterface,
		},
		{
			name:  "private field",
			usage: facts.UsageDiscovered{Site: facts.SiteField, Access: store.AccessPrivate, Context: []facts.Scope{nsN, typeC}},
			want:  store.EdgeUsesInTheImplementation,
		},
		{
			name:  "local variable in public method",
			usage: facts.UsageDiscovered{Site: facts.SiteLocal, Context: []facts.Scope{nsN, typeC, method(store.AccessPublic)}},
			want:  store.EdgeUsesInTheImplementation,
		},
		{
			name:  "body of public method",
			usage: facts.UsageDiscovered{Site: facts.SiteBody, Context: []facts.Scope{nsN, typeC, method(store.AccessPublic)}},
			want:  store.EdgeUsesInTheImplementation,
		},
		{
			name: "lambda parameter in public method",
			usage: facts.UsageDiscovered{Site: facts.SiteParameter,
				Context: []facts.Scope{nsN, typeC, method(store.AccessPublic), lambda}},
			want: store.EdgeUsesInTheInterface,
		},
		{
			name: "nested lambda parameter in private method",
			usage: facts.UsageDiscovered{Site: facts.SiteParameter, Access: store.AccessPublic,
				Context: []facts.Scope{nsN, typeC, method(store.AccessPrivate), lambda, lambda}},
			want: store.EdgeUsesInTheImplementation,
		},
		{
			name:    "free function parameter",
			usage:   facts.UsageDiscovered{Site: facts.SiteParameter, Context: []facts.Scope{nsN, freeFunc}},
			want:    store.EdgeUsesInTheInterface,
			wantSrc: store.Ref{Kind: store.KindFunction, QualifiedName: "n::helper"},
		},
		{
			name:    "free function body",
			usage:   facts.UsageDiscovered{Site: facts.SiteBody, Context: []facts.Scope{nsN, freeFunc}},
			want:    store.EdgeUsesInTheImplementation,
			wantSrc: store.Ref{Kind: store.KindFunction, QualifiedName: "n::helper"},
		},
		{
			name:    "lambda parameter in free function",
			usage:   facts.UsageDiscovered{Site: facts.SiteParameter, Context: []facts.Scope{nsN, freeFunc, lambda}},
			want:    store.EdgeUsesInTheImplementation,
			wantSrc: store.Ref{Kind: store.KindFunction, QualifiedName: "n::helper"},
		},
		{
			name: "field of local class",
			usage: facts.UsageDiscovered{Site: facts.SiteField, Access: store.AccessPublic,
				Context: []facts.Scope{nsN, typeC, method(store.AccessPublic), {Kind: facts.ScopeType, Name: "Local"}}},
			want: store.EdgeUsesInTheImplementation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, ok := Classify(tt.usage)
			require.True(t, ok)
			assert.Equal(t, tt.want, c.Kind)
			wantSrc := tt.wantSrc
			if wantSrc.IsZero() {
				wantSrc = store.Ref{Kind: store.KindType, QualifiedName: "n::C"}
			}
			assert.Equal(t, wantSrc, c.Source)
			assert.Equal(t, "n", c.Scope[:1])
		})
	}
}

func TestClassify_PublicParameterNeverImplementation(t *testing.T) {
	t.Parallel()

	c, ok := Classify(facts.UsageDiscovered{Site: facts.SiteParameter, Context: []facts.Scope{typeC, method(store.AccessPublic)}})
	require.True(t, ok)
	assert.NotEqual(t, store.EdgeUsesInTheImplementation, c.Kind)

	c, ok = Classify(facts.UsageDiscovered{Site: facts.SiteParameter, Context: []facts.Scope{typeC, method(store.AccessPrivate)}})
	require.True(t, ok)
	assert.NotEqual(t, store.EdgeUsesInTheInterface, c.Kind)
}

func TestClassify_NoSource(t *testing.T) {
	t.Parallel()

	_, ok := Classify(facts.UsageDiscovered{Site: facts.SiteBody, Context: []facts.Scope{nsN}})
	assert.False(t, ok)
	_, ok = Classify(facts.UsageDiscovered{Site: facts.SiteBody})
	assert.False(t, ok)
}

func TestClassify_ScopeIsInnermostTypeOrNamespace(t *testing.T) {
	t.Parallel()

	c, ok := Classify(facts.UsageDiscovered{Site: facts.SiteBody, Context: []facts.Scope{nsN, typeC, method(store.AccessPublic)}})
	require.True(t, ok)
	assert.Equal(t, "n::C", c.Scope)

	c, ok = Classify(facts.UsageDiscovered{Site: facts.SiteBody, Context: []facts.Scope{nsN, freeFunc}})
	require.True(t, ok)
	assert.Equal(t, "n", c.Scope)
}
