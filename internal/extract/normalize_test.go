package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Names(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(16)
	require.NoError(t, err)

	tests := []struct {
		spelling string
		params   []string
		want     []string
	}{
		{"Foo", nil, []string{"Foo"}},
		{"const Foo&", nil, []string{"Foo"}},
		{"volatile ns::Foo * const *", nil, []string{"ns::Foo"}},
		{"Foo&&", nil, []string{"Foo"}},
		{"Foo[16]", nil, []string{"Foo"}},
		{"struct Foo", nil, []string{"Foo"}},
		{"typename T::value_type", []string{"T"}, nil},
		{"::Foo", nil, []string{"::Foo"}},
		{"C<D>", nil, []string{"C", "D"}},
		{"std::map<Key, std::vector<Value*>>", nil, []string{"std::map", "Key", "std::vector", "Value"}},
		{"Outer<int>::Inner", nil, []string{"Outer::Inner"}},
		{"std::array<Foo, 3>", nil, []string{"std::array", "Foo"}},
		{"unsigned long long", nil, nil},
		{"std::size_t", nil, nil},
		{"T", []string{"T"}, nil},
		{"Holder<T, Bar>", []string{"T"}, []string{"Holder", "Bar"}},
		{"void (*)(Foo, const Bar&)", nil, []string{"Foo", "Bar"}},
		{"decltype(x.get()) ", nil, nil},
		{"Foo<Foo>", nil, []string{"Foo"}},
	}

	for _, tt := range tests {
		got := n.Names(tt.spelling, tt.params)
		if len(tt.want) == 0 {
			assert.Empty(t, got, tt.spelling)
			continue
		}
		assert.Equal(t, tt.want, got, tt.spelling)
	}
}

func TestNormalizer_CacheReturnsCopies(t *testing.T) {
	t.Parallel()

	n, err := NewNormalizer(4)
	require.NoError(t, err)

	first := n.Names("A<B>", nil)
	first[0] = "mutated"
	assert.Equal(t, []string{"A", "B"}, n.Names("A<B>", nil))
	assert.Equal(t, 1, n.Len())

	// Template parameters are part of the cache key.
	assert.Equal(t, []string{"A"}, n.Names("A<B>", []string{"B"}))
	assert.Equal(t, 2, n.Len())
}
