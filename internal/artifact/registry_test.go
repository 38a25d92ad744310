package artifact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mk(t *testing.T, kind Kind, origin Origin, name, file, source string) *Artifact {
	t.Helper()
	a, err := NewBuilder(kind).Origin(origin).Name(name).FilePath(file).Source(source).Build()
	require.NoError(t, err)
	return a
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)
	require.Empty(t, reg.List())
	require.Zero(t, reg.Len())
	require.False(t, reg.Sealed())
}

func TestRegistry_FindPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	a := mk(t, KindMutation, OriginManual, "A_Mutation", "Editor.svelte", "mutation A { a }")
	b := mk(t, KindMutation, OriginManual, "B_Mutation", "Editor.svelte", "mutation B { b }")
	other := mk(t, KindMutation, OriginManual, "C_Mutation", "Other.svelte", "mutation C { c }")

	require.NoError(t, reg.Add(a))
	require.NoError(t, reg.Add(other))
	require.NoError(t, reg.Add(b))

	require.Equal(t, []*Artifact{a, b}, reg.Find(KindMutation, "Editor.svelte"))
	require.Empty(t, reg.Find(KindQuery, "Editor.svelte"))
	require.True(t, reg.HasFile("Other.svelte"))
	require.False(t, reg.HasFile("Missing.svelte"))
}

func TestRegistry_FindBySource_IsExact(t *testing.T) {
	reg := NewRegistry()
	a := mk(t, KindQuery, OriginAutomatic, "Home_Query", "+page.ts", "{ viewer { id } }")
	require.NoError(t, reg.Add(a))

	got, ok := reg.FindBySource(KindQuery, "+page.ts", "{ viewer { id } }")
	require.True(t, ok)
	require.Same(t, a, got)

	_, ok = reg.FindBySource(KindQuery, "+page.ts", "{ viewer {  id } }")
	require.False(t, ok, "whitespace difference must not match")

	_, ok = reg.FindBySource(KindMutation, "+page.ts", "{ viewer { id } }")
	require.False(t, ok, "lookups are scoped by kind")

	_, ok = reg.FindBySource(KindQuery, "other/+page.ts", "{ viewer { id } }")
	require.False(t, ok, "lookups are scoped by file")
}

func TestRegistry_FindByOrigin(t *testing.T) {
	reg := NewRegistry()
	auto := mk(t, KindQuery, OriginAutomatic, "Page_Query", "+page.svelte", "query Page_Query { a }")
	manual := mk(t, KindQuery, OriginManual, "Search_Query", "+page.svelte", "query Search_Query { b }")
	require.NoError(t, reg.Add(auto))
	require.NoError(t, reg.Add(manual))

	require.Equal(t, []*Artifact{auto}, reg.FindByOrigin(KindQuery, OriginAutomatic, "+page.svelte"))
	require.Equal(t, []*Artifact{manual}, reg.FindByOrigin(KindQuery, OriginManual, "+page.svelte"))
}

func TestRegistry_Add_Errors(t *testing.T) {
	reg := NewRegistry()
	require.ErrorIs(t, reg.Add(nil), ErrNilArtifact)

	a := mk(t, KindQuery, OriginManual, "Q", "a.ts", "query Q { a }")
	require.NoError(t, reg.Add(a))

	dupName := mk(t, KindFragment, OriginManual, "Q", "b.ts", "fragment Q on T { a }")
	require.ErrorIs(t, reg.Add(dupName), ErrDuplicateName)

	dupSource := mk(t, KindQuery, OriginManual, "Q2", "a.ts", "query Q { a }")
	require.ErrorIs(t, reg.Add(dupSource), ErrDuplicateSource)

	sameSourceOtherFile := mk(t, KindQuery, OriginManual, "Q3", "b.ts", "query Q { a }")
	require.NoError(t, reg.Add(sameSourceOtherFile))

	require.Equal(t, 2, reg.Len())
}

func TestRegistry_Seal(t *testing.T) {
	a := mk(t, KindQuery, OriginManual, "Q", "a.ts", "query Q { a }")
	reg, err := NewSealedRegistry(a)
	require.NoError(t, err)
	require.True(t, reg.Sealed())

	b := mk(t, KindQuery, OriginManual, "R", "a.ts", "query R { a }")
	require.ErrorIs(t, reg.Add(b), ErrSealed)

	got, ok := reg.FindByName("Q")
	require.True(t, ok)
	require.Same(t, a, got)
}

func TestRegistry_Filter(t *testing.T) {
	q := mk(t, KindQuery, OriginManual, "Q", "a.ts", "query Q { a }")
	m := mk(t, KindMutation, OriginManual, "M", "b.ts", "mutation M { a }")
	reg, err := NewSealedRegistry(q, m)
	require.NoError(t, err)

	require.Len(t, reg.Filter("", ""), 2)
	require.Equal(t, []*Artifact{m}, reg.Filter(KindMutation, ""))
	require.Equal(t, []*Artifact{q}, reg.Filter("", "a.ts"))
	require.Empty(t, reg.Filter(KindFragment, "a.ts"))
}
