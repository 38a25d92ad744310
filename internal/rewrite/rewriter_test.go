package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/withglyph/glitch/internal/artifact"
	"github.com/withglyph/glitch/internal/callsite"
	"github.com/withglyph/glitch/internal/testutil"
)

const homeQuery = "query Home_Query { me { id } }"

// transformTwice runs the rewriter on src and again on its output, asserting
// the second run leaves the file alone.
func transformTwice(t *testing.T, r *Rewriter, path, src string) (string, bool) {
	t.Helper()
	out, changed := r.Transform(path, []byte(src))
	again, changedAgain := r.Transform(path, out)
	require.False(t, changedAgain, "second run must be unchanged:\n%s", out)
	require.Equal(t, string(out), string(again))
	return string(out), changed
}

func TestTransform_AutomaticQuery_ExportConst(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "Home_Query", "src/routes/+page.ts", homeQuery).
		Build()
	src := "export const data = {};\nconst query = graphql(`" + homeQuery + "`);\n"

	out, changed := transformTwice(t, New(reg, Config{}), "src/routes/+page.ts", src)
	require.True(t, changed)
	require.Equal(t, "export const data = {};\nconst query = data.__glitch_Home_Query;\n", out)
}

func TestTransform_AutomaticQuery_NoExport(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "Home_Query", "src/routes/+layout.ts", homeQuery).
		Build()
	src := "const query = graphql(`" + homeQuery + "`);\n"

	out, changed := transformTwice(t, New(reg, Config{}), "src/routes/+layout.ts", src)
	require.True(t, changed)
	require.Equal(t, "let __data;\nexport { __data as data };\nconst query = __data.__glitch_Home_Query;\n", out)
}

func TestTransform_AutomaticQuery_ExportSpecifier(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "Home_Query", "src/routes/+page.js", homeQuery).
		Build()
	src := "let props;\nexport { props as data };\nconst query = graphql(`" + homeQuery + "`);\n"

	out, changed := transformTwice(t, New(reg, Config{}), "src/routes/+page.js", src)
	require.True(t, changed)
	require.Equal(t, "let props;\nexport { props as data };\nconst query = props.__glitch_Home_Query;\n", out)
}

func TestTransform_AutomaticQuery_OnlyRouteFiles(t *testing.T) {
	// Automatic artifacts declared outside route files never bind to data.
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "Home_Query", "src/lib/home.ts", homeQuery, testutil.Automatic()).
		Build()
	src := "const query = graphql(`" + homeQuery + "`);\n"

	out, changed := New(reg, Config{}).Transform("src/lib/home.ts", []byte(src))
	require.False(t, changed)
	require.Equal(t, src, string(out))
}

func TestTransform_ManualQuery(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "User_Query", "src/lib/user.ts", "query User_Query { me { id } }").
		Build()
	src := "export const user = graphql(`query User_Query { me { id } }`);\n"

	out, changed := transformTwice(t, New(reg, Config{}), "src/lib/user.ts", src)
	require.True(t, changed)
	require.Equal(t,
		"import { createManualQueryStore } from \"@withglyph/glitch/runtime\";\n"+
			"import * as __glitch_base from \"$glitch/base\";\n"+
			"export const user = createManualQueryStore(__glitch_base.DocumentNode_User_Query);\n",
		out)
}

func TestTransform_ManualQuery_ConfiguredModules(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "User_Query", "user.ts", "query User_Query { me { id } }").
		Build()
	cfg := Config{BaseModule: "~/gen/base", RuntimeModule: "~/runtime", StoreFactory: "manualStore"}
	src := "graphql(`query User_Query { me { id } }`);\n"

	out, changed := New(reg, cfg).Transform("user.ts", []byte(src))
	require.True(t, changed)
	require.Equal(t,
		"import { manualStore } from \"~/runtime\";\n"+
			"import * as __glitch_base from \"~/gen/base\";\n"+
			"manualStore(__glitch_base.DocumentNode_User_Query);\n",
		string(out))
}

func TestTransform_Mutation(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "src/lib/Editor.svelte.ts", "mutation A_Mutation { a }").
		WithArtifact(artifact.KindMutation, "B_Mutation", "src/lib/Editor.svelte.ts", "mutation B_Mutation { b }").
		Build()
	src := "const a = graphql(`mutation A_Mutation { a }`);\n" +
		"const b = graphql(`mutation B_Mutation { b }`, { onError });\n"

	out, changed := transformTwice(t, New(reg, Config{}), "src/lib/Editor.svelte.ts", src)
	require.True(t, changed)
	require.Equal(t,
		"import * as __glitch_base_m from \"$glitch/base\";\n"+
			"const a = graphql(\"mutation\", __glitch_base_m.DocumentNode_A_Mutation);\n"+
			"const b = graphql(\"mutation\", { onError }, __glitch_base_m.DocumentNode_B_Mutation);\n",
		out)
}

func TestTransform_Subscription(t *testing.T) {
	const sub = "subscription S_Subscription { s }"
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindSubscription, "S_Subscription", "feed.ts", sub).
		Build()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "with handler",
			src:  "graphql(`" + sub + "`, handler);\n",
			want: "graphql(\"subscription\", handler, __glitch_base_s.DocumentNode_S_Subscription, handler);\n",
		},
		{
			name: "without handler",
			src:  "graphql(`" + sub + "`);\n",
			want: "graphql(\"subscription\", __glitch_base_s.DocumentNode_S_Subscription);\n",
		},
		{
			name: "object argument",
			src:  "graphql(`" + sub + "`, { onData: (d) => d });\n",
			want: "graphql(\"subscription\", { onData: (d) => d }, __glitch_base_s.DocumentNode_S_Subscription, { onData: (d) => d });\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := transformTwice(t, New(reg, Config{}), "feed.ts", tt.src)
			require.True(t, changed)
			require.Equal(t, "import * as __glitch_base_s from \"$glitch/base\";\n"+tt.want, out)
		})
	}
}

func TestTransform_Fragment(t *testing.T) {
	const frag = "fragment Post_fragment on Post { id }"
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindFragment, "Post_fragment", "post.js", frag).
		Build()
	src := "const f = graphql(`" + frag + "`, post);\n"

	out, changed := transformTwice(t, New(reg, Config{}), "post.js", src)
	require.True(t, changed)
	require.Equal(t,
		"import * as __glitch_base_f from \"$glitch/base\";\n"+
			"const f = graphql(\"fragment\", post, __glitch_base_f.DocumentNode_Post_fragment);\n",
		out)
}

func TestTransform_AllKinds_PrependOrder(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "Q_Query", "mixed.ts", "query Q_Query { q }").
		WithArtifact(artifact.KindMutation, "M_Mutation", "mixed.ts", "mutation M_Mutation { m }").
		WithArtifact(artifact.KindSubscription, "S_Subscription", "mixed.ts", "subscription S_Subscription { s }").
		WithArtifact(artifact.KindFragment, "F_fragment", "mixed.ts", "fragment F_fragment on T { f }").
		Build()
	src := "const q = graphql(`query Q_Query { q }`);\n" +
		"const m = graphql(`mutation M_Mutation { m }`);\n" +
		"const s = graphql(`subscription S_Subscription { s }`);\n" +
		"const f = graphql(`fragment F_fragment on T { f }`, ref);\n"

	out, changed := transformTwice(t, New(reg, Config{}), "mixed.ts", src)
	require.True(t, changed)
	require.Equal(t,
		"import * as __glitch_base_f from \"$glitch/base\";\n"+
			"import * as __glitch_base_s from \"$glitch/base\";\n"+
			"import * as __glitch_base_m from \"$glitch/base\";\n"+
			"import { createManualQueryStore } from \"@withglyph/glitch/runtime\";\n"+
			"import * as __glitch_base from \"$glitch/base\";\n"+
			"const q = createManualQueryStore(__glitch_base.DocumentNode_Q_Query);\n"+
			"const m = graphql(\"mutation\", __glitch_base_m.DocumentNode_M_Mutation);\n"+
			"const s = graphql(\"subscription\", __glitch_base_s.DocumentNode_S_Subscription);\n"+
			"const f = graphql(\"fragment\", ref, __glitch_base_f.DocumentNode_F_fragment);\n",
		out)
}

func TestTransform_NoArtifactsForFile(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.ts", "mutation A_Mutation { a }").
		Build()
	src := []byte("const a = graphql(`mutation A_Mutation { a }`);\n")

	out, changed := New(reg, Config{}).Transform("b.ts", src)
	require.False(t, changed)
	require.Equal(t, src, out)
}

func TestTransform_EmptyRegistry(t *testing.T) {
	r := New(artifact.NewRegistry(), Config{})
	for _, path := range []string{"a.ts", "src/routes/+page.svelte", "b.js", "c.css"} {
		src := []byte("graphql(`query X { x }`);\n")
		out, changed := r.Transform(path, src)
		require.False(t, changed, path)
		require.Equal(t, src, out, path)
	}
}

func TestTransform_ExactMatchOnly(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.ts", "mutation A_Mutation { a }").
		Build()
	src := []byte("graphql(`mutation A_Mutation {  a }`);\n")

	out, changed := New(reg, Config{}).Transform("a.ts", src)
	require.False(t, changed)
	require.Equal(t, src, out)
}

func TestTransform_ParseFailure(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.ts", "mutation A_Mutation { a }").
		Build()
	src := []byte("const a = graphql(`mutation A_Mutation { a }`;\nfunction (\n")

	out, changed := New(reg, Config{}).Transform("a.ts", src)
	require.False(t, changed)
	require.Equal(t, src, out)
}

func TestTransform_UnsupportedExtension(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.md", "mutation A_Mutation { a }").
		Build()
	src := []byte("graphql(`mutation A_Mutation { a }`);\n")

	out, changed := New(reg, Config{}).Transform("a.md", src)
	require.False(t, changed)
	require.Equal(t, src, out)
}

func TestTransform_TaggedTemplateUntouched(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.ts", "mutation A_Mutation { a }").
		Build()
	src := []byte("graphql`mutation A_Mutation { a }`;\n")

	out, changed := New(reg, Config{}).Transform("a.ts", src)
	require.False(t, changed)
	require.Equal(t, src, out)
}

func TestTransform_DoubleQuotedLiteral(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindFragment, "F_fragment", "f.ts", "fragment F_fragment on T { f }").
		Build()
	src := "graphql(\"fragment F_fragment on T { f }\", x);\n"

	out, changed := transformTwice(t, New(reg, Config{}), "f.ts", src)
	require.True(t, changed)
	require.Contains(t, out, "graphql(\"fragment\", x, __glitch_base_f.DocumentNode_F_fragment);")
}

func TestTransform_CustomMarker(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.ts", "mutation A_Mutation { a }").
		Build()
	src := "gql(`mutation A_Mutation { a }`);\ngraphql(`mutation A_Mutation { a }`);\n"

	out, changed := New(reg, Config{Marker: "gql"}).Transform("a.ts", []byte(src))
	require.True(t, changed)
	require.Contains(t, string(out), "gql(\"mutation\", __glitch_base_m.DocumentNode_A_Mutation);\ngraphql(`mutation A_Mutation { a }`);")
}

func TestTransform_Svelte(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "Home_Query", "src/routes/+page.svelte", homeQuery).
		Build()
	src := "<script lang=\"ts\">\n" +
		"  export let data;\n" +
		"  const query = graphql(`" + homeQuery + "`);\n" +
		"</script>\n\n<h1>{$query.me.id}</h1>\n"

	out, changed := transformTwice(t, New(reg, Config{}), "src/routes/+page.svelte", src)
	require.True(t, changed)
	require.Equal(t, "<script lang=\"ts\">\n"+
		"  export let data;\n"+
		"  const query = data.__glitch_Home_Query;\n"+
		"</script>\n\n<h1>{$query.me.id}</h1>\n", out)
}

func TestTransform_SveltePrependsInsideScript(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindQuery, "Home_Query", "src/routes/+page.svelte", homeQuery).
		Build()
	src := "<script>\n  const query = graphql(`" + homeQuery + "`);\n</script>\n"

	out, changed := transformTwice(t, New(reg, Config{}), "src/routes/+page.svelte", src)
	require.True(t, changed)
	require.Equal(t, "<script>\nlet __data;\nexport { __data as data };\n  const query = __data.__glitch_Home_Query;\n</script>\n", out)
}

func TestTransform_SvelteBlocksIndependent(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "C.svelte", "mutation A_Mutation { a }").
		Build()
	src := "<script context=\"module\">\n  export const x = 1;\n</script>\n" +
		"<script>\n  const a = graphql(`mutation A_Mutation { a }`);\n</script>\n<p>hi</p>\n"

	out, changed := transformTwice(t, New(reg, Config{}), "C.svelte", src)
	require.True(t, changed)
	require.Equal(t, "<script context=\"module\">\n  export const x = 1;\n</script>\n"+
		"<script>\nimport * as __glitch_base_m from \"$glitch/base\";\n"+
		"  const a = graphql(\"mutation\", __glitch_base_m.DocumentNode_A_Mutation);\n</script>\n<p>hi</p>\n", out)
}

func TestTransform_SvelteCommentOpenerInString(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "M", "C.svelte", "mutation M { m }").
		Build()
	src := "<script>\n  const s = '<!-- <script>';\n  const m = graphql(`mutation M { m }`);\n</script>\n"

	out, state := New(reg, Config{}).TransformContext(context.Background(), "C.svelte", []byte(src))
	require.Equal(t, Modified, state)
	require.Equal(t, "<script>\nimport * as __glitch_base_m from \"$glitch/base\";\n"+
		"  const s = '<!-- <script>';\n"+
		"  const m = graphql(\"mutation\", __glitch_base_m.DocumentNode_M);\n</script>\n", string(out))
}

func TestTransform_StandardFixture(t *testing.T) {
	b := testutil.NewBuilder(t).WithStandardArtifacts()
	reg := b.Build()
	root := b.WriteTree(t.TempDir())
	r := New(reg, Config{})

	out, changed := transformTwice(t, r, "src/lib/Post.svelte", testutil.ReadFile(t, root, "src/lib/Post.svelte"))
	require.True(t, changed)
	require.Contains(t, out, "const post = createManualQueryStore(__glitch_base.DocumentNode_Post_Query);")
	require.Contains(t, out, "const like = graphql(\"mutation\", __glitch_base_m.DocumentNode_Like_Mutation);")
	require.Contains(t, out, "$: fragment = graphql(\"fragment\", _post, __glitch_base_f.DocumentNode_Post_fragment);")

	out, changed = transformTwice(t, r, "src/lib/util.ts", testutil.ReadFile(t, root, "src/lib/util.ts"))
	require.False(t, changed)
	require.Equal(t, testutil.ReadFile(t, root, "src/lib/util.ts"), out)
}

func TestTransform_OnUnmatched(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.ts", "mutation A_Mutation { a }").
		Build()

	var unmatched []string
	r := New(reg, Config{OnUnmatched: func(filePath string, site callsite.Site) {
		unmatched = append(unmatched, filePath+":"+site.Source)
	}})
	src := "graphql(`mutation A_Mutation { a }`);\ngraphql(`query Missing { m }`);\n"

	out, changed := r.Transform("a.ts", []byte(src))
	require.True(t, changed)
	require.Equal(t, []string{"a.ts:query Missing { m }"}, unmatched)

	unmatched = nil
	_, changed = r.Transform("a.ts", out)
	require.False(t, changed)
	require.Equal(t, []string{"a.ts:query Missing { m }"}, unmatched, "rewritten calls are not reported")
}

func TestTransform_KeepsPrologueFirst(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "M", "bin/cli.js", "mutation M { m }").
		WithArtifact(artifact.KindQuery, "Home_Query", "src/routes/+page.js", homeQuery).
		Build()
	r := New(reg, Config{})

	out, changed := transformTwice(t, r, "bin/cli.js", "#!/usr/bin/env node\ngraphql(`mutation M { m }`);\n")
	require.True(t, changed)
	require.Equal(t,
		"#!/usr/bin/env node\n"+
			"import * as __glitch_base_m from \"$glitch/base\";\n"+
			"graphql(\"mutation\", __glitch_base_m.DocumentNode_M);\n",
		out)

	out, changed = transformTwice(t, r, "src/routes/+page.js", "'use strict';\nconst q = graphql(`"+homeQuery+"`);\n")
	require.True(t, changed)
	require.Equal(t,
		"'use strict';\n"+
			"let __data;\n"+
			"export { __data as data };\n"+
			"const q = __data.__glitch_Home_Query;\n",
		out)
}

func TestStrategies_Order(t *testing.T) {
	r := New(artifact.NewRegistry(), Config{})
	var names []string
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	require.Equal(t, []string{"automatic-query", "manual-query", "mutation", "subscription", "fragment"}, names)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "unchanged", Unchanged.String())
	require.Equal(t, "modified", Modified.String())
	require.Equal(t, "skipped", Skipped.String())
}

func TestTransformContext_States(t *testing.T) {
	reg := testutil.NewBuilder(t).
		WithArtifact(artifact.KindMutation, "A_Mutation", "a.ts", "mutation A_Mutation { a }").
		WithArtifact(artifact.KindMutation, "B_Mutation", "b.svelte", "mutation B_Mutation { b }").
		Build()
	r := New(reg, Config{})

	tests := []struct {
		name string
		path string
		src  string
		want State
	}{
		{"rewritten", "a.ts", "graphql(`mutation A_Mutation { a }`);\n", Modified},
		{"no match", "a.ts", "graphql(`mutation Other { a }`);\n", Unchanged},
		{"empty program", "a.ts", "", Unchanged},
		{"parse failure", "a.ts", "const a = graphql(`mutation A_Mutation { a }`;\nfunction (\n", Skipped},
		{"unsupported extension", "a.md", "graphql(`mutation A_Mutation { a }`);\n", Skipped},
		{"svelte without script", "b.svelte", "<p>hello</p>\n", Unchanged},
		{"svelte broken script", "b.svelte", "<script>\nfunction (\n</script>\n", Skipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, state := r.TransformContext(context.Background(), tt.path, []byte(tt.src))
			require.Equal(t, tt.want, state)
			if state != Modified {
				require.Equal(t, tt.src, string(out))
			}
		})
	}
}
