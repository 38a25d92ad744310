package testutil

import "github.com/withglyph/glitch/internal/artifact"

// Standard fixture sources.
const (
	HomeQuery        = "\n    query Home_Query {\n      me { id name }\n    }\n  "
	PostQuery        = "query Post_Query { post(id: 1) { id title } }"
	LikeMutation     = "mutation Like_Mutation($id: ID!) { like(id: $id) { id } }"
	FeedSubscription = "subscription Feed_Subscription { feed { id } }"
	PostFragment     = "fragment Post_fragment on Post { id title }"
)

// WithStandardArtifacts adds a small app: a page with an automatic query, a
// component with a manual query, a mutation, a subscription and a fragment,
// together with the matching source files.
//
// Structure:
//
//	src/routes/+page.svelte      Home_Query (automatic)
//	src/lib/Post.svelte          Post_Query, Like_Mutation, Post_fragment
//	src/lib/feed.ts              Feed_Subscription
func (b *Builder) WithStandardArtifacts() *Builder {
	return b.
		WithArtifact(artifact.KindQuery, "Home_Query", "src/routes/+page.svelte", HomeQuery).
		WithArtifact(artifact.KindQuery, "Post_Query", "src/lib/Post.svelte", PostQuery).
		WithArtifact(artifact.KindMutation, "Like_Mutation", "src/lib/Post.svelte", LikeMutation).
		WithArtifact(artifact.KindFragment, "Post_fragment", "src/lib/Post.svelte", PostFragment).
		WithArtifact(artifact.KindSubscription, "Feed_Subscription", "src/lib/feed.ts", FeedSubscription).
		WithFile("src/routes/+page.svelte", "<script lang=\"ts\">\n  const query = graphql(`"+HomeQuery+"`);\n</script>\n\n<h1>{$query.me.name}</h1>\n").
		WithFile("src/lib/Post.svelte", "<script>\n"+
			"  export let _post;\n"+
			"  const post = graphql(`"+PostQuery+"`);\n"+
			"  const like = graphql(`"+LikeMutation+"`);\n"+
			"  $: fragment = graphql(`"+PostFragment+"`, _post);\n"+
			"</script>\n\n<button on:click={() => like({ id: $post.id })}>{$fragment.title}</button>\n").
		WithFile("src/lib/feed.ts", "export const feed = graphql(`"+FeedSubscription+"`, {\n  onData: (data) => console.log(data),\n});\n").
		WithFile("src/lib/util.ts", "export const add = (a: number, b: number) => a + b;\n").
		WithFile("README.md", "# app\n")
}
