// Package artifact implements the domain model for GraphQL artifacts and the
// registry that the rewriter consults.
//
// An Artifact is one extracted GraphQL construct: a query, mutation,
// subscription or fragment declared by a `graphql(...)` call-site in a source
// file. It is identified for matching purposes by (kind, file path, exact
// source text), and for code generation by its generated name.
//
// # Registry
//
// Registry is populated once per build session (by the extractor, a manifest
// or the artifact store), then sealed. After Seal it is read-only and safe for
// concurrent use by many rewrite workers:
//   - Find returns the artifacts of one kind declared in one file, in
//     registration order
//   - FindBySource performs the exact-text lookup used by the call-site matcher
//   - FindByOrigin narrows queries to automatic or manual ones
//
// Source text is compared byte for byte. No whitespace or comment
// normalisation is applied, so an extractor and a rewriter that read the same
// literal differently will silently miss instead of erroring.
package artifact
