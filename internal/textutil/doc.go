// Package textutil holds the text helpers shared across the pipeline:
// filename and path-segment sanitization used when organizing tracks, and
// token fingerprints with cosine similarity used to rank library search
// results.
package textutil
