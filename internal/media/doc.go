// Package media answers questions about audio files: whether a path is
// one, what tags it carries, and where its cover art lives.
//
// Tag reading uses dhowden/tag and degrades to filename parsing when a
// file carries no usable tags, so ingestion never stalls on untagged
// uploads.
package media
