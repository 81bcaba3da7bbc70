// Package organizer places produced audio files into the library tree and
// disposes of their inbox sources.
//
// Organize reads the produced file's tags (falling back to the original
// source's tags and then the filename), builds the
// Artist/Album/NN - Title.ext layout from sanitized path segments, moves the
// file with a cross-device copy fallback, preserves cover art and the artist
// info file, and records the track in the library index. CleanupSource
// applies the configured post-processing policy to the original inbox file,
// and MoveToError routes failed sources into the error directory for manual
// handling.
package organizer
