// Package library indexes organized tracks in SQLite and answers browse,
// search, and stats queries over them.
//
// The Index records one row per file the organizer places in the library
// tree, keyed by final path so re-organizing the same target overwrites the
// stale row instead of duplicating it. Browse queries aggregate the flat
// track table into the artist/album hierarchy the API serves; search runs a
// substring match and ranks candidates by fingerprint similarity against the
// query.
//
// The index is derived state: the library tree on disk is authoritative, and
// deleting the database only costs the browse views until files are
// organized again. Schema changes bump the version in index.go; users clear
// the database to adopt the new schema.
package library
