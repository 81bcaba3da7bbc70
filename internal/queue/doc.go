// Package queue persists ingestion work items in a JSON-backed store and
// exposes the manager that drives their lifecycle.
//
// The Store holds the whole collection in one queue.json file: every
// operation reloads it, mutates it under a store-wide lock, and rewrites it
// through an atomic temp-file rename. A missing or corrupt file loads as an
// empty queue so damaged state never stalls ingestion; the next persist
// rewrites the file from the loaded state.
//
// The Manager is the single writer of queue state. It admits items from the
// ingestion sweeper, schedules dispatch by priority rank and detection time,
// and keeps members of one album block mutually exclusive: while a block has
// an item processing it yields no further items until that item reaches done
// or error.
package queue
