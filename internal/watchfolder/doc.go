// Package watchfolder feeds the ingestion pipeline from the inbox
// directory.
//
// Two change sources are provided: Watcher streams fsnotify events on
// local filesystems, and Poller fingerprints the inbox on an interval
// for mounts where inotify does not deliver (network shares) and for
// tests that need deterministic change reporting. Both normalize raw
// filesystem activity to the top-level inbox entry it belongs to, so an
// album directory settles as one unit instead of leaking its member
// files as separate candidates, and report through the Sink interface
// the stability tracker implements.
//
// The Sweeper completes the flow: on each tick it takes the paths the
// tracker judges stable, classifies them (a lone audio file becomes a
// single, a directory containing audio becomes an album block with one
// member per file), and admits the resulting items into the queue.
package watchfolder
