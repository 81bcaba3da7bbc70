// Package queueaccess gives the CLI one door to queue and job state. When
// the daemon serves its socket, commands go through IPC; otherwise the
// package falls back to the JSON stores on disk, which is safe because the
// daemon holds its file lock only while running. Mutations that need live
// components, such as pausing dispatch or starting a job, refuse to run
// offline with ErrRequiresDaemon.
package queueaccess
