package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// followPollInterval paces re-reads while a follow request waits for new
// lines.
const followPollInterval = 250 * time.Millisecond

const (
	scanBufferInitial = 64 * 1024
	scanBufferMax     = 1024 * 1024
)

// TailOptions shape a single Tail call. A negative Offset requests the last
// Limit lines of the file; a non-negative Offset resumes a previous read at
// that byte position. Follow with a positive Wait keeps polling until a line
// arrives or Wait elapses.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset where the next call
// should resume.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log file at path according to opts. A missing
// file is not an error: the result carries offset zero so callers can retry
// once the daemon starts writing.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	wait := opts.Wait
	if wait < 0 {
		wait = 0
	}

	var res TailResult
	if opts.Offset < 0 {
		res, err = tailLast(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			offset = info.Size()
		}
		res, err = scanFrom(path, offset)
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, err
	}

	if opts.Follow && wait > 0 && len(res.Lines) == 0 {
		return awaitLines(ctx, path, res.Offset, wait)
	}
	return res, nil
}

// tailLast returns the final limit lines and the offset at the end of the
// file. A limit of zero or less skips the lines and just reports the end
// offset.
func tailLast(path string, limit int) (TailResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{}, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if limit <= 0 {
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	ring := make([]string, limit)
	total := 0
	sc := newScanner(f)
	for sc.Scan() {
		ring[total%limit] = sc.Text()
		total++
	}
	if err := sc.Err(); err != nil {
		return TailResult{}, fmt.Errorf("read log: %w", err)
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return TailResult{}, fmt.Errorf("seek log: %w", err)
	}

	count := total
	if count > limit {
		count = limit
	}
	lines := make([]string, 0, count)
	for i := total - count; i < total; i++ {
		lines = append(lines, ring[i%limit])
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

// scanFrom reads whole lines starting at offset and reports where the scan
// stopped.
func scanFrom(path string, offset int64) (TailResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log: %w", err)
	}
	var lines []string
	sc := newScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("read log: %w", err)
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log: %w", err)
	}
	return TailResult{Lines: lines, Offset: pos}, nil
}

// awaitLines polls for lines after offset until one arrives, wait elapses,
// or ctx is cancelled. The file is reopened on every poll so a rotated log
// is picked up at its replacement.
func awaitLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		res, err := scanFrom(path, offset)
		if err != nil || len(res.Lines) > 0 {
			return res, err
		}
		offset = res.Offset
		if !time.Now().Before(deadline) {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newScanner(f *os.File) *bufio.Scanner {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, scanBufferInitial), scanBufferMax)
	return sc
}
