package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/logs"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instrumental.log")
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "one", "two", "three")

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(res.Lines) != 2 || res.Lines[0] != "two" || res.Lines[1] != "three" {
		t.Fatalf("unexpected lines: %#v", res.Lines)
	}
	if res.Offset == 0 {
		t.Fatal("expected offset to advance")
	}
}

func TestTailLimitLargerThanFile(t *testing.T) {
	path := writeLog(t, "only")

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "only" {
		t.Fatalf("unexpected lines: %#v", res.Lines)
	}
}

func TestTailZeroLimitReportsEndOffset(t *testing.T) {
	path := writeLog(t, "one", "two")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(res.Lines) != 0 {
		t.Fatalf("expected no lines, got %#v", res.Lines)
	}
	if res.Offset != info.Size() {
		t.Fatalf("offset = %d, want %d", res.Offset, info.Size())
	}
}

func TestTailResumesFromOffset(t *testing.T) {
	path := writeLog(t, "first", "second")

	first, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 50})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("third\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("resume tail: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "third" {
		t.Fatalf("unexpected resumed lines: %#v", res.Lines)
	}
	if res.Offset <= first.Offset {
		t.Fatalf("offset did not advance: %d -> %d", first.Offset, res.Offset)
	}
}

func TestTailOffsetBeyondSizeClamps(t *testing.T) {
	path := writeLog(t, "short")

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 1 << 20})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(res.Lines) != 0 {
		t.Fatalf("expected no lines past end, got %#v", res.Lines)
	}
}

func TestTailMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail missing file: %v", err)
	}
	if len(res.Lines) != 0 || res.Offset != 0 {
		t.Fatalf("expected empty result, got %#v", res)
	}
}

func TestTailDirectoryFails(t *testing.T) {
	dir := t.TempDir()

	_, err := logs.Tail(context.Background(), dir, logs.TailOptions{Offset: -1, Limit: 5})
	if err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestTailFollowPicksUpNewLines(t *testing.T) {
	path := writeLog(t, "start")

	initial, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func() {
		res, err := logs.Tail(context.Background(), path, logs.TailOptions{
			Offset: initial.Offset,
			Follow: true,
			Wait:   5 * time.Second,
		})
		if err != nil {
			t.Errorf("follow tail: %v", err)
		}
		done <- res
	}()

	time.Sleep(50 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	select {
	case res := <-done:
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("follow tail did not observe appended line")
	}
}

func TestTailFollowHonorsContext(t *testing.T) {
	path := writeLog(t, "start")

	initial, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = logs.Tail(ctx, path, logs.TailOptions{
		Offset: initial.Offset,
		Follow: true,
		Wait:   30 * time.Second,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTailLongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	path := writeLog(t, "short", long)

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(res.Lines))
	}
	if res.Lines[1] != long {
		t.Fatalf("long line truncated to %d bytes", len(res.Lines[1]))
	}
}
