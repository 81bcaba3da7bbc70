package organizer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/organizer"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/testsupport"
)

func TestOrganizePlacesFileUnderArtistAlbum(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil, nil)

	produced := filepath.Join(cfg.Paths.OutputDir, "job-1", "Miles Davis - So What.mp3")
	testsupport.WriteFile(t, produced, 512)

	placement, err := org.Organize(context.Background(), organizer.Request{ProducedPath: produced})
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}

	want := filepath.Join(cfg.Paths.LibraryDir, "Miles Davis", "Unknown Album", "So What.mp3")
	if placement.FinalPath != want {
		t.Fatalf("expected final path %s, got %s", want, placement.FinalPath)
	}
	if placement.Artist != "Miles Davis" || placement.Album != "Unknown Album" || placement.Title != "So What" {
		t.Fatalf("unexpected placement: %+v", placement)
	}

	info, err := os.Stat(placement.FinalPath)
	if err != nil {
		t.Fatalf("stat final file: %v", err)
	}
	if info.Size() != 512 {
		t.Fatalf("expected 512 bytes, got %d", info.Size())
	}
	if _, err := os.Stat(produced); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected produced file to be moved, stat err: %v", err)
	}
}

func TestOrganizeFillsGapsFromSourceTags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil, nil)

	produced := filepath.Join(cfg.Paths.OutputDir, "job-2", "mix.mp3")
	testsupport.WriteFile(t, produced, 256)
	source := filepath.Join(cfg.Paths.InboxDir, "02 - Queen - Bohemian.flac")
	testsupport.WriteFile(t, source, 256)

	placement, err := org.Organize(context.Background(), organizer.Request{
		ProducedPath: produced,
		SourcePath:   source,
	})
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}

	if placement.Artist != "Queen" {
		t.Fatalf("expected artist from source tags, got %q", placement.Artist)
	}
	if placement.TrackNum != 2 {
		t.Fatalf("expected track number from source tags, got %d", placement.TrackNum)
	}
	if base := filepath.Base(placement.FinalPath); base != "02 - Mix.mp3" {
		t.Fatalf("expected track-prefixed name, got %s", base)
	}
}

func TestOrganizeResolvesNameConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil, nil)
	ctx := context.Background()

	first := filepath.Join(cfg.Paths.OutputDir, "a", "Artist - Title.mp3")
	testsupport.WriteFile(t, first, 64)
	second := filepath.Join(cfg.Paths.OutputDir, "b", "Artist - Title.mp3")
	testsupport.WriteFile(t, second, 64)

	firstPlacement, err := org.Organize(ctx, organizer.Request{ProducedPath: first})
	if err != nil {
		t.Fatalf("first Organize failed: %v", err)
	}
	secondPlacement, err := org.Organize(ctx, organizer.Request{ProducedPath: second})
	if err != nil {
		t.Fatalf("second Organize failed: %v", err)
	}

	if filepath.Base(firstPlacement.FinalPath) != "Title.mp3" {
		t.Fatalf("unexpected first name: %s", firstPlacement.FinalPath)
	}
	if filepath.Base(secondPlacement.FinalPath) != "Title (1).mp3" {
		t.Fatalf("expected conflict suffix, got %s", secondPlacement.FinalPath)
	}
	for _, placement := range []*organizer.Placement{firstPlacement, secondPlacement} {
		if _, err := os.Stat(placement.FinalPath); err != nil {
			t.Fatalf("stat %s: %v", placement.FinalPath, err)
		}
	}
}

func TestOrganizeRecordsTrackInIndex(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	index := testsupport.MustOpenLibraryIndex(t, cfg)
	org := organizer.New(cfg, index, nil)

	produced := filepath.Join(cfg.Paths.OutputDir, "job-9", "Artist - Ballad.mp3")
	testsupport.WriteFile(t, produced, 2048)
	source := filepath.Join(cfg.Paths.InboxDir, "ballad-source.mp3")
	testsupport.WriteFile(t, source, 64)

	placement, err := org.Organize(context.Background(), organizer.Request{
		ProducedPath: produced,
		SourcePath:   source,
		JobID:        "job-9",
	})
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}

	track, err := index.TrackByPath(context.Background(), placement.FinalPath)
	if err != nil {
		t.Fatalf("TrackByPath failed: %v", err)
	}
	if track == nil {
		t.Fatal("expected the organized track in the index")
	}
	if track.Artist != "Artist" || track.Title != "Ballad" {
		t.Fatalf("unexpected index row: %+v", track)
	}
	if track.JobID != "job-9" {
		t.Fatalf("expected job id recorded, got %q", track.JobID)
	}
	if track.SourcePath != source {
		t.Fatalf("expected source path recorded, got %q", track.SourcePath)
	}
	if track.SizeBytes != 2048 {
		t.Fatalf("expected size 2048, got %d", track.SizeBytes)
	}
}

func TestOrganizePreservesFolderCoverArt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil, nil)

	source := filepath.Join(cfg.Paths.InboxDir, "Great Album", "01 - Opener.mp3")
	testsupport.WriteFile(t, source, 128)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "Great Album", "cover.jpg"), 96)

	produced := filepath.Join(cfg.Paths.OutputDir, "job-3", "Band - Opener.mp3")
	testsupport.WriteFile(t, produced, 128)

	placement, err := org.Organize(context.Background(), organizer.Request{
		ProducedPath: produced,
		SourcePath:   source,
	})
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}

	cover := filepath.Join(filepath.Dir(placement.FinalPath), "cover.jpg")
	info, err := os.Stat(cover)
	if err != nil {
		t.Fatalf("expected cover art beside the track: %v", err)
	}
	if info.Size() != 96 {
		t.Fatalf("expected cover copy of 96 bytes, got %d", info.Size())
	}
}

func TestOrganizeSkipsCoverArtWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Processing.PreserveCoverArt = false
	org := organizer.New(cfg, nil, nil)

	source := filepath.Join(cfg.Paths.InboxDir, "Great Album", "01 - Opener.mp3")
	testsupport.WriteFile(t, source, 128)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.InboxDir, "Great Album", "cover.jpg"), 96)

	produced := filepath.Join(cfg.Paths.OutputDir, "job-4", "Band - Opener.mp3")
	testsupport.WriteFile(t, produced, 128)

	placement, err := org.Organize(context.Background(), organizer.Request{
		ProducedPath: produced,
		SourcePath:   source,
	})
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}

	cover := filepath.Join(filepath.Dir(placement.FinalPath), "cover.jpg")
	if _, err := os.Stat(cover); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no cover art, stat err: %v", err)
	}
}

func TestOrganizeWritesArtistInfoOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil, nil)
	ctx := context.Background()

	first := filepath.Join(cfg.Paths.OutputDir, "a", "Band - One.mp3")
	testsupport.WriteFile(t, first, 64)
	if _, err := org.Organize(ctx, organizer.Request{ProducedPath: first}); err != nil {
		t.Fatalf("Organize failed: %v", err)
	}

	nfoPath := filepath.Join(cfg.Paths.LibraryDir, "Band", "artist.nfo")
	data, err := os.ReadFile(nfoPath)
	if err != nil {
		t.Fatalf("expected artist.nfo: %v", err)
	}
	if !strings.Contains(string(data), "<name>Band</name>") {
		t.Fatalf("artist.nfo missing name element: %s", data)
	}

	// A second organize for the same artist must not clobber the file.
	if err := os.WriteFile(nfoPath, []byte("edited"), 0o644); err != nil {
		t.Fatalf("rewrite nfo: %v", err)
	}
	second := filepath.Join(cfg.Paths.OutputDir, "b", "Band - Two.mp3")
	testsupport.WriteFile(t, second, 64)
	if _, err := org.Organize(ctx, organizer.Request{ProducedPath: second}); err != nil {
		t.Fatalf("second Organize failed: %v", err)
	}
	data, err = os.ReadFile(nfoPath)
	if err != nil {
		t.Fatalf("reread nfo: %v", err)
	}
	if string(data) != "edited" {
		t.Fatalf("expected artist.nfo untouched, got %s", data)
	}
}

func TestOrganizeRejectsMissingInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil, nil)

	_, err := org.Organize(context.Background(), organizer.Request{
		ProducedPath: filepath.Join(cfg.Paths.OutputDir, "gone.mp3"),
	})
	if err == nil {
		t.Fatal("expected error for missing produced file")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := org.Organize(context.Background(), organizer.Request{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty request, got %v", err)
	}
}

func TestOrganizeSanitizesHostileTags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	org := organizer.New(cfg, nil, nil)

	// The filename-derived artist carries characters that must never reach
	// the filesystem layout.
	produced := filepath.Join(cfg.Paths.OutputDir, "j", "A?C - Strange*Name.mp3")
	testsupport.WriteFile(t, produced, 64)

	placement, err := org.Organize(context.Background(), organizer.Request{ProducedPath: produced})
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}
	rel, err := filepath.Rel(cfg.Paths.LibraryDir, placement.FinalPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		t.Fatalf("final path escaped the library: %s", placement.FinalPath)
	}
	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if strings.ContainsAny(segment, `<>:"\|?*`) {
			t.Fatalf("segment %q kept a forbidden character", segment)
		}
	}
}
