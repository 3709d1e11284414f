package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/himanishpuri/SongSleuth/pkg/models"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth"
	"github.com/himanishpuri/SongSleuth/pkg/songsleuth/stream"
)

var audioExts = map[string]bool{
	".wav": true, ".mp3": true, ".flac": true, ".m4a": true, ".ogg": true, ".aac": true,
}

func handleAdd(args []string) {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	title := addCmd.String("title", "", "Song title (default: tags, then file name)")
	artist := addCmd.String("artist", "", "Artist name (default: tags, then \"Unknown Artist\")")
	positional, _ := splitArgs(addCmd, args)
	if len(positional) != 1 {
		fmt.Println("Usage: songsleuth add <audio_file> [-title <title>] [-artist <artist>]")
		os.Exit(1)
	}
	audioPath := positional[0]

	svc := mustService()
	defer svc.Close()

	fmt.Println("🎵 Processing audio file...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := svc.IndexFile(ctx, audioPath, *title, *artist)
	if err != nil {
		fatal("Failed to add song", err)
	}

	if res.Skipped {
		success.Println("\n✅ Song already indexed, nothing to do")
	} else {
		success.Println("\n✅ Successfully added song to the index!")
	}
	printSong(res.Song)
}

// collectAudioFiles walks dir for files with a known audio extension.
func collectAudioFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audioExts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func handleAddDir(args []string) {
	dirCmd := flag.NewFlagSet("add-dir", flag.ExitOnError)
	workers := dirCmd.Int("workers", 0, "Parallel workers (default: number of CPUs)")
	positional, _ := splitArgs(dirCmd, args)
	if len(positional) != 1 {
		fmt.Println("Usage: songsleuth add-dir <dir> [-workers <n>]")
		os.Exit(1)
	}

	files, err := collectAudioFiles(positional[0])
	if err != nil {
		fatal("Failed to scan directory", err)
	}
	if len(files) == 0 {
		fmt.Println("📭 No audio files found")
		return
	}
	fmt.Printf("📂 Found %d audio file(s)\n", len(files))

	svc := mustService()
	defer svc.Close()

	jobs := make([]songsleuth.IndexJob, len(files))
	for i, f := range files {
		jobs[i] = songsleuth.IndexJob{Path: f}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(jobs)),
		mpb.PrependDecorators(
			decor.Name("Indexing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)

	start := time.Now()
	last := start
	results, err := svc.IndexBatch(ctx, jobs, *workers, func(songsleuth.BatchResult) {
		bar.EwmaIncrement(time.Since(last))
		last = time.Now()
	})
	bar.Abort(false)
	p.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal("Batch indexing failed", err)
	}

	var added, skipped, failed, fps int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			failure.Printf("   ✗ %s: %v\n", r.Job.Path, r.Err)
		case r.Result.Skipped:
			skipped++
		case r.Result.Song.ID != "":
			added++
			fps += r.Result.Fingerprints
		}
	}
	success.Printf("\n✅ Added %d, skipped %d, failed %d in %s\n", added, skipped, failed, time.Since(start).Round(time.Millisecond))
	fmt.Printf("   %s fingerprints stored\n", humanize.Comma(int64(fps)))
}

func handleMatch(args []string) {
	matchCmd := flag.NewFlagSet("match", flag.ExitOnError)
	limit := matchCmd.Int("limit", 10, "Maximum number of candidates to show")
	positional, _ := splitArgs(matchCmd, args)
	if len(positional) != 1 {
		fmt.Println("Usage: songsleuth match <audio_file> [-limit <n>]")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	fmt.Println("🔍 Analyzing audio file...")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, err := svc.IdentifyFile(ctx, positional[0], *limit)
	if err != nil {
		fatal("Failed to match song", err)
	}
	if len(results) == 0 {
		failure.Println("\n❌ No matches found in the index")
		return
	}

	success.Printf("\n✅ Found %d match(es)!\n\n", len(results))
	for i, r := range results {
		printMatch(i+1, r)
	}
}

func handleListen(args []string) {
	listenCmd := flag.NewFlagSet("listen", flag.ExitOnError)
	useStdin := listenCmd.Bool("stdin", false, "Read mono s16le PCM from stdin instead of the microphone")
	inRate := listenCmd.Int("in-rate", 44100, "Sample rate of the stdin stream")
	timeout := listenCmd.Duration("timeout", 20*time.Second, "Give up after this long without a match")
	listenCmd.Parse(args)

	svc := mustService()
	defer svc.Close()

	var src stream.ChunkSource
	if *useStdin {
		src = stream.Resampled(stream.NewPCMSource(os.Stdin), *inRate, svc.SampleRate())
		fmt.Println("🎧 Listening on stdin...")
	} else {
		mic, err := openMicrophone(svc.SampleRate())
		if err != nil {
			fatal("Failed to open microphone", err)
		}
		defer mic.Close()
		src = mic
		fmt.Println("🎤 Listening... Press Ctrl+C to stop")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout+5*time.Second)
	defer cancel()

	out, err := svc.Listen(ctx, src)
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal("Listening failed", err)
	}

	switch out.State {
	case stream.Detected:
		success.Printf("\n✅ Detected after %s (%d window(s))\n\n", out.Elapsed.Round(100*time.Millisecond), out.Windows)
		printMatch(1, out.Result)
	case stream.TimedOut:
		failure.Printf("\n⏱  No song detected within %s\n", out.Elapsed.Round(time.Second))
	default:
		failure.Printf("\n❌ No song detected (%s)\n", out.State)
	}
}

func handleList() {
	svc, err := createService()
	if err != nil {
		fatal("Failed to create service", err)
	}
	defer svc.Close()

	songs, err := svc.ListSongs(context.Background())
	if err != nil {
		fatal("Failed to list songs", err)
	}
	if len(songs) == 0 {
		fmt.Println("\n📭 No songs in the index")
		return
	}

	var total int64
	fmt.Printf("\n📚 Found %d song(s):\n\n", len(songs))
	for i, song := range songs {
		fmt.Printf("%d. \"%s\" by %s\n", i+1, song.Title, song.Artist)
		faint.Printf("   ID: %s\n", song.ID)
		printDetails(song)
		total += int64(song.FingerprintCount)
		fmt.Println()
	}
	fmt.Printf("%s fingerprints in total\n", humanize.Comma(total))
}

func handleDelete(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: songsleuth delete <song_id>")
		os.Exit(1)
	}
	songID := args[0]

	svc, err := createService()
	if err != nil {
		fatal("Failed to create service", err)
	}
	defer svc.Close()

	ctx := context.Background()
	song, err := svc.GetSong(ctx, songID)
	if err != nil {
		fatal(fmt.Sprintf("Song %s not found", songID), err)
	}
	if err := svc.DeleteSong(ctx, songID); err != nil {
		fatal("Failed to delete song", err)
	}

	success.Println("\n✅ Successfully deleted song:")
	printSong(*song)
}

func printSong(song models.Song) {
	fmt.Printf("   ID:      %s\n", song.ID)
	fmt.Printf("   Title:   %s\n", song.Title)
	fmt.Printf("   Artist:  %s\n", song.Artist)
	printDetails(song)
}

func printDetails(song models.Song) {
	if song.DurationMs > 0 {
		d := song.DurationMs / 1000
		fmt.Printf("   Duration: %d:%02d\n", d/60, d%60)
	}
	fmt.Printf("   Fingerprints: %s\n", humanize.Comma(int64(song.FingerprintCount)))
	if !song.CreatedAt.IsZero() {
		fmt.Printf("   Added: %s\n", humanize.Time(song.CreatedAt))
	}
}

func printMatch(rank int, r models.MatchResult) {
	fmt.Printf("%d. \"%s\" by %s\n", rank, r.Title, r.Artist)
	fmt.Printf("   Score: %d/%d | Confidence: %.1f%% | Offset: %s\n",
		r.Score, r.QueryCount, r.Confidence*100, time.Duration(r.OffsetMs)*time.Millisecond)
	faint.Printf("   ID: %s\n\n", r.SongID)
}
