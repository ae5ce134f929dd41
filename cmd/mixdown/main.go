// Command mixdown mixes a backing track and a vocal recording into a single
// WAV file without running the server.
//
//	mixdown -backing song.mp3 -vocal take.wav -out mix.wav [-lyrics song.srt] [-catalog takes.db]
//
// With -catalog the result is also recorded in a SQLite take store, the same
// schema the server uses with storage.backend "sqlite".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/MrWong99/singalong/internal/config"
	"github.com/MrWong99/singalong/internal/session"
	"github.com/MrWong99/singalong/internal/takestore"
	"github.com/MrWong99/singalong/pkg/audio/wav"
	"github.com/MrWong99/singalong/pkg/lyrics"
	"github.com/MrWong99/singalong/pkg/mixdown"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	faint  = color.New(color.Faint)
)

type options struct {
	backing    string
	vocal      string
	lyricsPath string
	out        string
	catalog    string
	configPath string
	verbose    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	var opts options
	fs := flagSet(&opts)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.backing == "" || opts.vocal == "" {
		red.Fprintln(os.Stderr, "mixdown: -backing and -vocal are required")
		fs.Usage()
		return 2
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mix(ctx, opts, os.Stdout); err != nil {
		red.Fprintf(os.Stderr, "mixdown: %v\n", err)
		return 1
	}
	return 0
}

// flagSet binds the command-line flags to opts. Ogg/Opus decoding is only
// compiled in with the opus build tag, so the help text says so.
func flagSet(opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("mixdown", flag.ContinueOnError)
	fs.StringVar(&opts.backing, "backing", "", "backing track (wav or mp3; ogg with -tags opus)")
	fs.StringVar(&opts.vocal, "vocal", "", "vocal recording (wav or mp3; ogg with -tags opus)")
	fs.StringVar(&opts.lyricsPath, "lyrics", "", "optional subtitle file, summarised after the mix")
	fs.StringVar(&opts.out, "out", "mix.wav", "output WAV path")
	fs.StringVar(&opts.catalog, "catalog", "", "optional SQLite file to record the take in")
	fs.StringVar(&opts.configPath, "config", "", "optional YAML config; only the mix section is used")
	fs.BoolVar(&opts.verbose, "v", false, "log engine stages")
	return fs
}

// summary is what mix reports after a successful run.
type summary struct {
	Out      string
	Bytes    int
	Duration time.Duration
	Elapsed  time.Duration
	TakeID   string
	Lyrics   *lyrics.Result
}

func mix(ctx context.Context, opts options, w io.Writer) error {
	mc := config.Default().Mix
	if opts.configPath != "" {
		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		mc = cfg.Mix
	}

	backing, err := os.ReadFile(opts.backing)
	if err != nil {
		return fmt.Errorf("read backing: %w", err)
	}
	vocal, err := os.ReadFile(opts.vocal)
	if err != nil {
		return fmt.Errorf("read vocal: %w", err)
	}

	engine := session.NewEngine(mc, mixdown.WithLogger(slog.Default()))
	start := time.Now()
	out, err := engine.Mix(ctx, mixdown.Request{Backing: backing, Vocal: vocal})
	if err != nil {
		var me *mixdown.Error
		if errors.As(err, &me) && me.Stage == mixdown.StageDecoding {
			return fmt.Errorf("%s track could not be decoded: %w", me.Track, me.Err)
		}
		return err
	}
	sum := summary{Out: opts.out, Bytes: len(out), Duration: wavDuration(out), Elapsed: time.Since(start)}

	if err := os.WriteFile(opts.out, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if opts.catalog != "" {
		id, err := record(ctx, opts.catalog, &takestore.Take{SessionID: sessionName(opts), WAV: out})
		if err != nil {
			return err
		}
		sum.TakeID = id
	}

	if opts.lyricsPath != "" {
		raw, err := os.ReadFile(opts.lyricsPath)
		if err != nil {
			return fmt.Errorf("read lyrics: %w", err)
		}
		res := lyrics.ParseReport(string(raw))
		sum.Lyrics = &res
	}

	printSummary(w, sum)
	return nil
}

// record stores take in the SQLite catalogue at path and returns its id.
func record(ctx context.Context, path string, take *takestore.Take) (string, error) {
	store, err := takestore.OpenSQLite(ctx, path)
	if err != nil {
		return "", err
	}
	defer store.Close()
	if err := store.Put(ctx, take); err != nil {
		return "", err
	}
	return take.ID, nil
}

// sessionName groups CLI takes by lyric sheet, or by backing file without one.
func sessionName(opts options) string {
	src := opts.lyricsPath
	if src == "" {
		src = opts.backing
	}
	return "cli:" + filepath.Base(src)
}

func wavDuration(b []byte) time.Duration {
	h, err := wav.ReadHeader(b)
	if err != nil || h.SampleRate == 0 {
		return 0
	}
	return time.Duration(h.Samples()) * time.Second / time.Duration(h.SampleRate)
}

func printSummary(w io.Writer, s summary) {
	green.Fprintf(w, "✔ mixed %s\n", s.Out)
	fmt.Fprintf(w, "  %-10s %s\n", "length", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  %-10s %d bytes\n", "size", s.Bytes)
	fmt.Fprintf(w, "  %-10s %s\n", "took", s.Elapsed.Round(time.Millisecond))
	if s.TakeID != "" {
		fmt.Fprintf(w, "  %-10s %s\n", "take", s.TakeID)
	}
	if s.Lyrics == nil {
		return
	}

	var lines, breaks int
	var sungMs int64
	for _, seg := range s.Lyrics.Segments {
		if seg.Instrumental {
			breaks++
		} else {
			lines++
			sungMs += seg.DurationMs()
		}
	}
	sung := time.Duration(sungMs) * time.Millisecond
	fmt.Fprintf(w, "  %-10s %d lines, %d instrumental breaks, %s sung\n", "lyrics", lines, breaks, sung)
	if n := len(s.Lyrics.Segments); n > 0 {
		end := time.Duration(s.Lyrics.Segments[n-1].EndMs) * time.Millisecond
		if end > s.Duration {
			yellow.Fprintf(w, "  ! lyrics end at %s, after the mix ends\n", end)
		}
	}
	if s.Lyrics.Truncated {
		yellow.Fprintf(w, "  ! sheet truncated at line %d: %s\n", s.Lyrics.Line, s.Lyrics.Reason)
	} else {
		faint.Fprintln(w, "  sheet parsed completely")
	}
}
