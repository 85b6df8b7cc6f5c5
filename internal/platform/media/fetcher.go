package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/studypath-backend/internal/pkg/ctxutil"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
)

// FetchKind tells the caller which transcription provider the fetched
// file needs: plain audio goes to speech recognition, a muxed file (no
// separate audio stream available) goes to video transcription.
type FetchKind string

const (
	FetchKindAudio FetchKind = "audio"
	FetchKindVideo FetchKind = "video"
)

type FetchResult struct {
	Path string
	Ext  string
	Kind FetchKind
}

// Fetcher pulls the audio track of a remote video with yt-dlp. It is
// synchronous and should only run inside worker jobs.
type Fetcher interface {
	AssertReady(ctx context.Context) error
	FetchAudio(ctx context.Context, sourceURL string) (*FetchResult, func(), error)
}

type fetcher struct {
	log       *logger.Logger
	ytdlpPath string
	workRoot  string
	timeout   time.Duration
}

func New(log *logger.Logger) Fetcher {
	return &fetcher{
		log:       log.With("service", "media.Fetcher"),
		ytdlpPath: envutil.String("YTDLP_PATH", "yt-dlp"),
		workRoot:  envutil.String("MEDIA_WORK_ROOT", "/tmp/studypath-media"),
		timeout:   envutil.Seconds("MEDIA_FETCH_TIMEOUT_SECONDS", 10*time.Minute),
	}
}

func (f *fetcher) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(f.ytdlpPath); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", f.ytdlpPath, err)
	}
	if err := os.MkdirAll(f.workRoot, 0o755); err != nil {
		return fmt.Errorf("create workRoot: %w", err)
	}
	return nil
}

// FetchAudio prefers a standalone audio stream and falls back to the best
// muxed file when the source offers none. The returned cleanup removes
// the per-fetch scratch directory.
func (f *fetcher) FetchAudio(ctx context.Context, sourceURL string) (*FetchResult, func(), error) {
	ctx = ctxutil.Default(ctx)
	if sourceURL == "" {
		return nil, func() {}, fmt.Errorf("sourceURL required")
	}
	if err := f.AssertReady(ctx); err != nil {
		return nil, func() {}, err
	}

	dir, err := os.MkdirTemp(f.workRoot, "fetch-*")
	if err != nil {
		return nil, func() {}, fmt.Errorf("mkdir fetch dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ytdlpPath,
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-f", "bestaudio[ext=m4a]/bestaudio/best",
		"-o", filepath.Join(dir, "media.%(ext)s"),
		sourceURL,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("yt-dlp fetch failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}

	path, err := onlyFileIn(dir)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("yt-dlp produced no output: %w; out=%s", err, strings.TrimSpace(string(out)))
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	res := &FetchResult{
		Path: path,
		Ext:  ext,
		Kind: classifyFetchKind(ext),
	}
	f.log.Info("media fetched", "url", sourceURL, "ext", ext, "kind", res.Kind)
	return res, cleanup, nil
}

// webm lands on the video side: speech recognition takes no webm
// container, and video transcription handles both audio-only and muxed
// webm files.
func classifyFetchKind(ext string) FetchKind {
	switch ext {
	case "m4a", "mp3", "opus", "ogg", "oga", "wav", "flac", "aac":
		return FetchKindAudio
	case "mp4", "m4v", "webm", "mkv", "mov":
		return FetchKindVideo
	default:
		return FetchKindAudio
	}
}

func onlyFileIn(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no files in %s", dir)
	}
	return newest, nil
}
