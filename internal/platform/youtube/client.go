package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/httpx"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
)

// Client covers the two YouTube lookups ingestion needs: the video
// duration (checked before any heavier work) and the caption track.
type Client interface {
	VideoDuration(ctx context.Context, videoID string) (float64, error)
	FetchTranscript(ctx context.Context, videoID string, language string) ([]materials.SourceSegment, error)
}

const transcriptAttempts = 3

type client struct {
	log          *logger.Logger
	apiKey       string
	dataBaseURL  string
	timedTextURL string
	httpClient   *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(envutil.String("YOUTUBE_API_KEY", ""))
	if apiKey == "" {
		return nil, fmt.Errorf("missing env var YOUTUBE_API_KEY")
	}
	return &client{
		log:          log.With("service", "youtube.Client"),
		apiKey:       apiKey,
		dataBaseURL:  strings.TrimRight(envutil.String("YOUTUBE_API_BASE_URL", "https://www.googleapis.com/youtube/v3"), "/"),
		timedTextURL: strings.TrimRight(envutil.String("YOUTUBE_TIMEDTEXT_URL", "https://video.google.com/timedtext"), "/"),
		httpClient:   &http.Client{Timeout: envutil.Seconds("YOUTUBE_HTTP_TIMEOUT_SECONDS", 30*time.Second)},
	}, nil
}

// ParseVideoID accepts the URL forms users paste (watch, youtu.be, embed,
// shorts, live) plus a bare 11-character id.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty youtube url: %w", errors.ErrInvalidArgument)
	}
	if isVideoID(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse youtube url %q: %w", raw, errors.ErrInvalidArgument)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		if id := firstPathPart(u.Path); isVideoID(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); isVideoID(id) {
			return id, nil
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := firstPathPart(strings.TrimPrefix(u.Path, prefix)); isVideoID(id) {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no video id in youtube url %q: %w", raw, errors.ErrInvalidArgument)
}

func isVideoID(s string) bool {
	if len(s) != 11 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func firstPathPart(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

func (c *client) VideoDuration(ctx context.Context, videoID string) (float64, error) {
	q := url.Values{}
	q.Set("part", "contentDetails")
	q.Set("id", videoID)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.dataBaseURL+"/videos?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build videos request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("youtube videos call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read videos response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("youtube videos status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var payload struct {
		Items []struct {
			ContentDetails struct {
				Duration string `json:"duration"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode videos response: %w", err)
	}
	if len(payload.Items) == 0 {
		return 0, fmt.Errorf("video %q: %w", videoID, errors.ErrNotFound)
	}

	secs, err := parseISO8601Duration(payload.Items[0].ContentDetails.Duration)
	if err != nil {
		return 0, fmt.Errorf("video %q duration: %w", videoID, err)
	}
	return secs, nil
}

// parseISO8601Duration handles the PT#H#M#S shape the Data API returns
// (plus a day component for the rare live archive).
func parseISO8601Duration(raw string) (float64, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("malformed ISO-8601 duration %q", raw)
	}
	s = s[1:]

	var total float64
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9' || r == '.':
			num += string(r)
		case r == 'T':
			inTime = true
		default:
			if num == "" {
				return 0, fmt.Errorf("malformed ISO-8601 duration %q", raw)
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return 0, fmt.Errorf("malformed ISO-8601 duration %q", raw)
			}
			num = ""
			switch {
			case r == 'D' && !inTime:
				total += v * 86400
			case r == 'H' && inTime:
				total += v * 3600
			case r == 'M' && inTime:
				total += v * 60
			case r == 'S' && inTime:
				total += v
			default:
				return 0, fmt.Errorf("unsupported ISO-8601 duration component %q in %q", string(r), raw)
			}
		}
	}
	if num != "" {
		return 0, fmt.Errorf("malformed ISO-8601 duration %q", raw)
	}
	return total, nil
}

type timedTextDoc struct {
	XMLName xml.Name       `xml:"transcript"`
	Cues    []timedTextCue `xml:"text"`
}

type timedTextCue struct {
	Start float64 `xml:"start,attr"`
	Dur   float64 `xml:"dur,attr"`
	Body  string  `xml:",chardata"`
}

// FetchTranscript tries the target language first, then falls back to
// English. Per language: up to three attempts with exponential backoff on
// transient failures; an empty caption track is definitive for that
// language and moves straight to the fallback. Exhausting both languages
// returns ErrTranscriptUnavailable so the caller can fall through to
// speech recognition.
func (c *client) FetchTranscript(ctx context.Context, videoID string, language string) ([]materials.SourceSegment, error) {
	langs := []string{normalizeLang(language)}
	if langs[0] != "en" {
		langs = append(langs, "en")
	}

	for _, lang := range langs {
		segs, err := c.fetchTranscriptLang(ctx, videoID, lang)
		if err != nil {
			return nil, err
		}
		if len(segs) > 0 {
			return segs, nil
		}
		c.log.Info("no caption track", "video_id", videoID, "lang", lang)
	}
	return nil, fmt.Errorf("video %q captions (langs %v): %w", videoID, langs, errors.ErrTranscriptUnavailable)
}

func (c *client) fetchTranscriptLang(ctx context.Context, videoID string, lang string) ([]materials.SourceSegment, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", lang)

	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 1; attempt <= transcriptAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.timedTextURL+"?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("build timedtext request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("timedtext call: %w", err)
		} else {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("read timedtext response: %w", readErr)
			case resp.StatusCode == http.StatusOK:
				return parseTimedText(body, lang), nil
			case resp.StatusCode == http.StatusNotFound:
				// Definitive: no track in this language.
				return nil, nil
			case httpx.IsRetryableHTTPStatus(resp.StatusCode):
				lastErr = fmt.Errorf("timedtext status %d", resp.StatusCode)
			default:
				return nil, fmt.Errorf("timedtext status %d: %s", resp.StatusCode, truncate(string(body), 300))
			}
		}

		if attempt == transcriptAttempts {
			break
		}
		if err := httpx.SleepCtx(ctx, httpx.JitterSleep(backoff)); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

func parseTimedText(body []byte, lang string) []materials.SourceSegment {
	var doc timedTextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil
	}

	out := make([]materials.SourceSegment, 0, len(doc.Cues))
	for _, cue := range doc.Cues {
		text := strings.TrimSpace(html.UnescapeString(cue.Body))
		if text == "" {
			continue
		}
		out = append(out, materials.SourceSegment{
			Text:     text,
			StartSec: materials.PtrFloat(cue.Start),
			EndSec:   materials.PtrFloat(cue.Start + cue.Dur),
			Metadata: map[string]any{"kind": "caption", "provider": "youtube_timedtext", "lang": lang},
		})
	}
	return out
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "en"
	}
	if i := strings.IndexByte(lang, '-'); i > 0 {
		lang = lang[:i]
	}
	return lang
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
