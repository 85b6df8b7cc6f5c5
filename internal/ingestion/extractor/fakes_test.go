package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
	"github.com/yungbote/studypath-backend/internal/platform/media"
)

type fakeBucket struct {
	mu      sync.Mutex
	mode    gcp.ObjectStorageMode
	objects map[string][]byte
}

func newFakeBucket(mode gcp.ObjectStorageMode) *fakeBucket {
	return &fakeBucket{mode: mode, objects: map[string][]byte{}}
}

func (b *fakeBucket) put(cat gcp.BucketCategory, key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[string(cat)+"/"+key] = data
}

func (b *fakeBucket) get(cat gcp.BucketCategory, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.objects[string(cat)+"/"+key]
	return d, ok
}

func (b *fakeBucket) Upload(ctx context.Context, cat gcp.BucketCategory, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.put(cat, key, data)
	return nil
}

func (b *fakeBucket) Download(ctx context.Context, cat gcp.BucketCategory, key string) (io.ReadCloser, error) {
	d, ok := b.get(cat, key)
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", cat, key)
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

func (b *fakeBucket) Delete(ctx context.Context, cat gcp.BucketCategory, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, string(cat)+"/"+key)
	return nil
}

func (b *fakeBucket) DeletePrefix(ctx context.Context, cat gcp.BucketCategory, prefix string) error {
	return nil
}

func (b *fakeBucket) ListKeys(ctx context.Context, cat gcp.BucketCategory, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *fakeBucket) Attrs(ctx context.Context, cat gcp.BucketCategory, key string) (*gcp.ObjectAttrs, error) {
	d, ok := b.get(cat, key)
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", cat, key)
	}
	return &gcp.ObjectAttrs{Size: int64(len(d))}, nil
}

func (b *fakeBucket) ObjectURI(cat gcp.BucketCategory, key string) string {
	return "gs://test-" + string(cat) + "/" + key
}

func (b *fakeBucket) PublicURL(cat gcp.BucketCategory, key string) string {
	return "https://cdn.test/" + string(cat) + "/" + key
}

func (b *fakeBucket) Mode() gcp.ObjectStorageMode { return b.mode }

type fakeDocAI struct {
	res       *gcp.DocAIResult
	err       error
	gcsCalls  int
	byteCalls int
	lastURI   string
	lastBytes []byte
}

func (d *fakeDocAI) ProcessBytes(ctx context.Context, data []byte, mimeType string) (*gcp.DocAIResult, error) {
	d.byteCalls++
	d.lastBytes = data
	return d.res, d.err
}

func (d *fakeDocAI) ProcessGCSOnline(ctx context.Context, gcsURI string, mimeType string) (*gcp.DocAIResult, error) {
	d.gcsCalls++
	d.lastURI = gcsURI
	return d.res, d.err
}

func (d *fakeDocAI) Close() error { return nil }

type fakeVision struct {
	imageRes   *gcp.VisionOCRResult
	imageErr   error
	pageText   map[int]string
	pagesErr   error
	imageCalls int
	pdfCalls   int
	gotPages   []int
}

func (v *fakeVision) OCRImageBytes(ctx context.Context, img []byte) (*gcp.VisionOCRResult, error) {
	v.imageCalls++
	return v.imageRes, v.imageErr
}

func (v *fakeVision) OCRPDFPages(ctx context.Context, pdf []byte, pages []int) (map[int]string, error) {
	v.pdfCalls++
	v.gotPages = append([]int(nil), pages...)
	return v.pageText, v.pagesErr
}

func (v *fakeVision) Close() error { return nil }

type fakeYouTube struct {
	duration        float64
	durationErr     error
	transcript      []materials.SourceSegment
	transcriptErr   error
	durationCalls   int
	transcriptCalls int
	lastLanguage    string
}

func (y *fakeYouTube) VideoDuration(ctx context.Context, videoID string) (float64, error) {
	y.durationCalls++
	return y.duration, y.durationErr
}

func (y *fakeYouTube) FetchTranscript(ctx context.Context, videoID string, language string) ([]materials.SourceSegment, error) {
	y.transcriptCalls++
	y.lastLanguage = language
	return y.transcript, y.transcriptErr
}

type fakeFetcher struct {
	path          string
	ext           string
	kind          media.FetchKind
	err           error
	calls         int
	cleanupCalled bool
}

func (f *fakeFetcher) AssertReady(ctx context.Context) error { return nil }

func (f *fakeFetcher) FetchAudio(ctx context.Context, sourceURL string) (*media.FetchResult, func(), error) {
	f.calls++
	if f.err != nil {
		return nil, func() {}, f.err
	}
	return &media.FetchResult{Path: f.path, Ext: f.ext, Kind: f.kind},
		func() { f.cleanupCalled = true }, nil
}

type fakeSpeech struct {
	res         *gcp.SpeechResult
	err         error
	calls       int
	lastURI     string
	lastLang    string
	sawDeadline bool
}

func (s *fakeSpeech) TranscribeGCS(ctx context.Context, gcsURI string, languageCode string) (*gcp.SpeechResult, error) {
	s.calls++
	s.lastURI = gcsURI
	s.lastLang = languageCode
	_, s.sawDeadline = ctx.Deadline()
	return s.res, s.err
}

func (s *fakeSpeech) Close() error { return nil }

type fakeVideo struct {
	res     *gcp.VideoResult
	err     error
	calls   int
	lastURI string
}

func (v *fakeVideo) TranscribeVideoGCS(ctx context.Context, gcsURI string, languageCode string) (*gcp.VideoResult, error) {
	v.calls++
	v.lastURI = gcsURI
	return v.res, v.err
}

func (v *fakeVideo) Close() error { return nil }
