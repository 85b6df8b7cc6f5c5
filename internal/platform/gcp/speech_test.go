package gcp

import (
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

func TestGroupWordsByTimeWindows(t *testing.T) {
	words := []timedWord{
		{w: "the", s: 0.0, e: 0.4, c: 0.9},
		{w: "krebs", s: 0.5, e: 1.0, c: 0.8},
		{w: "cycle", s: 1.1, e: 1.6, c: 0.7},
		// Next window starts 12s in.
		{w: "produces", s: 12.0, e: 12.5, c: 0.95},
		{w: "atp", s: 12.6, e: 13.0, c: 0.85},
	}

	segs := groupWordsByTime(words, 10.0, "gcp_speech")
	if len(segs) != 2 {
		t.Fatalf("segments: want=2 got=%d", len(segs))
	}

	first := segs[0]
	if first.Text != "the krebs cycle" {
		t.Fatalf("first text: got=%q", first.Text)
	}
	if first.StartSec == nil || *first.StartSec != 0.0 {
		t.Fatalf("first start: got=%v", first.StartSec)
	}
	if first.EndSec == nil || *first.EndSec != 1.6 {
		t.Fatalf("first end: got=%v", first.EndSec)
	}
	if first.Confidence == nil {
		t.Fatalf("first confidence: want set")
	}
	wantConf := (0.9 + 0.8 + 0.7) / 3
	if diff := *first.Confidence - wantConf; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("first confidence: want=%v got=%v", wantConf, *first.Confidence)
	}

	second := segs[1]
	if second.Text != "produces atp" {
		t.Fatalf("second text: got=%q", second.Text)
	}
	if second.StartSec == nil || *second.StartSec != 12.0 {
		t.Fatalf("second start: got=%v", second.StartSec)
	}
	if second.EndSec == nil || *second.EndSec != 13.0 {
		t.Fatalf("second end: got=%v", second.EndSec)
	}
}

func TestGroupWordsByTimeSingleWindow(t *testing.T) {
	words := []timedWord{
		{w: "short", s: 0.0, e: 0.5},
		{w: "clip", s: 0.6, e: 1.0},
	}

	segs := groupWordsByTime(words, 10.0, "gcp_speech")
	if len(segs) != 1 {
		t.Fatalf("segments: want=1 got=%d", len(segs))
	}
	if segs[0].Text != "short clip" {
		t.Fatalf("text: got=%q", segs[0].Text)
	}
	if segs[0].Confidence != nil {
		t.Fatalf("confidence: want nil when no word reported one, got=%v", *segs[0].Confidence)
	}
}

func TestInferSpeechEncoding(t *testing.T) {
	cases := []struct {
		uri  string
		want speechpb.RecognitionConfig_AudioEncoding
	}{
		{"gs://b/media/u/f/audio.wav", speechpb.RecognitionConfig_LINEAR16},
		{"gs://b/media/u/f/audio.flac", speechpb.RecognitionConfig_FLAC},
		{"gs://b/media/u/f/audio.mp3", speechpb.RecognitionConfig_MP3},
		{"gs://b/media/u/f/audio.opus", speechpb.RecognitionConfig_OGG_OPUS},
		{"gs://b/media/u/f/audio.m4a", speechpb.RecognitionConfig_ENCODING_UNSPECIFIED},
	}
	for _, tc := range cases {
		if got := inferSpeechEncoding(tc.uri); got != tc.want {
			t.Fatalf("inferSpeechEncoding(%q): want=%v got=%v", tc.uri, tc.want, got)
		}
	}
}

func TestParseSpeechResponseUntimedFallback(t *testing.T) {
	resp := &speechpb.LongRunningRecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{
				{Transcript: "membrane transport overview"},
			}},
		},
	}

	res := parseSpeechResponse("gs://b/media/u/f/audio.mp3", resp)
	if res.PrimaryText != "membrane transport overview" {
		t.Fatalf("primary text: got=%q", res.PrimaryText)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("segments: want=1 got=%d", len(res.Segments))
	}
	if res.Segments[0].StartSec != nil {
		t.Fatalf("untimed fallback should not carry offsets")
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected warning about missing word offsets")
	}
}
