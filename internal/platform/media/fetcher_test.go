package media

import "testing"

func TestClassifyFetchKind(t *testing.T) {
	cases := []struct {
		ext  string
		want FetchKind
	}{
		{"m4a", FetchKindAudio},
		{"mp3", FetchKindAudio},
		{"opus", FetchKindAudio},
		{"wav", FetchKindAudio},
		{"mp4", FetchKindVideo},
		{"webm", FetchKindVideo},
		{"mkv", FetchKindVideo},
		{"xyz", FetchKindAudio},
	}
	for _, tc := range cases {
		if got := classifyFetchKind(tc.ext); got != tc.want {
			t.Fatalf("classifyFetchKind(%q): want=%q got=%q", tc.ext, tc.want, got)
		}
	}
}
