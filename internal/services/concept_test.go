package services

import (
	"errors"
	"testing"

	"github.com/yungbote/studypath-backend/internal/domain/materials"
	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
)

func iptr(v int) *int         { return &v }
func fptr(v float64) *float64 { return &v }

func TestValidateConceptLocator(t *testing.T) {
	cases := []struct {
		name    string
		kind    materials.SourceKind
		page    *int
		start   *float64
		end     *float64
		invalid bool
	}{
		{name: "no locator", kind: materials.SourceKindPDF},
		{name: "page on document", kind: materials.SourceKindPDF, page: iptr(3)},
		{name: "page on text", kind: materials.SourceKindText, page: iptr(1)},
		{name: "window on video", kind: materials.SourceKindYouTube, start: fptr(30), end: fptr(90)},
		{name: "zero page", kind: materials.SourceKindPDF, page: iptr(0), invalid: true},
		{name: "page on video", kind: materials.SourceKindYouTube, page: iptr(2), invalid: true},
		{name: "window on document", kind: materials.SourceKindPDF, start: fptr(10), end: fptr(20), invalid: true},
		{name: "page and window together", kind: materials.SourceKindPDF, page: iptr(1), start: fptr(0), end: fptr(5), invalid: true},
		{name: "start without end", kind: materials.SourceKindYouTube, start: fptr(30), invalid: true},
		{name: "end before start", kind: materials.SourceKindYouTube, start: fptr(90), end: fptr(30), invalid: true},
		{name: "negative start", kind: materials.SourceKindYouTube, start: fptr(-1), end: fptr(5), invalid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateConceptLocator(tc.kind, tc.page, tc.start, tc.end)
			if tc.invalid {
				if !errors.Is(err, apperrors.ErrInvalidArgument) {
					t.Fatalf("locator error: want=%v got=%v", apperrors.ErrInvalidArgument, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("locator error: want=nil got=%v", err)
			}
		})
	}
}
