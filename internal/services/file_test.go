package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
	"github.com/yungbote/studypath-backend/internal/pkg/logger"
)

func newValidationFileService() FileService {
	return NewFileService(nil, logger.NewNop(), nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
}

func TestIngestRequiresOwner(t *testing.T) {
	svc := newValidationFileService()
	_, err := svc.Ingest(context.Background(), IngestInput{SourceURI: "https://youtu.be/dQw4w9WgXcQ"})
	if !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("missing owner error: want=%v got=%v", apperrors.ErrUnauthorized, err)
	}
}

func TestIngestRejectsEmptyInput(t *testing.T) {
	svc := newValidationFileService()
	_, err := svc.Ingest(context.Background(), IngestInput{OwnerUserID: uuid.New()})
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("empty input error: want=%v got=%v", apperrors.ErrInvalidArgument, err)
	}
}

func TestIngestRejectsNonVideoLink(t *testing.T) {
	svc := newValidationFileService()
	_, err := svc.Ingest(context.Background(), IngestInput{
		OwnerUserID: uuid.New(),
		SourceURI:   "https://example.com/watch?v=dQw4w9WgXcQ",
	})
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("non-video link error: want=%v got=%v", apperrors.ErrInvalidArgument, err)
	}
}

func TestIngestRejectsUnknownUploadKind(t *testing.T) {
	svc := newValidationFileService()
	_, err := svc.Ingest(context.Background(), IngestInput{
		OwnerUserID: uuid.New(),
		DisplayName: "firmware.bin",
		MimeType:    "application/octet-stream",
		Content:     strings.NewReader("\x00\x01\x02\x03"),
	})
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("unknown upload error: want=%v got=%v", apperrors.ErrInvalidArgument, err)
	}
}

func TestSafeObjectName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "lecture-notes.pdf", want: "lecture-notes.pdf"},
		{in: "My Notes (v2).pdf", want: "My-Notes--v2-.pdf"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: "  spaced name.txt  ", want: "spaced-name.txt"},
		{in: "", want: "source"},
		{in: "...", want: "source"},
		{in: "???", want: "source"},
	}
	for _, tc := range cases {
		if got := safeObjectName(tc.in); got != tc.want {
			t.Fatalf("safeObjectName(%q): want=%q got=%q", tc.in, tc.want, got)
		}
	}
}
