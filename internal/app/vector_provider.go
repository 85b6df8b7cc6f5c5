package app

import (
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
)

var newQdrantVectorStore = qdrant.NewVectorStore

type VectorBootstrapErrorCode string

const (
	VectorBootstrapErrorConnectFailed VectorBootstrapErrorCode = "connect_failed"
	VectorBootstrapErrorConfigFailed  VectorBootstrapErrorCode = "config_failed"
	VectorBootstrapErrorInitFailed    VectorBootstrapErrorCode = "init_failed"
)

type VectorBootstrapError struct {
	Code  VectorBootstrapErrorCode
	Cause error
}

func (e *VectorBootstrapError) Error() string {
	if e == nil {
		return "vector store bootstrap failed"
	}
	return fmt.Sprintf("vector store bootstrap failed (code=%s): %v", e.Code, e.Cause)
}

func (e *VectorBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveVectorStore connects to Qdrant from env config. An entirely absent
// config disables vector search (retrieval degrades to lexical-only and the
// pipeline skips indexing); a present-but-broken config or an unreachable
// server is a hard error so a misconfigured deploy does not boot half-blind.
func resolveVectorStore(log *logger.Logger) (qdrant.VectorStore, error) {
	cfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		var cfgErr *qdrant.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Code == qdrant.ConfigErrorMissingURL {
			log.Warn("QDRANT_URL not set; vector search disabled")
			return nil, nil
		}
		return nil, &VectorBootstrapError{Code: VectorBootstrapErrorConfigFailed, Cause: err}
	}

	vs, err := newQdrantVectorStore(log, cfg)
	if err != nil {
		classified := classifyVectorBootstrapError(err)
		log.Error("Vector store bootstrap failed",
			"url", cfg.URL,
			"collection", cfg.Collection,
			"error", classified,
		)
		return nil, classified
	}
	return vs, nil
}

func classifyVectorBootstrapError(err error) error {
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConnectFailed, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConnectFailed, Cause: err}
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConnectFailed, Cause: err}
	}
	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		return &VectorBootstrapError{Code: VectorBootstrapErrorConfigFailed, Cause: err}
	}
	return &VectorBootstrapError{Code: VectorBootstrapErrorInitFailed, Cause: err}
}
