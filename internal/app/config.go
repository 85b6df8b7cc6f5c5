package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string

	Port         string
	JWTSecretKey string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		ServiceName:  envutil.String("SERVICE_NAME", "studypath-api"),
		Environment:  envutil.String("APP_ENV", "development"),
		Version:      envutil.String("SERVICE_VERSION", "dev"),
		Port:         envutil.String("PORT", "8080"),
		JWTSecretKey: envutil.String("JWT_SECRET_KEY", "defaultsecret"),
	}
	if cfg.JWTSecretKey == "defaultsecret" {
		log.Warn("JWT_SECRET_KEY not set, using insecure default")
	}
	if err := applyPipelineTuning(log); err != nil {
		log.Warn("pipeline tuning file ignored", "error", err)
	}
	return cfg
}

// pipelineTuning mirrors the env knobs the pipeline and retrieval steps read.
// Values from the file backfill unset environment variables, so an explicit
// env assignment always wins over the file.
type pipelineTuning struct {
	ChunkTokens          *int     `yaml:"chunk_tokens"`
	ConceptCap           *int     `yaml:"concept_cap"`
	ConceptEdgesMax      *int     `yaml:"concept_edges_max"`
	ConceptTextMaxChars  *int     `yaml:"concept_text_max_chars"`
	EmbedConcurrency     *int     `yaml:"embed_concurrency"`
	MaterialsConcurrency *int     `yaml:"materials_concurrency"`
	WorkerConcurrency    *int     `yaml:"worker_concurrency"`
	IngestTimeoutMinutes *int     `yaml:"ingest_timeout_minutes"`
	RetrievalAlpha       *float64 `yaml:"retrieval_alpha"`
	SelectTokenBudget    *int     `yaml:"select_token_budget"`
	ContextTokenBudget   *int     `yaml:"context_token_budget"`
	MaxUploadMB          *int     `yaml:"max_upload_mb"`
}

func applyPipelineTuning(log *logger.Logger) error {
	path := strings.TrimSpace(os.Getenv("PIPELINE_CONFIG_PATH"))
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var tuning pipelineTuning
	if err := yaml.Unmarshal(raw, &tuning); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	applied := 0
	setInt := func(name string, v *int) {
		if v == nil || os.Getenv(name) != "" {
			return
		}
		os.Setenv(name, strconv.Itoa(*v))
		applied++
	}
	setInt("CHUNK_TOKENS", tuning.ChunkTokens)
	setInt("CONCEPT_CAP", tuning.ConceptCap)
	setInt("CONCEPT_EDGES_MAX", tuning.ConceptEdgesMax)
	setInt("CONCEPT_TEXT_MAX_CHARS", tuning.ConceptTextMaxChars)
	setInt("EMBED_CONCURRENCY", tuning.EmbedConcurrency)
	setInt("MATERIALS_CONCURRENCY", tuning.MaterialsConcurrency)
	setInt("WORKER_CONCURRENCY", tuning.WorkerConcurrency)
	setInt("INGEST_JOB_TIMEOUT_MINUTES", tuning.IngestTimeoutMinutes)
	setInt("SELECT_TOKEN_BUDGET", tuning.SelectTokenBudget)
	setInt("CONTEXT_TOKEN_BUDGET", tuning.ContextTokenBudget)
	setInt("MAX_UPLOAD_MB", tuning.MaxUploadMB)
	if tuning.RetrievalAlpha != nil && os.Getenv("RETRIEVAL_ALPHA") == "" {
		os.Setenv("RETRIEVAL_ALPHA", strconv.FormatFloat(*tuning.RetrievalAlpha, 'f', -1, 64))
		applied++
	}

	log.Info("pipeline tuning loaded", "path", path, "applied", applied)
	return nil
}
