package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/studypath-backend/internal/pkg/logger"
	"github.com/yungbote/studypath-backend/internal/platform/gcp"
	"github.com/yungbote/studypath-backend/internal/platform/media"
	"github.com/yungbote/studypath-backend/internal/platform/neo4jdb"
	"github.com/yungbote/studypath-backend/internal/platform/openai"
	"github.com/yungbote/studypath-backend/internal/platform/qdrant"
	"github.com/yungbote/studypath-backend/internal/platform/websearch"
	"github.com/yungbote/studypath-backend/internal/platform/youtube"
	"github.com/yungbote/studypath-backend/internal/realtime/bus"
)

// Clients bundles every external dependency the services and pipeline use.
// Optional ones (Vec, Graph, YouTube, Web) come up nil when unconfigured and
// the consumers degrade instead of failing.
type Clients struct {
	OpenAI openai.Client
	Vec    qdrant.VectorStore
	Bucket gcp.BucketService

	DocAI  gcp.DocAI
	Vision gcp.Vision
	Speech gcp.Speech
	Video  gcp.Video

	YouTube youtube.Client
	Media   media.Fetcher
	Web     websearch.Client

	Graph *neo4jdb.Client
	Bus   bus.Bus
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	// Notification bus: redis when configured, in-process otherwise.
	var notifyBus bus.Bus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		b, err := bus.NewRedisBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis bus: %w", err)
		}
		notifyBus = b
	} else {
		log.Warn("REDIS_ADDR unset, using in-process notification bus")
		notifyBus = bus.NewLocalBus()
	}

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	vec, err := resolveVectorStore(log)
	if err != nil {
		return Clients{}, err
	}

	docai, err := gcp.NewDocAI(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init documentai client: %w", err)
	}
	vision, err := gcp.NewVision(log)
	if err != nil {
		_ = docai.Close()
		return Clients{}, fmt.Errorf("init vision client: %w", err)
	}
	speech, err := gcp.NewSpeech(log)
	if err != nil {
		_ = vision.Close()
		_ = docai.Close()
		return Clients{}, fmt.Errorf("init speech client: %w", err)
	}
	video, err := gcp.NewVideo(log)
	if err != nil {
		_ = speech.Close()
		_ = vision.Close()
		_ = docai.Close()
		return Clients{}, fmt.Errorf("init video client: %w", err)
	}

	yt, err := youtube.NewClient(log)
	if err != nil {
		log.Warn("YouTube client unavailable, link ingestion will fail closed", "error", err)
	}

	graph, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j unavailable, concept graph sync disabled", "error", err)
		graph = nil
	}

	return Clients{
		OpenAI:  openaiClient,
		Vec:     vec,
		Bucket:  bucket,
		DocAI:   docai,
		Vision:  vision,
		Speech:  speech,
		Video:   video,
		YouTube: yt,
		Media:   media.New(log),
		Web:     websearch.NewFromEnv(log),
		Graph:   graph,
		Bus:     notifyBus,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Graph != nil {
		_ = c.Graph.Close(context.Background())
	}
	if c.Video != nil {
		_ = c.Video.Close()
	}
	if c.Speech != nil {
		_ = c.Speech.Close()
	}
	if c.Vision != nil {
		_ = c.Vision.Close()
	}
	if c.DocAI != nil {
		_ = c.DocAI.Close()
	}
}
