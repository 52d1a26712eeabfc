package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/feekg/internal/config"
	"github.com/agenthands/feekg/internal/core"
	"github.com/agenthands/feekg/internal/core/community"
	"github.com/agenthands/feekg/internal/core/eventstore"
	"github.com/agenthands/feekg/internal/core/linkstore"
	"github.com/agenthands/feekg/internal/core/model"
	"github.com/agenthands/feekg/internal/driver"
	"github.com/agenthands/feekg/internal/llm"
)

// EventStore is the ingest-and-read surface the server needs from an event
// backend.
type EventStore interface {
	eventstore.Source
	eventstore.Sink
}

type Server struct {
	Engine    *core.Engine
	Events    EventStore
	Links     linkstore.Store
	Embedder  llm.EmbedderClient
	Annotator *llm.SentimentAnnotator
}

func NewServer() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Warning: could not load %s: %v. Using built-in defaults", cfgPath, err)
		cfg = config.Default()
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid default configuration: %v", err)
		}
	}

	// Env overrides
	if uri := os.Getenv("MEMGRAPH_URI"); uri != "" {
		cfg.Memgraph.URI = uri
		cfg.Storage.Backend = "memgraph"
	}
	if user := os.Getenv("MEMGRAPH_USER"); user != "" {
		cfg.Memgraph.User = user
	}
	if pass := os.Getenv("MEMGRAPH_PASSWORD"); pass != "" {
		cfg.Memgraph.Password = pass
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if provider := os.Getenv("EMBEDDER_PROVIDER"); provider != "" {
		cfg.Embedder.Provider = provider
	}
	if apiKey := os.Getenv("EMBEDDER_API_KEY"); apiKey != "" {
		cfg.Embedder.APIKey = apiKey
	}

	var events EventStore
	var links linkstore.Store

	switch cfg.Storage.Backend {
	case "memgraph":
		d, err := driver.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			log.Fatalf("Failed to connect to Memgraph: %v", err)
		}
		if err := d.BuildIndices(context.Background()); err != nil {
			log.Printf("Warning: failed to build indices: %v", err)
		}
		events = eventstore.NewGraphStore(d)
		links = linkstore.NewGraphStore(d)
	default:
		events = eventstore.NewMemoryStore()
		links = linkstore.NewMemoryStore()
	}

	llmClient, embedder, err := llm.NewClient(context.Background(), cfg.Embedder)
	if err != nil {
		log.Fatalf("Failed to initialize embedder client: %v", err)
	}
	if embedder != nil {
		embedder = llm.NewCachedEmbedder(embedder)
	}

	return &Server{
		Engine:    core.NewEngine(events, links, cfg),
		Events:    events,
		Links:     links,
		Embedder:  embedder,
		Annotator: llm.NewSentimentAnnotator(llmClient, cfg.Evolution.CategorySentiment),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", s.Health)
	r.POST("/events", s.IngestEvents)
	r.POST("/rebuild", s.Rebuild)
	r.GET("/links/from/:id", s.LinksFrom)
	r.GET("/links/to/:id", s.LinksTo)
	r.GET("/links", s.LinksAbove)
	r.GET("/clusters", s.Clusters)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type IngestRequest struct {
	Events []*model.Event `json:"events"`
}

// IngestEvents stores a batch of events, enriching missing sentiment and
// embeddings first when the corresponding providers are configured.
func (s *Server) IngestEvents(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := c.Request.Context()
	stored := 0
	rejected := 0
	for _, ev := range req.Events {
		if err := ev.Validate(); err != nil {
			rejected++
			continue
		}
		if s.Annotator != nil {
			if err := s.Annotator.Annotate(ctx, ev); err != nil {
				log.Printf("Failed to annotate sentiment for %s: %v", ev.ID, err)
			}
		}
		if s.Embedder != nil && len(ev.Embedding) == 0 && ev.Summary != "" {
			vec, err := s.Embedder.Embed(ctx, ev.Summary)
			if err != nil {
				log.Printf("Failed to embed event %s: %v", ev.ID, err)
			} else {
				ev.Embedding = vec
			}
		}
		if err := s.Events.Put(ctx, ev); err != nil {
			log.Printf("Failed to store event %s: %v", ev.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store events"})
			return
		}
		stored++
	}

	c.JSON(http.StatusOK, gin.H{"stored": stored, "rejected": rejected})
}

// Rebuild runs a full recompute and returns the run accounting. A partial
// persist failure still returns the report, flagged, with status 200: the
// store holds everything that could be written.
func (s *Server) Rebuild(c *gin.Context) {
	report, err := s.Engine.Rebuild(c.Request.Context())
	if err != nil {
		if errors.Is(err, core.ErrPartialPersist) {
			c.JSON(http.StatusOK, gin.H{"report": report, "partial": true, "error": err.Error()})
			return
		}
		log.Printf("Rebuild failed: %v", err)
		status := http.StatusInternalServerError
		if report != nil {
			c.JSON(status, gin.H{"report": report, "error": err.Error()})
		} else {
			c.JSON(status, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func (s *Server) LinksFrom(c *gin.Context) {
	links, err := s.Links.QueryFrom(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("Failed to query links: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (s *Server) LinksTo(c *gin.Context) {
	links, err := s.Links.QueryTo(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("Failed to query links: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (s *Server) LinksAbove(c *gin.Context) {
	minScore := 0.0
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be a float in [0,1]"})
			return
		}
		minScore = v
	}

	links, err := s.Links.QueryAbove(c.Request.Context(), minScore)
	if err != nil {
		log.Printf("Failed to query links: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query links"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

// Clusters groups events by their accepted links, using label propagation
// by default or plain connected components with ?algorithm=components.
func (s *Server) Clusters(c *gin.Context) {
	ctx := c.Request.Context()

	events, err := s.Events.All(ctx)
	if err != nil {
		log.Printf("Failed to load events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load events"})
		return
	}
	links, err := s.Links.QueryAbove(ctx, 0)
	if err != nil {
		log.Printf("Failed to query links: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query links"})
		return
	}

	var detector community.Detector
	switch c.Query("algorithm") {
	case "components":
		detector = community.NewComponentDetector()
	default:
		detector = community.NewLabelPropagationDetector()
	}

	clusters, err := detector.Detect(events, links)
	if err != nil {
		log.Printf("Failed to detect clusters: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to detect clusters"})
		return
	}

	out := make([][]string, 0, len(clusters))
	for _, cluster := range clusters {
		ids := make([]string, 0, len(cluster))
		for _, e := range cluster {
			ids = append(ids, e.ID)
		}
		out = append(out, ids)
	}
	c.JSON(http.StatusOK, gin.H{"clusters": out})
}
