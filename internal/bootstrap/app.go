package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"cardscan-backend/internal/cards"
	"cardscan-backend/internal/extraction"
	"cardscan-backend/internal/llm"
	"cardscan-backend/internal/llm/gemini"
	"cardscan-backend/internal/llm/openai"
	"cardscan-backend/internal/results"
	"cardscan-backend/internal/services/health"
	"cardscan-backend/internal/shared/config"
	"cardscan-backend/internal/shared/server"
	"cardscan-backend/internal/shared/storage/object"
	localstore "cardscan-backend/internal/shared/storage/object/local"
	memorystore "cardscan-backend/internal/shared/storage/object/memory"
	s3store "cardscan-backend/internal/shared/storage/object/s3"
	"cardscan-backend/internal/uploads"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiModel = "gemini-2.0-flash"
)

// App holds shared dependencies and the configured router.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	Store             object.ImageStore
	ExtractionService *extraction.Service
	UploadService     *uploads.Service
	UploadHandler     *uploads.Handler
	ResultsHandler    *results.Handler
	Health            *health.Service
}

// Options lets callers replace external collaborators, mainly in tests.
type Options struct {
	Store object.ImageStore
	// Vision answers both classification and extraction requests when set.
	Vision llm.VisionModel
	// Prepare replaces image preparation.
	Prepare func(data []byte, maxEdge int) ([]byte, error)
}

// Build prepares dependencies and routes from configuration.
func Build(cfg config.Config) (*App, error) {
	return BuildWithOptions(cfg, Options{})
}

// BuildWithOptions is Build with injected collaborators.
func BuildWithOptions(cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	store := opts.Store
	if store == nil {
		built, err := buildStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store = built
	}

	classifierModel, extractorModel := opts.Vision, opts.Vision
	if opts.Vision == nil {
		var err error
		classifierModel, extractorModel, err = buildVisionModels(ctx, &cfg)
		if err != nil {
			return nil, err
		}
	}

	extractionSvc := &extraction.Service{
		Store:        store,
		Sessions:     extraction.NewSessions(),
		Classifier:   cards.NewClassifier(classifierModel),
		Extractor:    cards.NewExtractor(extractorModel),
		MaxImageEdge: cfg.MaxImageEdge,
		Prepare:      opts.Prepare,
	}
	uploadSvc := &uploads.Service{Store: store}

	app := &App{
		Config:            cfg,
		Store:             store,
		ExtractionService: extractionSvc,
		UploadService:     uploadSvc,
		UploadHandler:     uploads.NewHandler(uploadSvc, cfg.MaxUploadBytes),
		ResultsHandler:    results.NewHandler(extractionSvc),
		Health:            health.NewService(cfg.ObjectStoreType, cfg.LLMProvider, cfg.LLMModel),
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Health:         app.Health,
		UploadHandler:  app.UploadHandler,
		ResultsHandler: app.ResultsHandler,
	})

	return app, nil
}

// BuildStore constructs the configured image store.
func BuildStore(ctx context.Context, cfg config.Config) (object.ImageStore, error) {
	return buildStore(ctx, cfg)
}

func buildStore(ctx context.Context, cfg config.Config) (object.ImageStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	case "memory":
		return memorystore.New(), nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// BuildVisionModels constructs the classifier and extractor models for cfg.
// Missing credentials fall back to the placeholder model outside production.
func BuildVisionModels(ctx context.Context, cfg config.Config) (llm.VisionModel, llm.VisionModel, error) {
	return buildVisionModels(ctx, &cfg)
}

func buildVisionModels(ctx context.Context, cfg *config.Config) (llm.VisionModel, llm.VisionModel, error) {
	placeholder := llm.VisionModel(llm.PlaceholderVisionModel{})

	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return missingKey(cfg, "OPENAI_API_KEY")
		}
		cfg.LLMModel = firstNonEmpty(cfg.LLMModel, defaultOpenAIModel)
		cfg.ClassifierModel = firstNonEmpty(cfg.ClassifierModel, cfg.LLMModel)
		newModel := func(model string) (llm.VisionModel, error) {
			return openai.NewClient(openai.Config{APIKey: cfg.OpenAIAPIKey, Model: model, Timeout: cfg.LLMTimeout})
		}
		return buildPair(cfg, newModel)
	case "gemini":
		if cfg.GoogleAPIKey == "" {
			return missingKey(cfg, "GOOGLE_API_KEY")
		}
		cfg.LLMModel = firstNonEmpty(cfg.LLMModel, defaultGeminiModel)
		cfg.ClassifierModel = firstNonEmpty(cfg.ClassifierModel, cfg.LLMModel)
		newModel := func(model string) (llm.VisionModel, error) {
			return gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GoogleAPIKey, Model: model, Timeout: cfg.LLMTimeout})
		}
		return buildPair(cfg, newModel)
	default:
		log.Printf("bootstrap: LLM_PROVIDER=%s; extraction requests will fail until a provider is configured", cfg.LLMProvider)
		return placeholder, placeholder, nil
	}
}

func buildPair(cfg *config.Config, newModel func(model string) (llm.VisionModel, error)) (llm.VisionModel, llm.VisionModel, error) {
	extractor, err := newModel(cfg.LLMModel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.ClassifierModel == cfg.LLMModel {
		return extractor, extractor, nil
	}
	classifier, err := newModel(cfg.ClassifierModel)
	if err != nil {
		return nil, nil, err
	}
	return classifier, extractor, nil
}

func missingKey(cfg *config.Config, key string) (llm.VisionModel, llm.VisionModel, error) {
	if cfg.Env == "production" {
		return nil, nil, fmt.Errorf("LLM_PROVIDER=%s requires %s", cfg.LLMProvider, key)
	}
	log.Printf("bootstrap: %s empty; using placeholder vision model", key)
	cfg.LLMProvider = "none"
	placeholder := llm.VisionModel(llm.PlaceholderVisionModel{})
	return placeholder, placeholder, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
