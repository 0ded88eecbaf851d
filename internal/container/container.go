// Package container wires the process's dependency graph with dig:
// configuration, stores, queue, model collaborators, the pipeline worker,
// and the HTTP router. Every collaborator is constructed here exactly once
// and injected; no package owns process-wide singletons of its own.
package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/veridocs/trainforge/internal/config"
	"github.com/veridocs/trainforge/internal/httpapi"
	"github.com/veridocs/trainforge/internal/knowledge"
	"github.com/veridocs/trainforge/internal/logger"
	"github.com/veridocs/trainforge/internal/models/embedding"
	"github.com/veridocs/trainforge/internal/models/llm"
	"github.com/veridocs/trainforge/internal/models/utils/ollama"
	"github.com/veridocs/trainforge/internal/pipeline"
	"github.com/veridocs/trainforge/internal/progress"
	"github.com/veridocs/trainforge/internal/queue"
	"github.com/veridocs/trainforge/internal/render"
	"github.com/veridocs/trainforge/internal/store/blobstore"
	"github.com/veridocs/trainforge/internal/store/jobstore"
	"github.com/veridocs/trainforge/internal/tracing"
	"github.com/veridocs/trainforge/internal/types"
	"github.com/veridocs/trainforge/internal/worker"
)

// Cleaner collects teardown functions registered during container build and
// runs them in reverse order at process exit.
type Cleaner struct {
	mu    sync.Mutex
	funcs []func(context.Context) error
}

// NewCleaner builds an empty Cleaner.
func NewCleaner() *Cleaner { return &Cleaner{} }

// Register appends a teardown function.
func (c *Cleaner) Register(fn func(context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = append(c.funcs, fn)
}

// Cleanup runs all registered teardown functions, last registered first.
func (c *Cleaner) Cleanup(ctx context.Context) {
	c.mu.Lock()
	funcs := c.funcs
	c.funcs = nil
	c.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			logger.GetLogger(ctx).Warnf("cleanup: %v", err)
		}
	}
}

// BuildContainer registers every provider the server and worker binaries
// share. Callers Invoke what they need; unused providers are never built.
func BuildContainer(c *dig.Container) *dig.Container {
	must(c.Provide(NewCleaner))

	must(c.Provide(loadConfig))
	must(c.Provide(initTracer))

	must(c.Provide(initJobStore))
	must(c.Provide(initBlobStore))
	must(c.Provide(initCacheStore))
	must(c.Provide(initHTTPClient))
	must(c.Provide(initRedisClient))
	must(c.Provide(initProgressPublisher))

	must(c.Provide(initAntsPool))
	must(c.Provide(initOllamaService))
	must(c.Provide(initEmbedder))
	must(c.Provide(initLLM))
	must(c.Provide(initRenderer))

	must(c.Provide(initQueueOpt))
	must(c.Provide(initQueueClient))
	must(c.Provide(initQueueServer))
	must(c.Provide(initWorker))
	must(c.Provide(initQueueHandler))

	must(c.Provide(httpapi.NewJobHandler))
	must(c.Provide(httpapi.NewRouter))

	return c
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("container: %v", err))
	}
}

func loadConfig() (*types.Config, error) {
	return config.Load(os.Getenv("TRAINFORGE_CONFIG"))
}

func initTracer(cfg *types.Config, cleaner *Cleaner) (*tracing.Tracer, error) {
	tracer, err := tracing.InitTracer(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	cleaner.Register(tracer.Shutdown)
	return tracer, nil
}

func initJobStore(cfg *types.Config, cleaner *Cleaner) (*jobstore.Store, error) {
	store, err := jobstore.New(context.Background(), cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	cleaner.Register(func(context.Context) error {
		store.Close()
		return nil
	})
	return store, nil
}

func initBlobStore(cfg *types.Config) (*blobstore.Store, error) {
	return blobstore.New(context.Background(), cfg.BlobEndpoint, cfg.BlobAccessKey, cfg.BlobSecretKey, cfg.BlobBucket, cfg.BlobUseSSL)
}

func initCacheStore(cfg *types.Config) (types.CacheStore, error) {
	dir := cfg.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "trainforge-cache")
	}
	return knowledge.NewFileCacheStore(dir)
}

func initHTTPClient() types.HTTPClient {
	return knowledge.NewNetHTTPClient()
}

func initRedisClient(cfg *types.Config, cleaner *Cleaner) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	cleaner.Register(func(context.Context) error { return client.Close() })
	return client
}

func initProgressPublisher(client *redis.Client) progress.Publisher {
	return progress.NewRedisPublisher(client, 0)
}

func initAntsPool(cleaner *Cleaner) (*ants.Pool, error) {
	pool, err := ants.NewPool(10, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	cleaner.Register(func(context.Context) error {
		pool.Release()
		return nil
	})
	return pool, nil
}

func initOllamaService(cfg *types.Config) (*ollama.Service, error) {
	return ollama.NewService(cfg.EmbeddingBaseURL)
}

// initEmbedder returns nil when embedding is disabled or the backend is
// unreachable at startup; the pipeline then runs with its lexical fallback.
func initEmbedder(cfg *types.Config, service *ollama.Service, pool *ants.Pool) pipeline.EmbeddingService {
	ctx := context.Background()
	if !cfg.EmbeddingEnabled {
		return nil
	}
	if err := service.StartService(ctx); err != nil {
		logger.GetLogger(ctx).Warnf("embedding backend unavailable, continuing with lexical fallback: %v", err)
		return nil
	}
	return embedding.NewOllamaEmbedder(service, pool, cfg.EmbeddingModel, 0, 0)
}

func initLLM(cfg *types.Config) pipeline.LLMService {
	return llm.NewClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
}

func initRenderer() render.Renderer {
	return render.NewDocxRenderer()
}

func initQueueOpt(cfg *types.Config) asynq.RedisClientOpt {
	return queue.RedisOpt(cfg.RedisAddr, cfg.RedisPassword)
}

func initQueueClient(opt asynq.RedisClientOpt, cleaner *Cleaner) *asynq.Client {
	client := queue.NewClient(opt)
	cleaner.Register(func(context.Context) error { return client.Close() })
	return client
}

func initQueueServer(opt asynq.RedisClientOpt) *asynq.Server {
	return queue.NewServer(opt, 4)
}

func initWorker(
	jobs *jobstore.Store,
	blobs *blobstore.Store,
	llmService pipeline.LLMService,
	embedder pipeline.EmbeddingService,
	httpClient types.HTTPClient,
	cache types.CacheStore,
	renderer render.Renderer,
	publisher progress.Publisher,
	cfg *types.Config,
) *worker.Worker {
	return worker.New(jobs, blobs, llmService, embedder, httpClient, cache, renderer, publisher, cfg)
}

func initQueueHandler(w *worker.Worker) *queue.Handler {
	return queue.NewHandler(w.Execute)
}
