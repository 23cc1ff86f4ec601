// Package svcctx provides service context for dependency injection via context.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/fancai/orchestrator/internal/admission"
	"github.com/fancai/orchestrator/internal/config"
	"github.com/fancai/orchestrator/internal/imagequeue"
	"github.com/fancai/orchestrator/internal/ingest"
	"github.com/fancai/orchestrator/internal/jobs"
	"github.com/fancai/orchestrator/internal/metrics"
	"github.com/fancai/orchestrator/internal/pipeline"
	"github.com/fancai/orchestrator/internal/processors"
	"github.com/fancai/orchestrator/internal/queue"
	"github.com/fancai/orchestrator/internal/storage/coordstore"
	"github.com/fancai/orchestrator/internal/storage/postgres"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	DB       *postgres.Client
	Books    *postgres.BookStore
	Chapters *postgres.ChapterStore
	Descs    *postgres.DescriptionStore
	Images   *postgres.ImageStore
	Jobs     *postgres.JobStore
	Coord    coordstore.Store

	Gate       *admission.Gate
	Queue      *queue.PriorityQueue
	Dispatcher *queue.Dispatcher
	Pools      map[jobs.QueueClass]*jobs.Pool
	Scheduler  *jobs.Scheduler
	Reconciler *jobs.Reconciler

	Registry *processors.Registry
	Factory  *pipeline.StrategyFactory
	Pipeline *pipeline.Pipeline

	Ingest        *ingest.Ingest
	ImageQueue    *imagequeue.Dispatcher
	MetricsRecord *metrics.Recorder
	MetricsQuery  *metrics.Query

	ConfigManager *config.Manager
	ConfigStore   config.Store

	Logger *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// DBFrom extracts the Postgres client from context.
func DBFrom(ctx context.Context) *postgres.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.DB
	}
	return nil
}

// BooksFrom extracts the book store from context.
func BooksFrom(ctx context.Context) *postgres.BookStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Books
	}
	return nil
}

// ChaptersFrom extracts the chapter store from context.
func ChaptersFrom(ctx context.Context) *postgres.ChapterStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Chapters
	}
	return nil
}

// DescsFrom extracts the description store from context.
func DescsFrom(ctx context.Context) *postgres.DescriptionStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Descs
	}
	return nil
}

// ImagesFrom extracts the generated-image store from context.
func ImagesFrom(ctx context.Context) *postgres.ImageStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Images
	}
	return nil
}

// JobsFrom extracts the parsing-job store from context.
func JobsFrom(ctx context.Context) *postgres.JobStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Jobs
	}
	return nil
}

// CoordFrom extracts the coordination store from context.
func CoordFrom(ctx context.Context) coordstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Coord
	}
	return nil
}

// GateFrom extracts the admission gate from context.
func GateFrom(ctx context.Context) *admission.Gate {
	if s := ServicesFrom(ctx); s != nil {
		return s.Gate
	}
	return nil
}

// QueueFrom extracts the priority queue from context.
func QueueFrom(ctx context.Context) *queue.PriorityQueue {
	if s := ServicesFrom(ctx); s != nil {
		return s.Queue
	}
	return nil
}

// DispatcherFrom extracts the queue dispatcher from context.
func DispatcherFrom(ctx context.Context) *queue.Dispatcher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Dispatcher
	}
	return nil
}

// PoolsFrom extracts the per-queue-class worker pools from context.
func PoolsFrom(ctx context.Context) map[jobs.QueueClass]*jobs.Pool {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pools
	}
	return nil
}

// SchedulerFrom extracts the job scheduler from context.
func SchedulerFrom(ctx context.Context) *jobs.Scheduler {
	if s := ServicesFrom(ctx); s != nil {
		return s.Scheduler
	}
	return nil
}

// ReconcilerFrom extracts the stuck-job reconciler from context.
func ReconcilerFrom(ctx context.Context) *jobs.Reconciler {
	if s := ServicesFrom(ctx); s != nil {
		return s.Reconciler
	}
	return nil
}

// RegistryFrom extracts the processor registry from context.
func RegistryFrom(ctx context.Context) *processors.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// FactoryFrom extracts the strategy factory from context.
func FactoryFrom(ctx context.Context) *pipeline.StrategyFactory {
	if s := ServicesFrom(ctx); s != nil {
		return s.Factory
	}
	return nil
}

// PipelineFrom extracts the extraction pipeline from context.
func PipelineFrom(ctx context.Context) *pipeline.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// IngestFrom extracts the ingress seam from context.
func IngestFrom(ctx context.Context) *ingest.Ingest {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ingest
	}
	return nil
}

// ImageQueueFrom extracts the image-request dispatcher from context.
func ImageQueueFrom(ctx context.Context) *imagequeue.Dispatcher {
	if s := ServicesFrom(ctx); s != nil {
		return s.ImageQueue
	}
	return nil
}

// MetricsRecordFrom extracts the metrics recorder from context.
func MetricsRecordFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.MetricsRecord
	}
	return nil
}

// MetricsQueryFrom extracts the metrics query helper from context.
func MetricsQueryFrom(ctx context.Context) *metrics.Query {
	if s := ServicesFrom(ctx); s != nil {
		return s.MetricsQuery
	}
	return nil
}

// ConfigManagerFrom extracts the live-reloading config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// ConfigStoreFrom extracts the runtime-mutable config store from context.
func ConfigStoreFrom(ctx context.Context) config.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigStore
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
