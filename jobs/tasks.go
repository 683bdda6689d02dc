package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/huiui/hello-antd-role/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCatalogSync upserts every registered permission into the catalog.
	TaskCatalogSync = "rbac:catalog_sync"
)

// CatalogSyncPayload describes why a sync was requested.
type CatalogSyncPayload struct {
	Reason string `json:"reason"`
}

// NewCatalogSyncTask constructs an Asynq task.
func NewCatalogSyncTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(CatalogSyncPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogSync, data, asynq.Queue(QueueDefault)), nil
}

// CatalogSyncer writes the permission registry into storage.
type CatalogSyncer interface {
	SyncCatalog(ctx context.Context) (int, error)
}

// CatalogSyncJob handles TaskCatalogSync.
type CatalogSyncJob struct {
	Syncer  CatalogSyncer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCatalogSyncJob wires dependencies for the sync handler.
func NewCatalogSyncJob(syncer CatalogSyncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogSyncJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogSyncJob{Syncer: syncer, Logger: logger, Metrics: metrics}
}

// Handle processes catalog sync tasks.
func (j *CatalogSyncJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Syncer == nil {
		return errors.New("catalog sync: handler not configured")
	}
	tracker := j.Metrics.Track(TaskCatalogSync)
	defer func() { err = tracker.End(err) }()

	var payload CatalogSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.Logger.Warn("catalog sync: bad payload", slog.Any("error", err))
		return fmt.Errorf("catalog sync payload: %w", asynq.SkipRetry)
	}

	n, err := j.Syncer.SyncCatalog(ctx)
	if err != nil {
		j.Logger.Error("catalog sync", slog.String("reason", payload.Reason), slog.Any("error", err))
		return err
	}
	j.Metrics.SetItems(TaskCatalogSync, n)
	j.Logger.Info("catalog synced", slog.String("reason", payload.Reason), slog.Int("permissions", n))
	return nil
}
