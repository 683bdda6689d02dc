package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/huiui/hello-antd-role/jobs"
)

// Enqueuer submits tasks.
type Enqueuer interface {
	EnqueueCatalogSync(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// Inspector reads queue state.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

// NewJobsCLI builds the helpers from already connected parts.
func NewJobsCLI(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name, reason string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskCatalogSync:
		return c.client.EnqueueCatalogSync(ctx, reason)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
}

// InspectQueue reports the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

// Run connects to Redis and executes one jobs subcommand.
func Run(ctx context.Context, opts asynq.RedisClientOpt, args []string, out io.Writer) error {
	client := jobs.NewClient(opts)
	defer client.Close()
	inspector := asynq.NewInspector(opts)
	defer inspector.Close()
	return NewJobsCLI(client, inspector).Execute(ctx, args, out)
}

const usage = "usage: jobs trigger [--reason r] <task> | jobs stats | jobs scheduled [--size n]"

// Execute parses args and writes the result as JSON to out.
func (c *JobsCLI) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	fs := pflag.NewFlagSet("jobs "+args[0], pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	reason := fs.String("reason", "manual", "reason recorded on the task")
	size := fs.Int("size", 10, "page size for scheduled tasks")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("jobs %s: %w", args[0], err)
	}

	var result any
	switch args[0] {
	case "trigger":
		if fs.NArg() != 1 {
			return errors.New(usage)
		}
		info, err := c.Trigger(ctx, strings.TrimSpace(fs.Arg(0)), *reason)
		if err != nil {
			return err
		}
		result = map[string]string{"id": info.ID, "queue": info.Queue, "type": info.Type}
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		result = stats
	case "scheduled":
		tasks, err := c.ListScheduled(*size)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(tasks))
		for _, t := range tasks {
			ids = append(ids, t.ID)
		}
		result = map[string]any{"scheduled": ids}
	default:
		return errors.New(usage)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
