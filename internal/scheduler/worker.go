package scheduler

import (
	"context"
	"fmt"

	"tradelink_backend/internal/events"
	"tradelink_backend/platform/config"
	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes due-notification tasks and hands them to the fan-out
// pipeline through the event bus. Tasks are enqueued without retries, so a
// returned error lands the task in the archive for inspection; the
// notification itself is marked failed and waits for an operator.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskNotificationDue, w.handleNotificationDue)

	return w, nil
}

func (w *Worker) handleNotificationDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationDuePayload(task)
	if err != nil {
		return err
	}

	notificationID, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.NotificationDue{
		BaseEvent:      events.NewBaseEvent(),
		NotificationID: notificationID,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
