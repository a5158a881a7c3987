// Package notify queues direct messages on asynq and delivers them from a worker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/service"
)

// TypeDirectMessage is the asynq task type for one direct message.
const TypeDirectMessage = "notify:dm"

type dmPayload struct {
	MemberID string `json:"member_id"`
	Text     string `json:"text"`
}

func NewDirectMessageTask(memberID, text string) (*asynq.Task, error) {
	payload, err := json.Marshal(dmPayload{MemberID: memberID, Text: text})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDirectMessage, payload, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier is a service.Notifier that enqueues instead of sending.
type QueueNotifier struct {
	client enqueuer
}

var _ service.Notifier = (*QueueNotifier)(nil)

func NewQueueNotifier(client *asynq.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (n *QueueNotifier) Notify(ctx context.Context, memberID, text string) error {
	task, err := NewDirectMessageTask(memberID, text)
	if err != nil {
		return err
	}
	if _, err := n.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeDirectMessage, err)
	}
	return nil
}

// RedisOpt builds the asynq connection from the shared redis settings.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr(), Password: cfg.Password, DB: cfg.DB}
}

// Worker delivers queued direct messages through the platform notifier.
type Worker struct {
	server   *asynq.Server
	notifier service.Notifier
	logger   *zap.Logger
}

func NewWorker(redisOpt asynq.RedisClientOpt, cfg config.NotifyConfig, notifier service.Notifier, logger *zap.Logger) *Worker {
	logger = logger.Named("notify_worker")
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Logger:      logger.Sugar(),
	})
	return &Worker{server: server, notifier: notifier, logger: logger}
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDirectMessage, w.HandleDirectMessage)
	return w.server.Start(mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) HandleDirectMessage(ctx context.Context, task *asynq.Task) error {
	var p dmPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil || p.MemberID == "" {
		return fmt.Errorf("malformed %s payload: %v: %w", TypeDirectMessage, err, asynq.SkipRetry)
	}
	if err := w.notifier.Notify(ctx, p.MemberID, p.Text); err != nil {
		w.logger.Warn("direct message failed", zap.String("member_id", p.MemberID), zap.Error(err))
		return err
	}
	return nil
}
