package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/infrastructure/resilience"
)

const (
	workerQueueGroup = "recall-workers"
	cancelSuffix     = ".cancel"
)

// Queue carries recall jobs to workers and streams run events back.
// Jobs use a queue group so each is handled once; cancel messages fan out to
// every worker because only the owner of the run can act on them.
type Queue struct {
	conn          *nats.Conn
	subject       string
	eventsSubject string
	executor      *resilience.Executor
	logger        *slog.Logger
	maxInFlight   int64
}

type Options struct {
	EventsSubject        string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	MaxInFlight          int
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("pageindex-recall"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &Queue{
		conn:          conn,
		subject:       subject,
		eventsSubject: eventsSubjectOrDefault(subject, options.EventsSubject),
		executor:      options.ResilienceExecutor,
		logger:        logger,
		maxInFlight:   int64(max(options.MaxInFlight, 1)),
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func eventsSubjectOrDefault(subject, events string) string {
	if events = strings.TrimSpace(events); events != "" {
		return events
	}
	return subject + ".events"
}

func eventSubject(prefix, runID string) string {
	return prefix + "." + runID
}

func cancelSubject(subject string) string {
	return subject + cancelSuffix
}

func (q *Queue) publish(ctx context.Context, operation, subject string, data []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(operation, err)
	}
	return nil
}

func (q *Queue) PublishRecall(ctx context.Context, req domain.RecallRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal recall request: %w", err)
	}
	return q.publish(ctx, "nats.publish_recall", q.subject, data)
}

func (q *Queue) PublishEvent(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal recall event: %w", err)
	}
	return q.publish(ctx, "nats.publish_event", eventSubject(q.eventsSubject, event.RunID), data)
}

func (q *Queue) PublishCancel(ctx context.Context, runID string) error {
	return q.publish(ctx, "nats.publish_cancel", cancelSubject(q.subject), []byte(runID))
}

// SubscribeRecall runs handler for each job with at most MaxInFlight jobs
// at a time. It blocks until ctx ends, then drains the subscription.
func (q *Queue) SubscribeRecall(ctx context.Context, handler func(context.Context, domain.RecallRequest) error) error {
	slots := semaphore.NewWeighted(q.maxInFlight)

	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		req, err := decodeRecallRequest(msg.Data)
		if err != nil {
			q.logger.Warn("recall_job_rejected", "error", err)
			return
		}
		if err := slots.Acquire(ctx, 1); err != nil {
			return
		}
		go func() {
			defer slots.Release(1)
			if err := handler(ctx, req); err != nil {
				q.logger.Warn("recall_job_failed", "run_id", req.RunID, "error", err)
			}
		}()
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	// wait for in-flight jobs to observe cancellation and finish
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := slots.Acquire(waitCtx, q.maxInFlight); err == nil {
		slots.Release(q.maxInFlight)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) SubscribeCancel(ctx context.Context, handler func(runID string)) error {
	sub, err := q.conn.Subscribe(cancelSubject(q.subject), func(msg *nats.Msg) {
		if runID := strings.TrimSpace(string(msg.Data)); runID != "" {
			handler(runID)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe cancel: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func decodeRecallRequest(data []byte) (domain.RecallRequest, error) {
	var req domain.RecallRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.RecallRequest{}, fmt.Errorf("decode recall request: %w", err)
	}
	if strings.TrimSpace(req.Query) == "" {
		return domain.RecallRequest{}, errors.New("decode recall request: empty query")
	}
	if strings.TrimSpace(req.RunID) == "" {
		return domain.RecallRequest{}, errors.New("decode recall request: missing run_id")
	}
	return req, nil
}
