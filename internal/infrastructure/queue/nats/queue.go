package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ap-automation/internal/infrastructure/resilience"
)

// QueueGroup load-balances upload events across worker replicas.
const QueueGroup = "workers"

// publishedAtHeader carries the publish time so consumers can measure queue lag.
const publishedAtHeader = "Published-At"

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
	onLag    func(time.Duration)
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
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
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("ap-automation"),
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
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// OnLag registers a callback receiving the publish-to-delivery delay of each message.
func (q *Queue) OnLag(fn func(time.Duration)) {
	q.onLag = fn
}

func publishLag(msg *nats.Msg, now time.Time) (time.Duration, bool) {
	if msg.Header == nil {
		return 0, false
	}
	publishedAt, err := time.Parse(time.RFC3339Nano, msg.Header.Get(publishedAtHeader))
	if err != nil {
		return 0, false
	}
	return now.Sub(publishedAt), true
}

func (q *Queue) PublishInvoiceUploaded(ctx context.Context, invoiceID string) error {
	call := func(_ context.Context) error {
		msg := nats.NewMsg(q.subject)
		msg.Data = []byte(invoiceID)
		msg.Header.Set(publishedAtHeader, time.Now().UTC().Format(time.RFC3339Nano))
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if err := q.executor.Execute(ctx, resilience.OpPublishUploaded, call, classifyPublishError); err != nil {
		return publishError(invoiceID, err)
	}
	return nil
}

func (q *Queue) SubscribeInvoiceUploaded(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, QueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		invoiceID := strings.TrimSpace(string(msg.Data))
		if invoiceID == "" {
			q.logger.Warn("nats_empty_message", "subject", msg.Subject)
			return
		}

		if lag, ok := publishLag(msg, time.Now()); ok && q.onLag != nil {
			q.onLag(lag)
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, invoiceID); err != nil {
			q.logger.Error("worker_handler_failed", "invoice_id", invoiceID, "error", err)
		}
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
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
