// Package notify delivers account credentials to newly created customers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storesync/internal/domain/user"
)

const instrumentationName = "github.com/xenking/storesync/internal/notify"

// Mailer sends a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// UserFinder loads the recipient of a credentials email.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*user.User, error)
}

// Config configures a Dispatcher.
type Config struct {
	// Workers is the number of delivery goroutines.
	Workers int `default:"2" usage:"Credentials email workers"`
	// Buffer is the queue capacity. Jobs arriving at a full queue are dropped.
	Buffer int `default:"64" usage:"Credentials email queue size"`
	// SendTimeout bounds a single delivery.
	SendTimeout time.Duration `default:"30s" usage:"Credentials email send timeout"`
	// LoginURL is linked from the email.
	LoginURL string `usage:"Account login URL shown in credentials emails"`
}

type job struct {
	ctx      context.Context
	userID   int64
	password string
}

// Dispatcher queues credentials emails and sends them from worker
// goroutines. NotifyCredentials never blocks.
type Dispatcher struct {
	cfg     Config
	users   UserFinder
	mailer  Mailer
	dropped metric.Int64Counter

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	wg     sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMeterProvider sets the meter provider for the dropped jobs counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(d *Dispatcher) {
		if mp == nil {
			return
		}
		c, err := mp.Meter(instrumentationName).Int64Counter("storesync.notify.dropped",
			metric.WithDescription("Credentials emails dropped because the queue was full or closed"),
		)
		if err == nil {
			d.dropped = c
		}
	}
}

// NewDispatcher creates a Dispatcher. Call Start to begin delivery.
func NewDispatcher(cfg Config, users UserFinder, mailer Mailer, opts ...Option) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	d := &Dispatcher{
		cfg:    cfg,
		users:  users,
		mailer: mailer,
		jobs:   make(chan job, cfg.Buffer),
	}
	d.dropped, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter("storesync.notify.dropped")
	for _, o := range opts {
		o(d)
	}
	return d
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	for range d.cfg.Workers {
		d.wg.Add(1)
		go d.work()
	}
}

// Stop stops accepting jobs and waits until the queued ones are delivered or
// ctx is done.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "drain credentials queue")
	}
}

// NotifyCredentials queues a credentials email for the user. The job keeps
// the request's logger but not its cancellation.
func (d *Dispatcher) NotifyCredentials(ctx context.Context, userID int64, password string) {
	lg := zctx.From(ctx)
	if userID <= 0 || password == "" {
		lg.Warn("Credentials notification skipped", zap.Int64("user_id", userID))
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, userID, "closed")
		return
	}

	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), userID: userID, password: password}:
	default:
		d.drop(ctx, userID, "full")
	}
}

func (d *Dispatcher) drop(ctx context.Context, userID int64, reason string) {
	d.dropped.Add(ctx, 1)
	zctx.From(ctx).Warn("Credentials notification dropped",
		zap.Int64("user_id", userID),
		zap.String("reason", reason),
	)
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.cfg.SendTimeout)
	defer cancel()

	lg := zctx.From(ctx).With(zap.Int64("user_id", j.userID))

	u, err := d.users.FindByID(ctx, j.userID)
	if err != nil {
		lg.Warn("Credentials recipient lookup failed", zap.Error(err))
		return
	}
	if u.Email == "" {
		lg.Warn("Credentials recipient has no email")
		return
	}

	msg, err := RenderCredentials(u.Email, Credentials{
		Username: u.Login,
		Password: j.password,
		LoginURL: d.cfg.LoginURL,
	})
	if err != nil {
		lg.Error("Credentials email render failed", zap.Error(err))
		return
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		lg.Warn("Credentials email failed", zap.Error(err))
		return
	}
	lg.Info("Credentials email sent")
}
