package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/core/domain"
)

const tracerName = "github.com/rl1809/orderflow/internal/core/event"

var ErrHandlerPanic = errors.New("handler panicked")

// Handler consumes OrderCreated events. Handlers run concurrently with each other and must
// not share mutable state.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event domain.OrderCreatedEvent) error
}

type Result struct {
	Handler  string
	Err      error
	Duration time.Duration
}

// Receipt tracks the handler invocations of one dispatched event. It exists for logging and
// tests; the publisher never waits on it.
type Receipt struct {
	EventID string

	results []Result
	pending sync.WaitGroup
	done    chan struct{}
}

func (r *Receipt) Done() <-chan struct{} { return r.done }

// Wait blocks until every handler finished or ctx is done.
func (r *Receipt) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results blocks until every handler finished and returns their outcomes in registration order.
func (r *Receipt) Results() []Result {
	<-r.done
	return append([]Result(nil), r.results...)
}

// Err joins the handler errors, nil when all succeeded.
func (r *Receipt) Err() error {
	var errs []error
	for _, res := range r.Results() {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Handler, res.Err))
		}
	}
	return errors.Join(errs...)
}

type Option func(*Dispatcher)

// WithHandlerTimeout bounds each handler invocation. Zero means no limit.
func WithHandlerTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.timeout = d }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(dp *Dispatcher) { dp.tracer = tracer }
}

type Dispatcher struct {
	pool     *Pool
	handlers []Handler
	timeout  time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewDispatcher(pool *Pool, handlers []Handler, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:     pool,
		handlers: append([]Handler(nil), handlers...),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish implements port.EventPublisher. It returns once every handler invocation has been
// handed to the pool; handler outcomes are only logged.
func (d *Dispatcher) Publish(ctx context.Context, ev domain.OrderCreatedEvent) error {
	_, err := d.dispatch(ctx, ev)
	return err
}

// Dispatch schedules every handler for ev and returns without waiting for them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.OrderCreatedEvent) *Receipt {
	receipt, _ := d.dispatch(ctx, ev)
	return receipt
}

func (d *Dispatcher) dispatch(ctx context.Context, ev domain.OrderCreatedEvent) (*Receipt, error) {
	receipt := &Receipt{
		EventID: ev.ID,
		results: make([]Result, len(d.handlers)),
		done:    make(chan struct{}),
	}
	// Handlers outlive the request that created the order.
	base := context.WithoutCancel(ctx)

	var submitErrs []error
	for i, h := range d.handlers {
		slot := &receipt.results[i]
		slot.Handler = h.Name()

		receipt.pending.Add(1)
		handler := h
		err := d.pool.Submit(func() {
			defer receipt.pending.Done()
			start := time.Now()
			slot.Err = d.invoke(base, handler, ev)
			slot.Duration = time.Since(start)
			d.logResult(ev, *slot)
		})
		if err != nil {
			receipt.pending.Done()
			slot.Err = err
			submitErrs = append(submitErrs, fmt.Errorf("%s: %w", h.Name(), err))
			d.logger.Error("dropped event delivery",
				zap.String("handler", h.Name()),
				zap.String("event_id", ev.ID),
				zap.String("order_id", ev.Order.ID),
				zap.Error(err),
			)
		}
	}

	go func() {
		receipt.pending.Wait()
		close(receipt.done)
	}()

	return receipt, errors.Join(submitErrs...)
}

func (d *Dispatcher) invoke(ctx context.Context, h Handler, ev domain.OrderCreatedEvent) (err error) {
	ctx, span := d.tracer.Start(ctx, "event.handle", trace.WithAttributes(
		attribute.String("event.handler", h.Name()),
		attribute.String("event.id", ev.ID),
		attribute.String("order.id", ev.Order.ID),
	))
	defer span.End()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "handled")
	}()

	return h.Handle(ctx, ev)
}

func (d *Dispatcher) logResult(ev domain.OrderCreatedEvent, res Result) {
	fields := []zap.Field{
		zap.String("handler", res.Handler),
		zap.String("event_id", ev.ID),
		zap.String("order_id", ev.Order.ID),
		zap.Duration("duration", res.Duration),
	}
	if res.Err != nil {
		d.logger.Error("event handler failed", append(fields, zap.Error(res.Err))...)
		return
	}
	d.logger.Debug("event handled", fields...)
}
