package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/k11v/telebuild/internal/build/buildamqp"
)

// Executor is implemented by *build.Executor.
type Executor interface {
	Execute(ctx context.Context, id uuid.UUID) error
	Cancel(id uuid.UUID) bool
}

// Consumer is implemented by *buildamqp.Consumer.
type Consumer interface {
	Requested(prefetch int) (<-chan amqp091.Delivery, error)
	Canceled() (<-chan amqp091.Delivery, error)
	NotifyClose() <-chan *amqp091.Error
	Close() error
}

type Worker struct {
	ConnectionString string       // required
	Concurrency      int          // default: 1
	Executor         Executor     // required
	Log              *slog.Logger // required

	// Dial connects a Consumer. It defaults to buildamqp.Dial.
	Dial func(connectionString string) (Consumer, error)
}

func (w *Worker) dial() (Consumer, error) {
	if w.Dial != nil {
		return w.Dial(w.ConnectionString)
	}
	c, err := buildamqp.Dial(w.ConnectionString)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (w *Worker) concurrency() int {
	c := w.Concurrency
	if c <= 0 {
		c = 1
	}
	return c
}

// Run consumes build messages until ctx is done and then waits for the
// running builds. It reconnects with a growing delay when the connection
// is lost. Builds keep running across reconnects.
func (w *Worker) Run(ctx context.Context) error {
	running := &runningBuilds{slots: make(chan struct{}, w.concurrency())}
	defer running.wg.Wait()

	retries := 0
	for {
		consumeErr := w.consume(ctx, running, func() {
			if retries > 0 {
				w.Log.Info("recovered", "retries", retries)
				retries = 0
			}
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.Log.Error("didn't consume", "error", consumeErr)

		retries++
		select {
		case <-time.After(retryWaitDuration(retries - 1)):
		case <-ctx.Done():
			return ctx.Err()
		}
		w.Log.Info("retrying", "retries", retries)
	}
}

// runningBuilds tracks the builds a worker runs across connections.
// At most cap(slots) of them run at a time.
type runningBuilds struct {
	wg    sync.WaitGroup
	slots chan struct{}
}

// consume runs requested builds and cancels canceled ones over one connection.
// When ctx is done, it waits for the running builds before closing the connection.
func (w *Worker) consume(ctx context.Context, running *runningBuilds, onConsumed func()) error {
	consumer, err := w.dial()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := consumer.Close(); closeErr != nil && !errors.Is(closeErr, amqp091.ErrClosed) {
			w.Log.Error("didn't close consumer", "error", closeErr)
		}
	}()
	closed := consumer.NotifyClose()

	requested, err := consumer.Requested(w.concurrency())
	if err != nil {
		return err
	}
	canceled, err := consumer.Canceled()
	if err != nil {
		return err
	}

	w.Log.Info("starting consuming", "concurrency", w.concurrency())
	for {
		select {
		case <-ctx.Done():
			running.wg.Wait()
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("connection is closed")
			}
			return fmt.Errorf("connection is closed: %w", amqpErr)
		case d, ok := <-canceled:
			if !ok {
				return errors.New("canceled delivery channel is closed")
			}
			w.cancel(d)
		case d, ok := <-requested:
			if !ok {
				return errors.New("requested delivery channel is closed")
			}
			onConsumed()
			running.wg.Add(1)
			go func() {
				defer running.wg.Done()
				select {
				case running.slots <- struct{}{}:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
				defer func() { <-running.slots }()
				w.execute(ctx, d)
			}()
		}
	}
}

func (w *Worker) execute(ctx context.Context, d amqp091.Delivery) {
	id, err := buildamqp.DecodeID(d.Body)
	if err != nil {
		w.Log.Error("didn't decode requested build", "error", err)
		_ = d.Nack(false, false)
		return
	}
	log := w.Log.With("build_id", id)

	log.Info("received requested build")
	if err = w.Executor.Execute(ctx, id); err != nil {
		log.Error("didn't execute build", "error", err)
		// Builds interrupted by a shutdown are left for another worker.
		_ = d.Nack(false, ctx.Err() != nil)
		return
	}

	if err = d.Ack(false); err != nil {
		log.Error("didn't ack requested build", "error", err)
	}
}

func (w *Worker) cancel(d amqp091.Delivery) {
	id, err := buildamqp.DecodeID(d.Body)
	if err != nil {
		w.Log.Error("didn't decode canceled build", "error", err)
		return
	}
	if w.Executor.Cancel(id) {
		w.Log.Info("canceled build", "build_id", id)
	}
}

// retryWaitDuration calculates the wait duration for a retry.
// It is calculated using exponential backoff with jitter.
// It grows with each retry and stops growing after thirteenth retry
// where it is chosen from the interval (32.4s, 97.4s).
// The first retry number is 0, the thirteenth is 12.
func retryWaitDuration(retry int) time.Duration {
	n := min(retry, 12)
	second := int(time.Second)

	// start with 0.5s
	duration := second / 2

	// multiply by 1.5 to the power of n
	for range n {
		duration /= 2
		duration *= 3
	}

	// add or subtract up to 50%
	jitter := rand.IntN(duration) - duration/2
	duration += jitter

	return time.Duration(duration)
}
