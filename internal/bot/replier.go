package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"radiance/backend/pkg/logger"
	"radiance/backend/shared/observability"
)

var (
	// ErrQueueFull is returned by Submit when every worker is busy and the
	// queue has no room left
	ErrQueueFull = errors.New("bot reply queue is full")
	// ErrReplierClosed is returned by Submit after Close
	ErrReplierClosed = errors.New("bot replier is closed")
)

// Request describes one reply to produce. The bot answers the human in the
// same room the trigger was sent to.
type Request struct {
	RoomID  string
	BotID   uint
	HumanID uint
	Persona string
	Message string
	// Time is the client display time of the triggering message
	Time string
}

// Sink persists and publishes a generated reply.
type Sink func(ctx context.Context, req Request, reply string) error

// Options tunes the worker pool
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Replier runs bot reply tasks on a bounded pool of workers, independent of
// the session that triggered them.
type Replier struct {
	gen     Generator
	sink    Sink
	opts    Options
	log     *logger.Logger
	metrics *observability.ChatMetrics

	mu     sync.RWMutex
	closed bool
	tasks  chan Request
	wg     sync.WaitGroup
}

// NewReplier creates a replier and starts its workers
func NewReplier(gen Generator, sink Sink, opts Options, log *logger.Logger, metrics *observability.ChatMetrics) *Replier {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	r := &Replier{
		gen:     gen,
		sink:    sink,
		opts:    opts,
		log:     log.With("component", "bot_replier"),
		metrics: metrics,
		tasks:   make(chan Request, opts.QueueSize),
	}

	r.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go r.work()
	}
	return r
}

// Submit queues a reply without waiting for it
func (r *Replier) Submit(req Request) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrReplierClosed
	}

	select {
	case r.tasks <- req:
		return nil
	default:
		r.metrics.BotReply(context.Background(), "dropped", 0)
		r.log.Warn("Bot reply dropped, queue full",
			"room", req.RoomID,
			"bot_id", req.BotID,
		)
		return ErrQueueFull
	}
}

// Close stops accepting work and waits for queued replies to finish or for
// ctx to expire
func (r *Replier) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.tasks)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bot replies still running: %w", ctx.Err())
	}
}

func (r *Replier) work() {
	defer r.wg.Done()

	for req := range r.tasks {
		r.run(req)
	}
}

func (r *Replier) run(req Request) {
	log := r.log.WithRoom(req.RoomID).With("bot_id", req.BotID, "human_id", req.HumanID)

	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.BotReply(context.Background(), "failed", 0)
			log.Error("Bot reply panicked",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
	defer cancel()

	ctx, span := otel.Tracer("radiance/backend/internal/bot").Start(ctx, "bot.reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("room", req.RoomID),
		attribute.Int("bot_id", int(req.BotID)),
	)

	start := time.Now()
	reply, err := r.gen.Generate(ctx, SystemPrompt, UserPrompt(req.Persona, req.Message))
	if err != nil {
		outcome := "failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		r.metrics.BotReply(ctx, outcome, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		log.LogError(err, "Bot reply not generated", "outcome", outcome)
		return
	}

	if err := r.sink(ctx, req, reply); err != nil {
		r.metrics.BotReply(ctx, "failed", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "sink")
		log.LogError(err, "Bot reply not delivered")
		return
	}

	r.metrics.BotReply(ctx, "sent", time.Since(start))
	log.Debug("Bot reply sent", "duration", time.Since(start).String())
}
