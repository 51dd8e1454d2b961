package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"firechain/core/events"
)

const (
	// HeaderEvent carries the event type of the delivery.
	HeaderEvent = "X-Fire-Event"
	// HeaderSignature carries the hex HMAC-SHA256 of the body.
	HeaderSignature = "X-Fire-Signature"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultDrain       = 10 * time.Second
)

// ErrClosed is returned when enqueueing on a closed dispatcher.
var ErrClosed = errors.New("webhook: dispatcher closed")

// Payload is the JSON body posted for every forwarded reward event.
type Payload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	EmittedAt  time.Time         `json:"emittedAt"`
	DeliveryID string            `json:"deliveryId"`
}

// Dispatcher forwards reward events to an HTTP endpoint with retry and
// exponential backoff. It satisfies events.Emitter.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	topics      map[string]struct{}
	logger      *slog.Logger
	now         func() time.Time
	drain       time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.RWMutex
	closed  bool
	queue   chan delivery
	wg      sync.WaitGroup
	counter atomic.Uint64
}

type delivery struct {
	eventType string
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithDrainTimeout bounds how long Close keeps delivering queued events.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.drain = timeout
		}
	}
}

// WithTopics restricts forwarding to the listed event types.
func WithTopics(types ...string) Option {
	return func(d *Dispatcher) {
		if len(types) == 0 {
			return
		}
		d.topics = make(map[string]struct{}, len(types))
		for _, t := range types {
			d.topics[t] = struct{}{}
		}
	}
}

// WithLogger overrides the logger used for failed deliveries.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = string(bytes.TrimSpace([]byte(endpoint)))
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		drain:       defaultDrain,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 32),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	dispatcher.wg.Add(1)
	go dispatcher.worker()
	return dispatcher, nil
}

// Close stops accepting events and delivers everything already queued. Jobs
// still pending when the drain timeout expires are dropped.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	deadline := time.AfterFunc(d.drain, d.cancel)
	d.wg.Wait()
	deadline.Stop()
	d.cancel()
}

// Emit implements events.Emitter. Events outside the configured topics are
// ignored.
func (d *Dispatcher) Emit(evt events.Event) {
	if d == nil || evt == nil {
		return
	}
	if err := d.Enqueue(evt); err != nil {
		d.logger.Warn("webhook enqueue failed", "type", evt.EventType(), "error", err)
	}
}

// Enqueue schedules evt for asynchronous delivery.
func (d *Dispatcher) Enqueue(evt events.Event) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	if d.topics != nil {
		if _, ok := d.topics[evt.EventType()]; !ok {
			return nil
		}
	}
	rendered := evt.Event()
	if rendered == nil {
		return nil
	}
	payload := Payload{
		Type:       rendered.Type,
		Attributes: rendered.Attributes,
		EmittedAt:  d.now(),
	}
	payload.DeliveryID = fmt.Sprintf("%s-%d-%d", payload.Type, payload.EmittedAt.UnixNano(), d.counter.Add(1))
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	d.queue <- delivery{eventType: payload.Type, body: data}
	return nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	dropped := 0
	for job := range d.queue {
		if d.ctx.Err() != nil {
			dropped++
			continue
		}
		d.process(job)
	}
	if dropped > 0 {
		d.logger.Error("webhook deliveries dropped on close", "count", dropped)
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Error("webhook delivery abandoned", "type", job.eventType, "attempts", attempt, "error", err)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, job.eventType)
	req.Header.Set(HeaderSignature, Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
