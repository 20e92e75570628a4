package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/util"
	"github.com/ppiankov/crowdframe/internal/worker"
)

// Deliverer sends one record to its destination
type Deliverer interface {
	Deliver(ctx context.Context, rec Record) error
}

// HTTPDeliverer posts records to an ingestion endpoint
type HTTPDeliverer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPDeliverer creates a deliverer for endpoint
func NewHTTPDeliverer(endpoint string, timeout time.Duration, httpProxy, httpsProxy, noProxy string) *HTTPDeliverer {
	return &HTTPDeliverer{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
			},
		},
	}
}

// Deliver posts the record as JSON. Any non-2xx status is an error.
func (d *HTTPDeliverer) Deliver(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingestion endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// deliveryJob adapts one record to the worker pool
type deliveryJob struct {
	rec       Record
	deliverer Deliverer
}

func (j *deliveryJob) Execute(ctx context.Context) worker.Result {
	return &deliveryResult{rec: j.rec, err: j.deliverer.Deliver(ctx, j.rec)}
}

type deliveryResult struct {
	rec Record
	err error
}

func (r *deliveryResult) GetError() error { return r.err }

// Client delivers records in the background. Emit never blocks the
// caller and delivery errors only reach the operator log.
type Client struct {
	pool      *worker.Pool
	deliverer Deliverer
	drained   chan struct{}
	pending   sync.WaitGroup

	mu        sync.Mutex
	delivered int
	failed    int
}

// NewClient starts a client with the given number of delivery workers
func NewClient(d Deliverer, workers int) *Client {
	c := &Client{
		pool:      worker.NewPoolWithQueue(workers, 256),
		deliverer: d,
		drained:   make(chan struct{}),
	}
	c.pool.Start()
	go c.drain()
	return c
}

func (c *Client) drain() {
	defer close(c.drained)
	for res := range c.pool.Results() {
		r := res.(*deliveryResult)
		c.mu.Lock()
		if r.err != nil {
			c.failed++
		} else {
			c.delivered++
		}
		c.mu.Unlock()

		if r.err != nil {
			logger.Error("ingest: dropping %s record %s/%s: %v", r.rec.Type, r.rec.Worker, r.rec.Sequence, r.err)
		}
	}
}

// Emit queues a record for delivery
func (c *Client) Emit(rec Record) {
	job := &deliveryJob{rec: rec, deliverer: c.deliverer}
	if c.pool.TrySubmit(job) {
		return
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if !c.pool.Submit(job) {
			logger.Error("ingest: client closed, dropping %s record %s/%s", rec.Type, rec.Worker, rec.Sequence)
		}
	}()
}

// Close waits for queued records to be delivered
func (c *Client) Close() {
	c.pending.Wait()
	c.pool.Close()
	<-c.drained
}

// Stats returns the number of delivered and failed records so far
func (c *Client) Stats() (delivered, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered, c.failed
}
