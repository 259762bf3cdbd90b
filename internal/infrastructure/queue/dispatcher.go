package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/core/ports"
	"github.com/quardintel/product-catalog/internal/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes catalog events to a fixed set of workers using consistent
// hashing on the product ID, guaranteeing per-product event ordering.
type Dispatcher struct {
	workers   []chan domain.CatalogEvent
	publisher ports.EventPublisher
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, publisher ports.EventPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.CatalogEvent, numWorkers),
		publisher: publisher,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.CatalogEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands event to the worker responsible for its product. It never
// blocks the caller: when the shard is full the event is dropped and counted.
func (d *Dispatcher) Enqueue(event domain.CatalogEvent) {
	idx := d.shardIndex(event.ProductID)
	select {
	case d.workers[idx] <- event:
		metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.EventsDroppedTotal.Inc()
		d.log.Warn().
			Str("type", string(event.Type)).
			Int64("product_id", event.ProductID).
			Int("worker_id", idx).
			Msg("event queue full, dropping event")
	}
}

// shardIndex maps a product ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(productID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(productID, 10)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.CatalogEvent) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			metrics.EventsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			if err := d.publisher.Publish(ctx, event); err != nil {
				metrics.EventsPublishedTotal.WithLabelValues("error").Inc()
				d.log.Error().Err(err).
					Str("type", string(event.Type)).
					Int64("product_id", event.ProductID).
					Int("worker_id", id).
					Msg("event publish failed")
				continue
			}
			metrics.EventsPublishedTotal.WithLabelValues("ok").Inc()
		}
	}
}
