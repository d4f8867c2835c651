// Package snapshot periodically exports the order log to a gzip-compressed
// JSON file. The exporter is an external collaborator of the core: it only
// reads the stable Snapshot view and never mutates counter state.
package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/coffee-counter/internal/domain/order"
)

// Snapshotter supplies a stable copy of the order log.
type Snapshotter interface {
	Snapshot(ctx context.Context) []order.Order
}

// Exporter writes periodic snapshots of the order log.
type Exporter struct {
	src      Snapshotter
	path     string
	interval time.Duration
	lg       *zap.Logger
	now      func() time.Time
}

// New creates an Exporter writing to path every interval.
func New(src Snapshotter, path string, interval time.Duration, lg *zap.Logger) *Exporter {
	return &Exporter{
		src:      src,
		path:     path,
		interval: interval,
		lg:       lg,
		now:      time.Now,
	}
}

// Run writes snapshots until ctx is cancelled, then writes one final
// snapshot so shutdown never loses the tail of the session.
func (e *Exporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := e.Export(context.Background()); err != nil {
				return errors.Wrap(err, "final snapshot")
			}
			return nil
		case <-ticker.C:
			if err := e.Export(ctx); err != nil {
				// Export failures are retried on the next tick; the counter
				// keeps serving.
				e.lg.Warn("snapshot export failed", zap.Error(err))
			}
		}
	}
}

// Export writes one snapshot. The file is written to a temporary sibling
// and renamed into place so readers never observe a partial snapshot.
func (e *Exporter) Export(ctx context.Context) error {
	orders := e.src.Snapshot(ctx)

	tmp, err := os.CreateTemp(filepath.Dir(e.path), filepath.Base(e.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	zw := pgzip.NewWriter(tmp)
	if _, err := zw.Write(encode(orders, e.now())); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "close gzip writer")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return errors.Wrap(err, "rename snapshot")
	}

	e.lg.Debug("snapshot exported",
		zap.String("path", e.path),
		zap.Int("orders", len(orders)),
	)
	return nil
}

// encode renders the snapshot document.
func encode(orders []order.Order, exportedAt time.Time) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("exportedAt", func(e *jx.Encoder) { e.Str(exportedAt.Format(time.RFC3339)) })
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range orders {
					encodeOrder(e, &orders[i])
				}
			})
		})
	})
	return e.Bytes()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("uid", func(e *jx.Encoder) { e.Str(o.UID) })
		e.Field("ticket", func(e *jx.Encoder) { e.Str(o.Ticket) })
		e.Field("seq", func(e *jx.Encoder) { e.UInt64(o.Seq) })
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339Nano)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for key, qty := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("temperature", func(e *jx.Encoder) { e.Str(string(key.Temperature)) })
						e.Field("drink", func(e *jx.Encoder) { e.Str(key.Drink) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(qty) })
					})
				}
			})
		})
	})
}
