package snapshot

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/coffee-counter/internal/domain/order"
)

type staticSource struct {
	orders []order.Order
}

func (s *staticSource) Snapshot(_ context.Context) []order.Order {
	return s.orders
}

type snapshotDoc struct {
	ExportedAt string `json:"exportedAt"`
	Orders     []struct {
		UID    string `json:"uid"`
		Ticket string `json:"ticket"`
		Seq    uint64 `json:"seq"`
		Status string `json:"status"`
		Items  []struct {
			Temperature string `json:"temperature"`
			Drink       string `json:"drink"`
			Quantity    int    `json:"quantity"`
		} `json:"items"`
	} `json:"orders"`
}

func readSnapshot(t *testing.T, path string) snapshotDoc {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := pgzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	var doc snapshotDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func TestExport(t *testing.T) {
	src := &staticSource{orders: []order.Order{
		{
			UID:       "u1",
			Ticket:    "♠️A",
			Seq:       1,
			Items:     map[order.DrinkKey]int{{Temperature: order.Hot, Drink: "Latte"}: 2},
			CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Status:    order.StatusPending,
		},
		{
			UID:       "u2",
			Ticket:    "♥️7",
			Seq:       2,
			Items:     map[order.DrinkKey]int{{Temperature: order.Iced, Drink: "Mocha"}: 1},
			CreatedAt: time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC),
			Status:    order.StatusCompleted,
		},
	}}

	path := filepath.Join(t.TempDir(), "orders.json.gz")
	exp := New(src, path, time.Minute, zap.NewNop())

	require.NoError(t, exp.Export(context.Background()))

	doc := readSnapshot(t, path)
	assert.NotEmpty(t, doc.ExportedAt)
	require.Len(t, doc.Orders, 2)
	assert.Equal(t, "u1", doc.Orders[0].UID)
	assert.Equal(t, "♠️A", doc.Orders[0].Ticket)
	assert.Equal(t, "pending", doc.Orders[0].Status)
	require.Len(t, doc.Orders[0].Items, 1)
	assert.Equal(t, 2, doc.Orders[0].Items[0].Quantity)
	assert.Equal(t, "completed", doc.Orders[1].Status)
}

func TestExport_OverwritesAtomically(t *testing.T) {
	src := &staticSource{}
	path := filepath.Join(t.TempDir(), "orders.json.gz")
	exp := New(src, path, time.Minute, zap.NewNop())

	require.NoError(t, exp.Export(context.Background()))

	src.orders = []order.Order{{
		UID:       "u1",
		Ticket:    "♦️3",
		Seq:       1,
		Items:     map[order.DrinkKey]int{{Temperature: order.Hot, Drink: "Americano"}: 1},
		CreatedAt: time.Now(),
		Status:    order.StatusPending,
	}}
	require.NoError(t, exp.Export(context.Background()))

	doc := readSnapshot(t, path)
	require.Len(t, doc.Orders, 1)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestRun_WritesFinalSnapshotOnShutdown(t *testing.T) {
	src := &staticSource{orders: []order.Order{{
		UID:       "u1",
		Ticket:    "♣️J",
		Seq:       1,
		Items:     map[order.DrinkKey]int{{Temperature: order.Iced, Drink: "Latte"}: 1},
		CreatedAt: time.Now(),
		Status:    order.StatusPending,
	}}}
	path := filepath.Join(t.TempDir(), "orders.json.gz")
	exp := New(src, path, time.Hour, zap.NewNop()) // interval never fires in-test

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, exp.Run(ctx))

	doc := readSnapshot(t, path)
	require.Len(t, doc.Orders, 1)
	assert.Equal(t, "u1", doc.Orders[0].UID)
}
