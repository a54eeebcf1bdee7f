package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/OFFIS-RIT/listenkg/pkg/cache"
	"github.com/OFFIS-RIT/listenkg/pkg/dataset"
	"github.com/OFFIS-RIT/listenkg/pkg/graph"
	"github.com/OFFIS-RIT/listenkg/pkg/leaselock"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/metadata"
	"github.com/OFFIS-RIT/listenkg/pkg/store"
)

// Locker serializes work on one dataset.
type Locker interface {
	WithDataset(ctx context.Context, dataset string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Publisher uploads the files of a dataset directory.
type Publisher interface {
	Publish(ctx context.Context, dataset, dir string) ([]string, error)
}

// Notifier announces finished jobs.
type Notifier func(topic string, body []byte) error

// Handler executes queue messages. Locker, Store, Publisher and Notify
// are optional; a nil one skips its step.
type Handler struct {
	DataPath    string
	RawDataPath string
	Seed        uint64
	Parallel    int
	MinCo       int

	Cache     *cache.Manager
	Locker    Locker
	Store     store.GraphStorage
	Publisher Publisher
	Notify    Notifier
}

// Handle dispatches body by queue name.
func (h *Handler) Handle(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case RebuildQueue:
		return h.ProcessRebuild(ctx, body)
	case DeleteQueue:
		return h.ProcessDelete(ctx, body)
	}
	return fmt.Errorf("unknown queue %q", queueName)
}

func (h *Handler) withLock(ctx context.Context, name string, fn func(context.Context) error) error {
	if h.Locker == nil {
		return fn(ctx)
	}
	return h.Locker.WithDataset(ctx, name, leaselock.Options{TTL: 2 * time.Minute}, fn)
}

// ProcessRebuild preprocesses the dataset named in body, warms its cache,
// exports the triples and publishes the artifacts, in that order.
func (h *Handler) ProcessRebuild(ctx context.Context, body []byte) error {
	msg, err := decode[RebuildMsg](body)
	if err != nil {
		return err
	}
	seed := h.Seed
	if msg.Seed != 0 {
		seed = msg.Seed
	}
	outDir := filepath.Join(h.DataPath, msg.Dataset)

	return h.withLock(ctx, msg.Dataset, func(ctx context.Context) error {
		logger.Info("[Queue] Rebuilding dataset", "dataset", msg.Dataset, "correlation_id", msg.CorrelationID, "reduce", msg.Reduce)

		client := graph.NewGraphClient(graph.NewGraphClientParams{
			Seed:          seed,
			ParallelUsers: h.Parallel,
			MinCoListens:  h.MinCo,
		})
		res, err := client.ProcessDataset(ctx, graph.ProcessParams{
			RawPath:    filepath.Join(h.RawDataPath, msg.Dataset),
			OutputPath: outDir,
			Reduce:     msg.Reduce,
			MaxUsers:   msg.MaxUsers,
			MaxArtists: msg.MaxArtists,
		})
		if err != nil {
			return fmt.Errorf("failed to process dataset: %w", err)
		}

		ds := dataset.New(dataset.NewDatasetParams{Root: h.DataPath, Name: msg.Dataset, Cache: h.Cache})
		kg, err := ds.LoadKG(ctx)
		if err != nil {
			return fmt.Errorf("failed to load rebuilt graph: %w", err)
		}

		if h.Store != nil {
			if err := h.Store.SaveGraph(ctx, msg.Dataset, res.Metadata, kg.Triples); err != nil {
				return fmt.Errorf("failed to export graph: %w", err)
			}
		}

		event := RebuiltEvent{
			Dataset:       msg.Dataset,
			CorrelationID: msg.CorrelationID,
			Entities:      res.NumArtists + res.NumUsers,
			Triples:       res.Triples,
		}
		event.KGHash, _ = res.Metadata.Str(metadata.KeyKGFileHash)

		if h.Publisher != nil {
			keys, err := h.Publisher.Publish(ctx, msg.Dataset, outDir)
			if err != nil {
				return fmt.Errorf("failed to publish artifacts: %w", err)
			}
			event.Artifacts = keys
		}

		if h.Notify != nil {
			data, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := h.Notify("dataset.rebuilt."+msg.Dataset, data); err != nil {
				logger.Warn("[Queue] Failed to publish rebuild event", "dataset", msg.Dataset, "err", err)
			}
		}

		logger.Info("[Queue] Dataset rebuilt", "dataset", msg.Dataset, "triples", res.Triples, "correlation_id", msg.CorrelationID)
		return nil
	})
}

// ProcessDelete removes the exported graph of a dataset. Local files and
// published artifacts are left alone.
func (h *Handler) ProcessDelete(ctx context.Context, body []byte) error {
	msg, err := decode[DeleteMsg](body)
	if err != nil {
		return err
	}
	if h.Store == nil {
		logger.Warn("[Queue] No graph store configured, nothing to delete", "dataset", msg.Dataset)
		return nil
	}
	return h.withLock(ctx, msg.Dataset, func(ctx context.Context) error {
		if err := h.Store.DeleteGraph(ctx, msg.Dataset); err != nil {
			return fmt.Errorf("failed to delete graph: %w", err)
		}
		logger.Info("[Queue] Dataset deleted", "dataset", msg.Dataset, "correlation_id", msg.CorrelationID)
		return nil
	})
}
