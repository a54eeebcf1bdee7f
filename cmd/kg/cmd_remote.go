package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/OFFIS-RIT/listenkg/internal/config"
	"github.com/OFFIS-RIT/listenkg/internal/queue"
	"github.com/OFFIS-RIT/listenkg/internal/storage"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/store/migrations"
	pgs "github.com/OFFIS-RIT/listenkg/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func artifactStore(ctx context.Context) (*storage.ArtifactStore, error) {
	if err := cfg.ValidateFor(config.GroupS3); err != nil {
		return nil, err
	}
	client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	return storage.NewArtifactStore(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
}

func runPublish(cmd *cobra.Command, _ []string) error {
	artifacts, err := artifactStore(cmd.Context())
	if err != nil {
		return err
	}
	keys, err := artifacts.Publish(cmd.Context(), cfg.Dataset, filepath.Join(cfg.DataPath, cfg.Dataset))
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	return nil
}

func runFetch(cmd *cobra.Command, _ []string) error {
	artifacts, err := artifactStore(cmd.Context())
	if err != nil {
		return err
	}
	return artifacts.Fetch(cmd.Context(), cfg.Dataset, filepath.Join(cfg.DataPath, cfg.Dataset))
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateFor(config.GroupDatabase); err != nil {
		return err
	}
	if err := migrations.Up(cfg.Database.URL); err != nil {
		return err
	}
	logger.Info("Migrations applied")
	return nil
}

// runExport loads the canonical graph through the cache and replaces the
// stored copy in Postgres.
func runExport(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateFor(config.GroupDatabase); err != nil {
		return err
	}
	if useSmall {
		return fmt.Errorf("only the canonical dataset can be exported")
	}
	ctx := cmd.Context()

	kg, err := openDataset(true).LoadKG(ctx)
	if err != nil {
		return err
	}
	if kg.Integrity != nil && kg.Integrity.Violated() {
		return fmt.Errorf("refusing to export dataset %s: integrity check failed", cfg.Dataset)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	st := pgs.NewGraphDBStorageWithConnection(pool)
	if err := st.SaveGraph(ctx, cfg.Dataset, kg.Metadata, kg.Triples); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d triples of %s\n", kg.Triples.Rows(), cfg.Dataset)
	return nil
}

func runEnqueue(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateFor(config.GroupQueue); err != nil {
		return err
	}
	msg := queue.RebuildMsg{
		Dataset:       cfg.Dataset,
		Reduce:        reduce,
		CorrelationID: queue.NewCorrelationID(),
	}
	if reduce {
		msg.MaxUsers, msg.MaxArtists = maxUsers, maxArtists
	}
	if cmd.Flags().Changed("seed") {
		msg.Seed = cfg.Seed
	}
	body, err := queue.EncodeRebuild(msg)
	if err != nil {
		return err
	}

	conn, err := queue.Init(cfg.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		return err
	}
	if err := queue.PublishFIFO(ch, queue.RebuildQueue, body); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "queued rebuild of %s (%s)\n", cfg.Dataset, msg.CorrelationID)
	return nil
}
