package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"hcp_job_processor/internal/geocode"
	"hcp_job_processor/internal/jobs"
	jobsrepo "hcp_job_processor/internal/jobs/repository"
	"hcp_job_processor/platform/config"
	"hcp_job_processor/platform/db"
	"hcp_job_processor/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type locationStore interface {
	ListMissingLocation(ctx context.Context, limit int) ([]jobs.JobRecord, error)
	SetLocation(ctx context.Context, id uuid.UUID, loc jobs.Location) error
}

func main() {
	batchSize := flag.Int("batch", 25, "records fetched per batch")
	workers := flag.Int("workers", 2, "concurrent geocode requests")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting job geocode backfill", "batch", *batchSize, "workers", *workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	store := jobsrepo.NewJobRepository(pool)
	geocoder := geocode.NewService(cfg.GetNominatimURL(), cfg.GetGeocodeCountryCodes(), log)

	total, err := backfill(ctx, store, geocoder, log, *batchSize, *workers)
	if err != nil {
		log.Error("geocode backfill failed", "error", err, "geocoded", total)
		return
	}
	log.Info("geocode backfill finished", "geocoded", total)
}

// backfill geocodes batches until a batch makes no progress.
func backfill(ctx context.Context, store locationStore, geocoder jobs.Geocoder, log *logger.Logger, batchSize, workers int) (int64, error) {
	if workers < 1 {
		workers = 1
	}

	var total int64
	for {
		records, err := store.ListMissingLocation(ctx, batchSize)
		if err != nil {
			return total, err
		}
		if len(records) == 0 {
			log.Info("no records left to geocode")
			return total, nil
		}

		var progress int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, record := range records {
			if record.Address.IsEmpty() {
				log.Info("skipping record without address", "recordId", record.ID)
				continue
			}
			g.Go(func() error {
				loc, err := geocoder.Geocode(gctx, *record.Address)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Warn("geocode failed", "recordId", record.ID, "error", err)
					return nil
				}
				if err := store.SetLocation(gctx, record.ID, *loc); err != nil {
					log.Error("failed to update record", "recordId", record.ID, "error", err)
					return nil
				}
				log.Info("record geocoded", "recordId", record.ID, "lat", loc.Lat, "lon", loc.Lon)
				atomic.AddInt64(&progress, 1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total + progress, err
		}

		total += progress
		if progress == 0 {
			log.Info("no geocode progress in batch, stopping")
			return total, nil
		}
	}
}
