// Package app builds the process-wide application context: the loaded
// predictor, the dataset summary and the prediction history.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veil-waf/phishdash/internal/config"
	"github.com/veil-waf/phishdash/internal/dataset"
	"github.com/veil-waf/phishdash/internal/db"
	"github.com/veil-waf/phishdash/internal/model"
	"github.com/veil-waf/phishdash/internal/predict"
	"github.com/veil-waf/phishdash/internal/server"
	"github.com/veil-waf/phishdash/internal/sse"
)

// App is constructed once at startup and shared read-only by every handler.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Service *predict.Service
	Hub     *sse.Hub
	History db.History

	Dataset    *dataset.Dataset
	Summary    *dataset.Summary
	DatasetErr error

	database *db.DB
}

// New loads the model and the dataset concurrently and opens the history
// store. Model and dataset failures are recorded on the App; only a bad label
// mapping or an unreachable database is fatal.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Hub: sse.NewHub(logger)}

	var (
		predictor model.Predictor
		loadErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		predictor, loadErr = model.Open(gctx, cfg.ModelOptions(), logger)
		if loadErr != nil {
			logger.Error("model unavailable, predictions will be inconclusive", "err", loadErr)
		}
		return nil
	})
	g.Go(func() error {
		a.loadDataset()
		return nil
	})
	if cfg.DatabaseURL != "" {
		g.Go(func() error {
			database, err := db.Connect(gctx, cfg.DatabaseURL, logger)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			a.database = database
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.Close()
		return nil, err
	}

	mapping, err := predict.ResolveMapping(cfg.LabelScheme, predictor, cfg.BenignLabel, cfg.MaliciousLabel)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("label mapping: %w", err)
	}
	logger.Info("label mapping resolved",
		"scheme", mapping.Scheme.String(),
		"benign", mapping.Benign.String(),
		"malicious", mapping.Malicious.String(),
	)
	a.Service = predict.NewService(predictor, mapping, loadErr, logger)

	if a.database != nil {
		a.History = a.database
	} else {
		a.History = db.NewMemory(cfg.HistorySize, a.publish)
	}
	return a, nil
}

func (a *App) loadDataset() {
	d, err := dataset.Load(a.Config.DatasetPath)
	if err != nil {
		a.DatasetErr = err
		a.Logger.Warn("dataset unavailable, charts disabled", "path", a.Config.DatasetPath, "err", err)
		return
	}
	a.Dataset = d
	a.Summary = d.Summarize(dataset.Options{TopN: a.Config.TopN, Keywords: a.Config.Keywords})
	a.Logger.Info("dataset loaded",
		"path", d.Source,
		"rows", len(d.Rows),
		"good", a.Summary.Labels.Good,
		"bad", a.Summary.Labels.Bad,
	)
}

// publish pushes an in-memory history entry to SSE subscribers. The database
// store publishes through its insert trigger instead.
func (a *App) publish(e db.Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		a.Logger.Warn("marshal prediction event", "err", err)
		return
	}
	a.Hub.Publish(sse.TopicPredictions, sse.Event{Type: "prediction", Data: data})
}

// Predict evaluates text and records the result in history. Recording
// failures are logged; they never change the verdict.
func (a *App) Predict(ctx context.Context, text, source string) *predict.Result {
	res := a.Service.Evaluate(ctx, text)
	if err := a.History.Record(ctx, db.NewEntry(res, source)); err != nil {
		a.Logger.Warn("record prediction", "err", err)
	}
	return res
}

// Background starts the supervised goroutines. They stop with ctx.
func (a *App) Background(ctx context.Context) {
	if a.database != nil {
		listener := sse.NewPGListener(a.database.Pool, a.Hub, a.Logger)
		go server.RunWithRecovery(ctx, a.Logger, "pg-listener", listener.Listen)
	}
	if ret := a.Config.HistoryRetention; ret > 0 {
		go server.RunWithRecovery(ctx, a.Logger, "history-pruner", server.Every(pruneInterval(ret), func(ctx context.Context) {
			a.prune(ctx, time.Now().Add(-ret))
		}))
	}
}

func (a *App) prune(ctx context.Context, before time.Time) {
	n, err := a.History.Prune(ctx, before)
	if err != nil {
		a.Logger.Error("prune history", "err", err)
		return
	}
	if n > 0 {
		a.Logger.Info("history pruned", "removed", n, "before", before)
	}
}

func pruneInterval(retention time.Duration) time.Duration {
	return min(max(retention/10, time.Minute), time.Hour)
}

// Ping reports whether the history store is reachable.
func (a *App) Ping(ctx context.Context) error {
	if a.database == nil {
		return nil
	}
	return a.database.PingContext(ctx)
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.database != nil {
		a.database.Close()
	}
}
