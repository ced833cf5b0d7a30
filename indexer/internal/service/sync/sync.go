// Package sync copies knowledge base entities for every identifier found in
// the source index into the destination index.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

const progressEvery = 100

// Index is the subset of the search cluster the job talks to.
type Index interface {
	Refresh(ctx context.Context, index string) error
	SearchIDs(ctx context.Context, index, query, field string, size int) ([]string, error)
	SetTotalFieldsLimit(ctx context.Context, index string, limit int) error
	Exists(ctx context.Context, index, id string) (bool, error)
	Update(ctx context.Context, index, id string, doc json.RawMessage) error
	Index(ctx context.Context, index, id string, doc json.RawMessage) error
}

// EntitySource fetches knowledge base documents by identifier.
type EntitySource interface {
	GetEntity(ctx context.Context, qid string) (json.RawMessage, error)
}

// Options selects the indexes and the identifier query.
type Options struct {
	SourceIndex      string
	DestIndex        string
	Query            string
	Field            string
	Size             int
	TotalFieldsLimit int
}

// Report summarises a run.
type Report struct {
	Total    int `json:"total"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`
}

// Service runs the sync job.
type Service struct {
	index    Index
	entities EntitySource
	logger   *slog.Logger
	opts     Options
}

// New constructs a Service.
func New(index Index, entities EntitySource, logger *slog.Logger, opts Options) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{index: index, entities: entities, logger: logger, opts: opts}
}

// Run refreshes the source index, collects identifiers and upserts the entity
// of each one into the destination. Per-item failures are logged and counted;
// only failures that prevent collecting identifiers abort the run. A canceled
// context stops the loop and returns the partial report.
func (s Service) Run(ctx context.Context) (Report, error) {
	var report Report
	if err := s.index.Refresh(ctx, s.opts.SourceIndex); err != nil {
		return report, fmt.Errorf("refresh %s: %w", s.opts.SourceIndex, err)
	}
	ids, err := s.index.SearchIDs(ctx, s.opts.SourceIndex, s.opts.Query, s.opts.Field, s.opts.Size)
	if err != nil {
		return report, fmt.Errorf("search %s: %w", s.opts.SourceIndex, err)
	}
	report.Total = len(ids)
	s.logger.Info("identifiers collected", "index", s.opts.SourceIndex, "count", len(ids))

	if s.opts.TotalFieldsLimit > 0 {
		if err := s.index.SetTotalFieldsLimit(ctx, s.opts.DestIndex, s.opts.TotalFieldsLimit); err != nil {
			s.logger.Warn("total fields limit not applied", "index", s.opts.DestIndex, "error", err)
		}
	}

	for i, qid := range ids {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("sync interrupted", "processed", i, "error", err)
			return report, err
		}
		inserted, err := s.syncOne(ctx, qid)
		switch {
		case err != nil:
			report.Failed++
			s.logger.Error("sync item failed", "qid", qid, "error", err)
		case inserted:
			report.Inserted++
		default:
			report.Updated++
		}
		if processed := i + 1; processed%progressEvery == 0 {
			s.logger.Info("sync progress", "processed", processed, "total", report.Total)
		}
	}
	s.logger.Info("sync finished",
		"total", report.Total,
		"inserted", report.Inserted,
		"updated", report.Updated,
		"failed", report.Failed,
	)
	return report, nil
}

func (s Service) syncOne(ctx context.Context, qid string) (bool, error) {
	entity, err := s.entities.GetEntity(ctx, qid)
	if err != nil {
		return false, fmt.Errorf("fetch entity: %w", err)
	}
	exists, err := s.index.Exists(ctx, s.opts.DestIndex, qid)
	if err != nil {
		return false, fmt.Errorf("check existing document: %w", err)
	}
	if exists {
		if err := s.index.Update(ctx, s.opts.DestIndex, qid, entity); err != nil {
			return false, fmt.Errorf("update document: %w", err)
		}
		return false, nil
	}
	if err := s.index.Index(ctx, s.opts.DestIndex, qid, entity); err != nil {
		return false, fmt.Errorf("index document: %w", err)
	}
	return true, nil
}
