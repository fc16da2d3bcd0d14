package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kerc-health/recordvault/internal/domain/record"
	"github.com/kerc-health/recordvault/pkg/metrics"
)

var (
	ErrNoFiles       = errors.New("no files selected")
	ErrInvalidFile   = errors.New("file has unsupported media type")
	ErrBatchRegister = errors.New("batch registration failed")
)

// Pinner uploads one payload to the content-pinning service.
type Pinner interface {
	Pin(ctx context.Context, name string, content io.Reader) (string, error)
}

// Registrar is the registry write surface the pipeline drives per batch.
type Registrar interface {
	RegisterBatch(ctx context.Context, mrns, cids []string) error
}

// Item is one file selected for upload. The MRN is an explicit field; it is
// never inferred from filename structure inside the pipeline.
type Item struct {
	Name      string
	MRN       string
	MediaType string
	Content   io.Reader
}

// MRNFromFilename derives a candidate MRN from a filename of the form
// "<mrn>.pdf". It is a caller-side convenience only; the result still has to
// pass MRN validation like any explicit value.
func MRNFromFilename(name string) string {
	return strings.SplitN(name, ".", 2)[0]
}

// Progress reports fractional completion after each batch.
type Progress func(processed, total int)

// Report is the terminal state of one upload run. Partial completion is a
// valid terminal state: batches committed before a failure stay committed.
type Report struct {
	Total      int
	Processed  int
	Batches    int
	BatchesRun int
	Cancelled  bool
}

type Options struct {
	// BatchSize caps files per registration call. A client policy, not a
	// registry invariant.
	BatchSize int
	MediaType string
}

// Orchestrator turns a selection of files into registered records: validate
// everything up front, pin each batch concurrently, then register the batch
// in one call. Batches run strictly sequentially.
type Orchestrator struct {
	pinner    Pinner
	registrar Registrar
	wallet    Wallet
	opts      Options
	metrics   *metrics.Collector
	log       *zap.Logger
}

func New(pinner Pinner, registrar Registrar, wallet Wallet, opts Options, m *metrics.Collector, log *zap.Logger) *Orchestrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MediaType == "" {
		opts.MediaType = "application/pdf"
	}
	return &Orchestrator{pinner: pinner, registrar: registrar, wallet: wallet, opts: opts, metrics: m, log: log}
}

// Run executes the full pipeline. The returned Report is meaningful even when
// err is non-nil. A nil error with report.Cancelled set means the user
// declined a wallet prompt; that outcome is deliberately not an error.
func (o *Orchestrator) Run(ctx context.Context, items []Item, progress Progress) (*Report, error) {
	report := &Report{Total: len(items)}

	if len(items) == 0 {
		return report, ErrNoFiles
	}

	// Any invalid file rejects the entire selection before anything uploads.
	for i, it := range items {
		if it.MediaType != o.opts.MediaType {
			return report, fmt.Errorf("%w: %s (%s)", ErrInvalidFile, it.Name, it.MediaType)
		}
		if !record.ValidMRN(it.MRN) {
			return report, fmt.Errorf("%w: item %d (%s)", record.ErrInvalidMRN, i, it.Name)
		}
	}

	if err := o.wallet.Connect(ctx); err != nil {
		if errors.Is(err, ErrUserRejected) {
			report.Cancelled = true
			o.finish("cancelled")
			return report, nil
		}
		return report, fmt.Errorf("connecting wallet: %w", err)
	}

	batches := partition(items, o.opts.BatchSize)
	report.Batches = len(batches)

	for bi, batch := range batches {
		mrns, cids, err := o.pinBatch(ctx, batch)
		if err != nil {
			o.finish("failed")
			return report, err
		}

		err = o.wallet.Approve(ctx, TxSummary{
			BatchIndex:  bi + 1,
			BatchCount:  len(batches),
			RecordCount: len(batch),
		})
		if errors.Is(err, ErrUserRejected) {
			// Pinned content for this batch stays orphaned; acceptable state.
			report.Cancelled = true
			o.finish("cancelled")
			o.log.Info("upload cancelled by user",
				zap.Int("batch", bi+1),
				zap.Int("processed", report.Processed),
			)
			return report, nil
		}
		if err != nil {
			o.finish("failed")
			return report, fmt.Errorf("awaiting wallet approval: %w", err)
		}

		if err := o.registrar.RegisterBatch(ctx, mrns, cids); err != nil {
			// Earlier batches stay committed; there is no compensation.
			o.finish("failed")
			return report, fmt.Errorf("%w: batch %d of %d: %v", ErrBatchRegister, bi+1, len(batches), err)
		}

		report.Processed += len(batch)
		report.BatchesRun++
		if progress != nil {
			progress(report.Processed, report.Total)
		}

		o.log.Info("batch registered",
			zap.Int("batch", bi+1),
			zap.Int("of", len(batches)),
			zap.Int("records", len(batch)),
		)
	}

	o.finish("completed")
	return report, nil
}

// pinBatch uploads every file of one batch concurrently and returns the
// (mrn, cid) pairs in item order. Any pin failure aborts the whole batch
// before registration is attempted.
func (o *Orchestrator) pinBatch(ctx context.Context, batch []Item) ([]string, []string, error) {
	mrns := make([]string, len(batch))
	cids := make([]string, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, it := range batch {
		i, it := i, it
		g.Go(func() error {
			cid, err := o.pinner.Pin(gctx, it.Name, it.Content)
			if err != nil {
				return fmt.Errorf("pinning %s: %w", it.Name, err)
			}
			mrns[i] = it.MRN
			cids[i] = cid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return mrns, cids, nil
}

func (o *Orchestrator) finish(status string) {
	if o.metrics != nil {
		o.metrics.UploadsTotal.WithLabelValues(status).Inc()
	}
}

func partition(items []Item, size int) [][]Item {
	var batches [][]Item
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
