// Package renderer implements the Renderer worker (spec.md §4.6): for
// each completed volume, it reads the canonical container back, derives
// optional fields, and rasterizes one PNG per elevation/field/QC-variant
// pair, tracking each (volume, product_type) independently via the state
// store's product rows.
package renderer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jgmarti84/radarlib/internal/domain"
	"github.com/jgmarti84/radarlib/internal/logging"
	"github.com/jgmarti84/radarlib/internal/metrics"
	"github.com/jgmarti84/radarlib/internal/queue"
	"github.com/jgmarti84/radarlib/internal/radar"
	"github.com/jgmarti84/radarlib/internal/store"
)

// ContainerReader is the capability the Renderer needs from
// internal/container: read back a previously-written canonical volume.
type ContainerReader interface {
	Read(path string) (*radar.Volume, error)
}

// qcThreshold is the minimum cross-correlation-ratio value a gate must
// meet to be kept in a field's filtered variant.
const qcThreshold = 0.7

// Config tunes the Renderer's output layout and field selection.
type Config struct {
	ProductRoot  string
	ProductType  domain.ProductType
	Fields       []string // canonical field names to render; empty means "every field present"
	AddColmax    bool
	PollInterval time.Duration
}

// Renderer is the worker loop claiming rendering candidates and producing
// PNG products for one product_type.
type Renderer struct {
	store    store.StateStore
	reader   ContainerReader
	notifier queue.Notifier
	cfg      Config
}

// New constructs a Renderer for a single configured product type. The
// Supervisor starts one Renderer per entry in config.Renderer.ProductTypes.
func New(st store.StateStore, reader ContainerReader, notifier queue.Notifier, cfg Config) *Renderer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.ProductType == "" {
		cfg.ProductType = domain.ProductImage
	}
	if notifier == nil {
		notifier = queue.NewNoopNotifier()
	}
	return &Renderer{store: st, reader: reader, notifier: notifier, cfg: cfg}
}

// Run drives sweeps until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	wake := r.notifier.Subscribe(ctx, queue.QueueProduct)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := r.sweep(ctx); err != nil {
			logging.Op().Error("renderer sweep failed", "product_type", r.cfg.ProductType, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// SweepOnce claims and renders every currently renderable volume once,
// without the Run loop's poll_interval sleep — the one-shot CLI's entry
// point for a backfill invocation.
func (r *Renderer) SweepOnce(ctx context.Context) error {
	return r.sweep(ctx)
}

func (r *Renderer) sweep(ctx context.Context) error {
	volumes, err := r.store.ListVolumesForRendering(ctx, r.cfg.ProductType)
	if err != nil {
		return fmt.Errorf("renderer: list_volumes_for_rendering: %w", err)
	}

	for _, vol := range volumes {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.processOne(ctx, vol)
	}
	return nil
}

// processOne claims and renders a single volume's product. Per spec.md
// §4.6 "losers skip to the next volume" — ok=false is not an error.
func (r *Renderer) processOne(ctx context.Context, vol domain.Volume) {
	started := time.Now()

	ok, err := r.store.ClaimProduct(ctx, vol.ID, r.cfg.ProductType)
	if err != nil {
		logging.Op().Error("renderer claim failed", "volume", vol.ID.String(), "error", err)
		return
	}
	if !ok {
		return
	}

	stageErr := r.render(ctx, vol)
	status := domain.ProductCompleted
	if stageErr != nil {
		status = domain.ProductFailed
	}
	if err := r.store.MarkProductStatus(ctx, vol.ID, r.cfg.ProductType, status, stageErr); err != nil {
		logging.Op().Error("renderer mark_product_status failed", "volume", vol.ID.String(), "error", err)
	}

	metrics.Global().ObserveProduct(string(r.cfg.ProductType), string(status), time.Since(started).Seconds())
	entry := &logging.ItemLog{
		Stage: "render", Radar: vol.ID.Radar, Item: vol.ID.String(),
		DurationMs: time.Since(started).Milliseconds(), Success: stageErr == nil,
	}
	if stageErr != nil {
		entry.ErrorClass, entry.Error = stageErr.Class, stageErr.Message
	}
	logging.Default().Log(entry)
}

// render performs the read-standardize-plot sequence for one volume,
// tolerating fields absent from the container (spec.md §4.6
// "Incompleteness tolerance").
func (r *Renderer) render(ctx context.Context, vol domain.Volume) *domain.StageError {
	if _, err := os.Stat(vol.OutputPath); err != nil {
		return domain.NewStageError(domain.ErrClassFileNotFound, fmt.Sprintf("container missing at %s", vol.OutputPath))
	}

	rv, err := r.reader.Read(vol.OutputPath)
	if err != nil {
		return domain.NewStageError(domain.ErrClassReadError, err.Error())
	}

	r.standardize(rv)

	if r.cfg.AddColmax {
		if f, ok := computeColmax(rv); ok {
			rv.Fields = append(rv.Fields, f)
		}
	}

	fields := r.cfg.Fields
	if len(fields) == 0 {
		fields = rv.FieldNames()
	}

	outDir := filepath.Join(r.cfg.ProductRoot, vol.ID.Radar,
		vol.ID.Observation.UTC().Format("2006"), vol.ID.Observation.UTC().Format("01"), vol.ID.Observation.UTC().Format("02"))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return domain.NewStageError(domain.ErrClassPlot, err.Error())
	}

	for _, name := range fields {
		field, ok := rv.FieldByName(name)
		if !ok {
			continue // optional field absent from this volume; skip, don't fail (§4.6)
		}

		qcName, hasQC := qcFieldFor[name]
		var qcField *radar.Field
		if hasQC {
			if f, ok := rv.FieldByName(qcName); ok {
				qcField = &f
			}
		}

		n := sweepCount(rv, field)
		for sweep := 0; sweep < n; sweep++ {
			plainPath := productPath(outDir, vol.ID, name, sweep, false)
			if err := plotElevation(plainPath, rv, field, sweep, nil, qcThreshold); err != nil {
				return domain.NewStageError(domain.ErrClassPlot, err.Error())
			}
			if qcField != nil {
				filteredPath := productPath(outDir, vol.ID, name, sweep, true)
				if err := plotElevation(filteredPath, rv, field, sweep, qcField, qcThreshold); err != nil {
					return domain.NewStageError(domain.ErrClassPlot, err.Error())
				}
			}
		}
	}

	return nil
}

// standardize renames the container's field names in place to the
// canonical set (spec.md §4.6 step 4).
func (r *Renderer) standardize(vol *radar.Volume) {
	for i, f := range vol.Fields {
		vol.Fields[i].Name = standardizeName(f.Name)
	}
}

// productPath builds <out>/<radar>_<instant>_<field>_<elev>.png, with a
// "_qc" suffix for the quality-controlled variant (spec.md §4.6 step 6).
func productPath(outDir string, id domain.VolumeID, field string, sweep int, filtered bool) string {
	suffix := ""
	if filtered {
		suffix = "_qc"
	}
	name := fmt.Sprintf("%s_%s_%s_e%02d%s.png",
		id.Radar, id.Observation.UTC().Format("20060102T150405Z"), field, sweep, suffix)
	return filepath.Join(outDir, name)
}
