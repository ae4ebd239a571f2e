package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Acta/internal/calc/derive"
	"Acta/internal/calc/measure"
	"Acta/internal/calc/protocol"
	"Acta/internal/calc/table"
	"Acta/internal/metrics"
	"Acta/internal/render/pdf"
	"Acta/internal/render/xlsx"
	"Acta/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrReportNotFound = errors.New("report not found")

// Source is an uploaded measurement export. A name ending in .xlsx selects
// the workbook reader, anything else is read as comma-delimited text.
type Source struct {
	Name string
	Body io.Reader
}

// ReportLog records generated reports and looks them up for download.
type ReportLog interface {
	LogReport(ctx context.Context, e repo.ReportEntry) error
	GetReport(ctx context.Context, id string) (repo.ReportEntry, error)
}

type output struct {
	dir    string
	ext    string
	render func(*table.Table, io.Writer) error
}

var outputs = map[Format]output{
	PDF:   {dir: "pdf_receipts", ext: ".pdf", render: pdf.Write},
	Excel: {dir: "excel_receipts", ext: ".xlsx", render: xlsx.Write},
}

// Generator runs the certificate pipeline and writes the artifacts under
// Dir. Metrics and Store may be nil.
type Generator struct {
	Dir     string
	Table   table.Options
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Store   ReportLog
	Now     func() time.Time
}

type Result struct {
	ID        string            `json:"id"`
	Protocol  protocol.ID       `json:"protocol"`
	SetID     string            `json:"set_id"`
	SampleAge int               `json:"sample_age"`
	Files     map[Format]string `json:"files"`
	Print     bool              `json:"print"`
	Table     *table.Table      `json:"table"`
}

// stageError tags a failure with the pipeline stage that produced it.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

func stage(name string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: name, err: err}
}

// Generate validates req, turns src into a table and writes every requested
// format. On failure nothing is left on disk.
func (g *Generator) Generate(ctx context.Context, req Request, src Source) (*Result, error) {
	start := g.now()
	req.Normalize(start)
	log := g.logger().With(zap.String("protocol", string(req.Protocol)), zap.String("set_id", req.SetID))

	res, err := g.generate(ctx, req, src, log)
	if err != nil {
		name := "render"
		var se *stageError
		if errors.As(err, &se) {
			name = se.stage
		}
		g.Metrics.Failed(string(req.Protocol), name)
		log.Warn("report failed", zap.String("stage", name), zap.Error(err))
		return nil, err
	}
	g.Metrics.Succeeded(string(req.Protocol), g.now().Sub(start))

	if g.Store != nil {
		entry := repo.ReportEntry{
			ID:            res.ID,
			Protocol:      string(res.Protocol),
			SetID:         req.SetID,
			Client:        req.Client,
			ConcreteClass: req.ConcreteClass,
			SampleAge:     res.SampleAge,
			Operator:      req.Operator,
			CreatedAt:     start,
		}
		for _, f := range req.OutputFormat {
			entry.Files = append(entry.Files, res.Files[f])
		}
		if err := g.Store.LogReport(ctx, entry); err != nil {
			log.Error("report log", zap.String("id", res.ID), zap.Error(err))
		}
	}
	log.Info("report written", zap.String("id", res.ID), zap.Int("files", len(res.Files)), zap.Bool("print", res.Print))
	return res, nil
}

func (g *Generator) generate(ctx context.Context, req Request, src Source, log *zap.Logger) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, stage("validate", err)
	}
	for _, f := range req.OutputFormat {
		if _, ok := outputs[f]; !ok {
			return nil, stage("validate", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f))
		}
	}
	age, _ := req.SampleAge()

	spec, err := protocol.Resolve(req.Protocol)
	if err != nil {
		return nil, stage("resolve", err)
	}
	if req.SetSize != spec.SpecimenCount {
		log.Warn("set size differs from the protocol", zap.Int("set_size", req.SetSize), zap.Int("specimens", spec.SpecimenCount))
	}

	tbl, meta, err := g.tabulate(spec, src)
	if err != nil {
		return nil, err
	}
	if meta.SetID != req.SetID {
		log.Warn("source set id differs from the request", zap.String("source_set_id", meta.SetID))
	}
	if err := ctx.Err(); err != nil {
		return nil, stage("render", err)
	}

	id := uuid.NewString()
	files, err := g.render(ctx, tbl, id, req.OutputFormat, log)
	if err != nil {
		return nil, stage("render", err)
	}
	return &Result{
		ID:        id,
		Protocol:  spec.ID,
		SetID:     req.SetID,
		SampleAge: age,
		Files:     files,
		Print:     req.ShouldPrint,
		Table:     tbl,
	}, nil
}

// Preview builds the table for src without writing anything.
func (g *Generator) Preview(id protocol.ID, src Source) (*table.Table, error) {
	spec, err := protocol.Resolve(id)
	if err != nil {
		return nil, err
	}
	tbl, _, err := g.tabulate(spec, src)
	return tbl, err
}

func (g *Generator) tabulate(spec protocol.Spec, src Source) (*table.Table, measure.Metadata, error) {
	read := measure.Parse
	if strings.EqualFold(filepath.Ext(src.Name), ".xlsx") {
		read = measure.ReadWorkbook
	}
	meta, readings, err := read(spec, src.Body)
	if err != nil {
		return nil, meta, stage("parse", err)
	}
	values, err := derive.Derive(spec, readings)
	if err != nil {
		return nil, meta, stage("derive", err)
	}
	tbl, err := g.Table.Build(spec, meta, values)
	if err != nil {
		return nil, meta, stage("build", err)
	}
	return tbl, meta, nil
}

// render writes each format to a temporary file next to its destination
// and renames them into place once all of them succeeded.
func (g *Generator) render(ctx context.Context, tbl *table.Table, id string, formats []Format, log *zap.Logger) (map[Format]string, error) {
	temps := make([]string, len(formats))
	cleanup := func() {
		for _, name := range temps {
			if name != "" {
				os.Remove(name)
			}
		}
	}

	grp, ctx := errgroup.WithContext(ctx)
	for i, f := range formats {
		out := outputs[f]
		grp.Go(func() error {
			dir := filepath.Join(g.Dir, out.dir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
			tmp, err := os.CreateTemp(dir, ".acta-*"+out.ext)
			if err != nil {
				return fmt.Errorf("create %s file: %w", f, err)
			}
			temps[i] = tmp.Name()
			if err := ctx.Err(); err != nil {
				tmp.Close()
				return err
			}
			if err := out.render(tbl, tmp); err != nil {
				tmp.Close()
				return fmt.Errorf("render %s: %w", f, err)
			}
			return tmp.Close()
		})
	}
	if err := grp.Wait(); err != nil {
		cleanup()
		return nil, err
	}

	files := make(map[Format]string, len(formats))
	for i, f := range formats {
		out := outputs[f]
		path := filepath.Join(g.Dir, out.dir, fileName(tbl.Protocol, id, out.ext))
		if err := os.Rename(temps[i], path); err != nil {
			for _, done := range files {
				os.Remove(done)
			}
			cleanup()
			return nil, fmt.Errorf("store %s: %w", f, err)
		}
		temps[i] = ""
		files[f] = path
		log.Debug("artifact stored", zap.String("format", string(f)), zap.String("path", path))
	}
	return files, nil
}

// Path finds the artifact written for report id in the given format. With a
// Store the report log is authoritative and a report logged by another
// operator is reported as not found; without one the output directory is
// searched.
func (g *Generator) Path(ctx context.Context, id string, f Format, operator int) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	out, ok := outputs[f]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
	if g.Store == nil {
		matches, err := filepath.Glob(filepath.Join(g.Dir, out.dir, "*_"+id+out.ext))
		if err != nil || len(matches) == 0 {
			return "", fmt.Errorf("%w: %s %s", ErrReportNotFound, id, f)
		}
		return matches[0], nil
	}

	entry, err := g.Store.GetReport(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("look up report %s: %w", id, err)
	}
	if entry.Operator != 0 && entry.Operator != operator {
		return "", fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	for _, path := range entry.Files {
		if filepath.Ext(path) == out.ext {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s %s", ErrReportNotFound, id, f)
}

func fileName(p protocol.ID, id, ext string) string {
	return string(p) + "_" + id + ext
}

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Generator) logger() *zap.Logger {
	if g.Log != nil {
		return g.Log
	}
	return zap.NewNop()
}
