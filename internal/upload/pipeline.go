// Package upload attaches files to the post composer. Files are prepared in
// parallel (downloads, existence checks) and then handed to the page one at
// a time.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/postbot/internal/elements"
	"github.com/ibeckermayer/postbot/internal/status"
	"github.com/ibeckermayer/postbot/internal/telemetry"
	"github.com/ibeckermayer/postbot/internal/types"
	"github.com/ibeckermayer/postbot/internal/wait"
)

// DefaultWorkers bounds concurrent preparation.
const DefaultWorkers = 3

// Report summarizes one pipeline run.
type Report struct {
	Uploaded []types.Attachment
	Dropped  []types.Attachment
	// Requeued counts renamed copies put back on the queue.
	Requeued int
}

// Options tune a Pipeline.
type Options struct {
	Workers int
	// Max truncates the attachment list; 0 means no limit.
	Max int
	// Settle is how long to wait after handing a file to the page before
	// looking for an error dialog.
	Settle time.Duration
	// Retry caps rename-and-requeue: an attachment is requeued only while
	// its generation is below Retry.Iterations.
	Retry wait.Budget
	// WorkDir receives renamed copies. Defaults to the file's directory.
	WorkDir string
	Status  *status.Printer
}

// Pipeline uploads attachments through the composer's file input.
type Pipeline struct {
	res      *elements.Resolver
	preparer Preparer
	opts     Options
}

// NewPipeline creates a pipeline resolving elements with res.
func NewPipeline(res *elements.Resolver, preparer Preparer, opts Options) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.Status == nil {
		opts.Status = status.Discard()
	}
	return &Pipeline{res: res, preparer: preparer, opts: opts}
}

// Run prepares and uploads atts. Attachments that fail are dropped and
// listed in the report; the error is reserved for problems that stop every
// upload, such as a missing file input.
func (p *Pipeline) Run(ctx context.Context, atts []types.Attachment) (Report, error) {
	if len(atts) == 0 {
		return Report{}, nil
	}
	if p.opts.Max > 0 && len(atts) > p.opts.Max {
		slog.WarnContext(ctx, "too many attachments, truncating", "given", len(atts), "max", p.opts.Max)
		p.opts.Status.Warn("only the first %d of %d attachments will be uploaded", p.opts.Max, len(atts))
		atts = atts[:p.opts.Max]
	}

	ctx, span := telemetry.Start(ctx, "upload.run", attribute.Int("attachments", len(atts)))
	defer span.End()

	ready, dropped := p.prepare(ctx, atts)
	report, err := p.upload(ctx, ready)
	report.Dropped = append(dropped, report.Dropped...)

	span.SetAttributes(
		attribute.Int("uploaded", len(report.Uploaded)),
		attribute.Int("dropped", len(report.Dropped)),
		attribute.Int("requeued", report.Requeued),
	)
	if err != nil {
		span.RecordError(err)
	}
	return report, err
}

// prepare materializes every attachment with at most Workers in flight.
// Ready attachments are returned in the order they finished.
func (p *Pipeline) prepare(ctx context.Context, atts []types.Attachment) (ready, dropped []types.Attachment) {
	p.opts.Status.Stage("preparing %d attachments", len(atts))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)

	for _, a := range atts {
		g.Go(func() error {
			prepared, err := p.preparer.Prepare(ctx, a)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.WarnContext(ctx, "dropping attachment", "source", a.Source, "err", err)
				p.opts.Status.Warn("dropped %s: %v", a.Title, err)
				dropped = append(dropped, a)
				return nil
			}
			ready = append(ready, prepared)
			return nil
		})
	}
	_ = g.Wait()

	return ready, dropped
}

func (p *Pipeline) upload(ctx context.Context, ready []types.Attachment) (Report, error) {
	var report Report
	if len(ready) == 0 {
		return report, nil
	}
	p.opts.Status.Stage("uploading %d attachments", len(ready))

	queue := append([]types.Attachment(nil), ready...)
	for i := 0; i < len(queue); i++ {
		a := queue[i]
		if err := ctx.Err(); err != nil {
			return report, err
		}

		input, err := p.res.FindOne(ctx, "upload_input")
		if err != nil {
			return report, fmt.Errorf("no file input: %w", err)
		}
		if err := input.SetFiles(ctx, a.LocalPath); err != nil {
			slog.WarnContext(ctx, "failed to attach file", "path", a.LocalPath, "err", err)
			report.Dropped = append(report.Dropped, a)
			continue
		}
		if err := wait.Sleep(ctx, p.opts.Settle); err != nil {
			return report, err
		}

		rejected, badName := p.dismissError(ctx)
		switch {
		case !rejected:
			slog.InfoContext(ctx, "attached file", "path", a.LocalPath, "generation", a.Generation)
			report.Uploaded = append(report.Uploaded, a)
		case badName && a.Generation < p.opts.Retry.Iterations:
			next, err := p.renamed(a)
			if err != nil {
				slog.WarnContext(ctx, "failed to rename rejected file", "path", a.LocalPath, "err", err)
				report.Dropped = append(report.Dropped, a)
				continue
			}
			slog.InfoContext(ctx, "file name rejected, retrying under a new name", "from", a.LocalPath, "to", next.LocalPath)
			queue = append(queue, next)
			report.Requeued++
		default:
			slog.WarnContext(ctx, "file rejected", "path", a.LocalPath, "generation", a.Generation)
			p.opts.Status.Warn("rejected %s", filepath.Base(a.LocalPath))
			report.Dropped = append(report.Dropped, a)
		}
	}

	// a dialog can surface after the last file settled
	if rejected, _ := p.dismissError(ctx); rejected {
		slog.WarnContext(ctx, "late upload error dismissed")
	}

	p.opts.Status.OK("uploaded %d of %d attachments", len(report.Uploaded), len(ready))
	return report, nil
}

// dismissError closes an upload error dialog if one is showing and reports
// whether it was about the file name.
func (p *Pipeline) dismissError(ctx context.Context) (rejected, badName bool) {
	if !p.res.Present(ctx, "upload_error_dialog") {
		return false, false
	}
	badName = p.res.Present(ctx, "upload_error_filename")

	closeBtn, err := p.res.FindClickable(ctx, "upload_error_close")
	if err != nil {
		slog.WarnContext(ctx, "upload error dialog has no close button", "err", err)
		return true, badName
	}
	if err := closeBtn.Click(ctx); err != nil {
		slog.WarnContext(ctx, "failed to close upload error dialog", "err", err)
	}
	return true, badName
}

// renamed copies a's file to a sanitized name with a _<generation> suffix
// and returns the next-generation attachment for it. The original file is
// left alone.
func (p *Pipeline) renamed(a types.Attachment) (types.Attachment, error) {
	gen := a.Generation + 1
	dir := p.opts.WorkDir
	if dir == "" {
		dir = filepath.Dir(a.LocalPath)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return a, err
	}

	base := filepath.Base(a.LocalPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if a.Generation > 0 {
		stem = strings.TrimSuffix(stem, "_"+strconv.Itoa(a.Generation))
	}
	dest := filepath.Join(dir, SafeName(stem)+"_"+strconv.Itoa(gen)+unsafeChars.ReplaceAllString(ext, ""))

	if err := copyFile(a.LocalPath, dest); err != nil {
		return a, err
	}
	return a.Requeued(dest), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
