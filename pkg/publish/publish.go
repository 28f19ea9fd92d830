// Package publish mirrors a finished run to object storage: the run report
// plus every image acquired in the run, keyed by its path under the public
// directory. Any gocloud.dev/blob URL works; file:// is always available.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"imgscraper/pkg/catalog"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/metadata"
	"imgscraper/pkg/report"
)

// ReportPrefix is where run reports are stored in the bucket
const ReportPrefix = "reports/"

// Result counts what a publish pass did
type Result struct {
	Uploaded  int
	Unchanged int
	Bytes     int64
}

// Publisher writes to one bucket
type Publisher struct {
	bucket *blob.Bucket
	root   string
	logger logger.Logger
}

// Open opens bucketURL. root is the local public directory image keys are relative to.
func Open(ctx context.Context, bucketURL, root string, log logger.Logger) (*Publisher, error) {
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucketURL, err)
	}
	return New(bkt, root, log), nil
}

// New wraps an already opened bucket
func New(bucket *blob.Bucket, root string, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Publisher{
		bucket: bucket,
		root:   root,
		logger: log.WithField("component", "publish"),
	}
}

// Close releases the bucket
func (p *Publisher) Close() error {
	return p.bucket.Close()
}

// Key maps a local image path to its object key
func (p *Publisher) Key(localPath string) string {
	if p.root != "" {
		if rel, err := filepath.Rel(p.root, localPath); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return path.Join("images", filepath.Base(localPath))
}

// PublishReport stores the report as reports/<run id>.json and reports/latest.json
func (p *Publisher) PublishReport(ctx context.Context, rep *report.RunReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	opts := &blob.WriterOptions{ContentType: "application/json"}
	for _, key := range []string{ReportPrefix + rep.RunID + ".json", ReportPrefix + "latest.json"} {
		if err := p.bucket.WriteAll(ctx, key, data, opts); err != nil {
			return fmt.Errorf("failed to write %s: %w", key, err)
		}
	}
	p.logger.InfoWithFields("Report published", map[string]interface{}{"run_id": rep.RunID})
	return nil
}

// PublishImages uploads the image of every entity the report marks as
// acquired, with its provenance sidecar when there is one. Objects that
// already hold a file of the same size are left alone.
// A failing upload does not stop the others; all failures are returned joined.
func (p *Publisher) PublishImages(ctx context.Context, rep *report.RunReport, entities []catalog.Entity) (Result, error) {
	byID := make(map[string]catalog.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	var res Result
	var errs []error
	for _, entry := range rep.ByStatus(report.StatusSuccess) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		e, ok := byID[entry.EntityID]
		if !ok || e.DestinationPath == "" {
			continue
		}
		n, uploaded, err := p.upload(ctx, e.DestinationPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.ID, err))
			continue
		}
		if uploaded {
			res.Uploaded++
			res.Bytes += n
		} else {
			res.Unchanged++
		}
		if metadata.Exists(e.DestinationPath) {
			if _, _, err := p.upload(ctx, metadata.Path(e.DestinationPath)); err != nil {
				errs = append(errs, fmt.Errorf("%s sidecar: %w", e.ID, err))
			}
		}
	}

	p.logger.InfoWithFields("Images published", map[string]interface{}{
		"uploaded":  res.Uploaded,
		"unchanged": res.Unchanged,
		"errors":    len(errs),
	})
	return res, errors.Join(errs...)
}

func (p *Publisher) upload(ctx context.Context, localPath string) (int64, bool, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, false, err
	}

	key := p.Key(localPath)
	attrs, err := p.bucket.Attributes(ctx, key)
	switch {
	case err == nil && attrs.Size == info.Size():
		return 0, false, nil
	case err != nil && gcerrors.Code(err) != gcerrors.NotFound:
		return 0, false, fmt.Errorf("failed to stat %s: %w", key, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// cancelling the writer's context before Close discards the partial object
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w, err := p.bucket.NewWriter(wctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return 0, false, fmt.Errorf("failed to open writer for %s: %w", key, err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		cancel()
		w.Close()
		return 0, false, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return 0, false, fmt.Errorf("failed to finish %s: %w", key, err)
	}
	return n, true, nil
}
