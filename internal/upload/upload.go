// Package upload implements the label submission flow: validate the form,
// push every PDF to the blob store one after another, then write a single
// record describing the batch.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/blobstore"
	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

var errBusy = errors.New("a submission is already running")

// PDFContentType is the only content type accepted for labels.
const PDFContentType = "application/pdf"

// BlobStore is the subset of blobstore.Store used here.
type BlobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string, onProgress blobstore.ProgressFunc) (blobstore.Ref, error)
	ResolveDownloadURL(ctx context.Context, ref blobstore.Ref) (string, error)
}

// RecordCreator persists a finished batch.
type RecordCreator interface {
	Create(ctx context.Context, rec *model.UploadRecord) error
}

// Enqueuer schedules background inspection of a stored record.
type Enqueuer interface {
	EnqueueInspection(ctx context.Context, recordID string) error
}

// File is one attached PDF as received from the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Form holds the submitted fields.
type Form struct {
	Product     string
	DisplayName string
	Quantity    int
	Files       []File
}

// Validate checks the form without touching the network. One non-PDF file
// rejects the whole batch.
func (f Form) Validate() error {
	if strings.TrimSpace(f.Product) == "" || len(f.Files) == 0 {
		return model.WrapError(model.ErrValidation, "validate form", errors.New("product and at least one file are required"))
	}
	if f.Quantity < 1 {
		return model.WrapError(model.ErrBadQuantity, "validate form", fmt.Errorf("quantity %d", f.Quantity))
	}
	for _, file := range f.Files {
		if !isPDF(file.ContentType) {
			return model.WrapError(model.ErrNotPDF, "validate form", fmt.Errorf("%s has type %q", file.Name, file.ContentType))
		}
	}
	return nil
}

// Progress describes the transfer of the file currently being uploaded.
// Percent restarts at 0 for every file.
type Progress struct {
	FileIndex int    `json:"fileIndex"`
	FileCount int    `json:"fileCount"`
	FileName  string `json:"fileName"`
	Percent   int    `json:"percent"`
}

// ProgressFunc receives progress updates on the submitting goroutine's behalf.
type ProgressFunc func(Progress)

// Workflow runs submissions.
type Workflow struct {
	blobs    BlobStore
	records  RecordCreator
	enqueuer Enqueuer
	prefix   string
	logger   *zap.Logger
	now      func() time.Time
}

// New constructs a Workflow writing objects under prefix.
func New(blobs BlobStore, records RecordCreator, prefix string, logger *zap.Logger) *Workflow {
	return &Workflow{
		blobs:   blobs,
		records: records,
		prefix:  strings.Trim(prefix, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// WithEnqueuer enables label inspection after each successful submission.
func (w *Workflow) WithEnqueuer(e Enqueuer) *Workflow {
	w.enqueuer = e
	return w
}

// Submit validates form, uploads its files sequentially and writes one
// record. No record is written unless every file was stored. Objects already
// stored when a later step fails are left in place and logged.
func (w *Workflow) Submit(ctx context.Context, form Form, onProgress ProgressFunc) (*model.UploadRecord, error) {
	if err := form.Validate(); err != nil {
		metrics.UploadsTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	refs := make([]model.FileRef, 0, len(form.Files))
	for i, file := range form.Files {
		ref, err := w.uploadOne(ctx, i, len(form.Files), file, onProgress)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("transfer").Inc()
			w.logOrphans("upload aborted", refs, err)
			return nil, model.WrapError(model.ErrTransfer, "upload "+file.Name, err)
		}
		refs = append(refs, ref)
	}

	rec := model.NewUploadRecord(strings.TrimSpace(form.Product), strings.TrimSpace(form.DisplayName), form.Quantity, refs)
	if err := w.records.Create(ctx, rec); err != nil {
		metrics.UploadsTotal.WithLabelValues("persistence").Inc()
		w.logOrphans("record write failed", refs, err)
		if model.IsKind(err, model.ErrPersistence) {
			return nil, err
		}
		return nil, model.WrapError(model.ErrPersistence, "create record", err)
	}
	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	w.logger.Info("upload stored",
		zap.String("id", rec.ID),
		zap.String("producto", rec.Product),
		zap.Int("archivos", len(rec.Files)))

	if w.enqueuer != nil {
		if err := w.enqueuer.EnqueueInspection(ctx, rec.ID); err != nil {
			w.logger.Warn("enqueue inspection failed", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	return rec, nil
}

func (w *Workflow) uploadOne(ctx context.Context, index, count int, file File, onProgress ProgressFunc) (model.FileRef, error) {
	name := baseName(file.Name)
	key := ObjectKey(w.prefix, w.now(), name)
	report := func(transferred, total int64) {
		if onProgress != nil {
			onProgress(Progress{FileIndex: index, FileCount: count, FileName: name, Percent: Percent(transferred, total)})
		}
	}
	report(0, file.Size)
	ref, err := w.blobs.Upload(ctx, key, file.Reader, file.Size, PDFContentType, report)
	if err != nil {
		return model.FileRef{}, err
	}
	report(file.Size, file.Size)
	url, err := w.blobs.ResolveDownloadURL(ctx, ref)
	if err != nil {
		return model.FileRef{}, err
	}
	size := ref.Size
	if size <= 0 {
		size = file.Size
	}
	metrics.UploadedBytes.Add(float64(size))
	return model.FileRef{Name: name, URL: url, Path: ref.Key, Bytes: size}, nil
}

func (w *Workflow) logOrphans(msg string, refs []model.FileRef, err error) {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, ref.Path)
	}
	w.logger.Error(msg, zap.Strings("orphaned_keys", keys), zap.Error(err))
}

// ObjectKey builds "<prefix>/<unix nanos>_<name>".
func ObjectKey(prefix string, at time.Time, name string) string {
	return fmt.Sprintf("%s/%d_%s", prefix, at.UnixNano(), name)
}

// Percent converts a byte count into a whole percentage in [0,100]. An empty
// file counts as complete.
func Percent(transferred, total int64) int {
	if total <= 0 {
		return 100
	}
	p := int(math.Round(float64(transferred) / float64(total) * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "etiqueta.pdf"
	}
	return name
}

func isPDF(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == PDFContentType
}
