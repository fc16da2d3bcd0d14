package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kerc-health/recordvault/internal/service"
	"github.com/kerc-health/recordvault/internal/uploader"
	"github.com/kerc-health/recordvault/pkg/metrics"
)

type UploadHandler struct {
	pinner      uploader.Pinner
	registrySvc *service.RegistryService
	policy      *service.OwnerPolicy
	opts        uploader.Options
	maxBytes    int64
	metrics     *metrics.Collector
	log         *zap.Logger
}

func NewUploadHandler(pinner uploader.Pinner, registrySvc *service.RegistryService, policy *service.OwnerPolicy, opts uploader.Options, maxBytes int64, m *metrics.Collector, log *zap.Logger) *UploadHandler {
	return &UploadHandler{pinner: pinner, registrySvc: registrySvc, policy: policy, opts: opts, maxBytes: maxBytes, metrics: m, log: log}
}

type uploadResponse struct {
	ContentPointer string `json:"contentPointer"`
	RecordID       string `json:"recordId"`
}

// Pin accepts one multipart file, pins it, and returns the content pointer
// with the record identifier. It does not register the record; registration
// is a separate owner action. Uploading is owner-only: pinning spends the
// service's pinning credentials, so it is gated before any bytes leave.
func (h *UploadHandler) Pin(c *gin.Context) {
	claims := callerClaims(c)
	if err := h.policy.Authorize(claims.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "no file provided")
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "file exceeds upload size limit")
		return
	}

	mrn := c.PostForm("mrn")
	if mrn == "" {
		mrn = uploader.MRNFromFilename(fh.Filename)
	}

	item := uploader.Item{
		Name:      fh.Filename,
		MRN:       mrn,
		MediaType: fh.Header.Get("Content-Type"),
	}
	if item.MediaType != h.opts.MediaType {
		respondServiceError(c, fmt.Errorf("%w: %s", uploader.ErrInvalidFile, item.MediaType))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable file")
		return
	}
	defer f.Close()

	cid, err := h.pinner.Pin(c.Request.Context(), fh.Filename, f)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, uploadResponse{ContentPointer: cid, RecordID: mrn})
}

// Batch runs the full upload pipeline server-side: every selected file is
// validated, pinned in batches, and each batch registered in one call under
// the caller's identity.
func (h *UploadHandler) Batch(c *gin.Context) {
	claims := callerClaims(c)
	if err := h.policy.Authorize(claims.UserID); err != nil {
		respondServiceError(c, err)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		respondServiceError(c, uploader.ErrNoFiles)
		return
	}

	items := make([]uploader.Item, 0, len(files))
	closers := make([]func() error, 0, len(files))
	defer func() {
		for _, cl := range closers {
			_ = cl()
		}
	}()

	for _, fh := range files {
		if h.maxBytes > 0 && fh.Size > h.maxBytes {
			respondError(c, http.StatusRequestEntityTooLarge, "file exceeds upload size limit: "+fh.Filename)
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, http.StatusBadRequest, "unreadable file: "+fh.Filename)
			return
		}
		closers = append(closers, f.Close)

		items = append(items, uploader.Item{
			Name:      fh.Filename,
			MRN:       uploader.MRNFromFilename(fh.Filename),
			MediaType: fh.Header.Get("Content-Type"),
			Content:   f,
		})
	}

	orch := uploader.New(
		h.pinner,
		&serviceRegistrar{svc: h.registrySvc, caller: claims.UserID, ip: c.ClientIP()},
		uploader.AutoApproveWallet{},
		h.opts,
		h.metrics,
		h.log,
	)

	report, err := orch.Run(c.Request.Context(), items, nil)
	if err != nil {
		// Partial completion is reported alongside the failure.
		h.log.Warn("batch upload aborted",
			zap.Int("processed", report.Processed),
			zap.Int("total", report.Total),
			zap.Error(err),
		)
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{
		"total":     report.Total,
		"processed": report.Processed,
		"batches":   report.Batches,
		"cancelled": report.Cancelled,
	})
}

// serviceRegistrar adapts the registry service to the pipeline's batch write
// surface, carrying the caller identity of the originating request.
type serviceRegistrar struct {
	svc    *service.RegistryService
	caller uuid.UUID
	ip     string
}

func (r *serviceRegistrar) RegisterBatch(ctx context.Context, mrns, cids []string) error {
	_, err := r.svc.RegisterBulk(ctx, r.caller, mrns, cids, r.ip)
	return err
}
