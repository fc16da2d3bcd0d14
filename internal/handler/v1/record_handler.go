package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/kerc-health/recordvault/internal/domain/record"
	"github.com/kerc-health/recordvault/internal/service"
)

type RecordHandler struct {
	registrySvc *service.RegistryService
}

func NewRecordHandler(registrySvc *service.RegistryService) *RecordHandler {
	return &RecordHandler{registrySvc: registrySvc}
}

type registerRecordRequest struct {
	MRN        string `json:"mrn" binding:"required"`
	ContentCID string `json:"content_cid" binding:"required"`
}

type recordResponse struct {
	MRN        string `json:"mrn"`
	ContentCID string `json:"content_cid"`
}

func (h *RecordHandler) Register(c *gin.Context) {
	claims := callerClaims(c)
	var req registerRecordRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := h.registrySvc.RegisterRecord(c.Request.Context(), claims.UserID, &record.RegisterCommand{
		MRN:        req.MRN,
		ContentCID: req.ContentCID,
	}, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, recordResponse{MRN: r.MRN, ContentCID: r.ContentCID})
}

type registerBulkRequest struct {
	MRNs        []string `json:"mrns" binding:"required"`
	ContentCIDs []string `json:"content_cids" binding:"required"`
}

func (h *RecordHandler) RegisterBulk(c *gin.Context) {
	claims := callerClaims(c)
	var req registerBulkRequest
	if !bindJSON(c, &req) {
		return
	}

	records, err := h.registrySvc.RegisterBulk(c.Request.Context(), claims.UserID, req.MRNs, req.ContentCIDs, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]recordResponse, len(records))
	for i, r := range records {
		out[i] = recordResponse{MRN: r.MRN, ContentCID: r.ContentCID}
	}
	respondCreated(c, out)
}

// GetCID returns the record's content pointer, or an empty pointer when the
// MRN is unregistered. Absence is a valid result, not a 404.
func (h *RecordHandler) GetCID(c *gin.Context) {
	mrn := c.Param("mrn")

	cid, err := h.registrySvc.GetRecordCID(c.Request.Context(), mrn)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, recordResponse{MRN: mrn, ContentCID: cid})
}
