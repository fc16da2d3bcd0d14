package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kerc-health/recordvault/internal/service"
)

type AccessHandler struct {
	accessSvc *service.AccessService
}

func NewAccessHandler(accessSvc *service.AccessService) *AccessHandler {
	return &AccessHandler{accessSvc: accessSvc}
}

type associateRequest struct {
	PatientID uuid.UUID `json:"patient_id" binding:"required"`
	MRN       string    `json:"mrn" binding:"required"`
}

func (h *AccessHandler) Associate(c *gin.Context) {
	claims := callerClaims(c)
	var req associateRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.accessSvc.AssociatePatient(c.Request.Context(), claims.UserID, req.PatientID, req.MRN, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, gin.H{"patient_id": req.PatientID, "mrn": req.MRN})
}

func (h *AccessHandler) Check(c *gin.Context) {
	principal, ok := parseUUIDQuery(c, "principal")
	if !ok {
		return
	}
	mrn := c.Query("mrn")
	if mrn == "" {
		respondError(c, http.StatusBadRequest, "mrn is required")
		return
	}

	has, err := h.accessSvc.HasAccess(c.Request.Context(), principal, mrn)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, gin.H{"principal": principal, "mrn": mrn, "has_access": has})
}

type requestAccessRequest struct {
	MRN string `json:"mrn" binding:"required"`
}

type accessRequestResponse struct {
	RequestID   uint64    `json:"request_id"`
	Requester   uuid.UUID `json:"requester"`
	MRN         string    `json:"mrn"`
	RequestedAt time.Time `json:"requested_at"`
}

// RequestAccess is open to any authenticated principal; the requester is the
// caller, never a field of the payload.
func (h *AccessHandler) RequestAccess(c *gin.Context) {
	claims := callerClaims(c)
	var req requestAccessRequest
	if !bindJSON(c, &req) {
		return
	}

	ar, err := h.accessSvc.RequestAccess(c.Request.Context(), claims.UserID, req.MRN, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, accessRequestResponse{
		RequestID:   ar.RequestID,
		Requester:   ar.Requester,
		MRN:         ar.MRN,
		RequestedAt: ar.RequestedAt,
	})
}

func (h *AccessHandler) ListPending(c *gin.Context) {
	claims := callerClaims(c)

	requests, err := h.accessSvc.PendingRequests(c.Request.Context(), claims.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]accessRequestResponse, len(requests))
	for i, ar := range requests {
		out[i] = accessRequestResponse{
			RequestID:   ar.RequestID,
			Requester:   ar.Requester,
			MRN:         ar.MRN,
			RequestedAt: ar.RequestedAt,
		}
	}
	respondOK(c, out)
}

func (h *AccessHandler) Approve(c *gin.Context) {
	claims := callerClaims(c)

	requestID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid request id")
		return
	}

	ar, err := h.accessSvc.ApproveAccess(c.Request.Context(), claims.UserID, requestID, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, accessRequestResponse{
		RequestID:   ar.RequestID,
		Requester:   ar.Requester,
		MRN:         ar.MRN,
		RequestedAt: ar.RequestedAt,
	})
}
