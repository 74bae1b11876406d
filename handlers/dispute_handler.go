package handlers

import (
	"net/http"

	"github.com/Dosada05/esports-results/middleware"
	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/services"
)

type DisputeHandler struct {
	disputeService services.DisputeService
}

func NewDisputeHandler(disputeService services.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService}
}

func (h *DisputeHandler) GetDisputeHandler(w http.ResponseWriter, r *http.Request) {
	disputeID, err := getIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dispute, err := h.disputeService.GetDispute(r.Context(), disputeID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"dispute": dispute}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type resolveDisputeRequest struct {
	ResolutionType    string               `json:"resolution_type"`
	ResolutionNotes   string               `json:"resolution_notes"`
	ResolutionPayload models.ResultPayload `json:"resolution_payload"`
}

func (h *DisputeHandler) ResolveDisputeHandler(w http.ResponseWriter, r *http.Request) {
	disputeID, err := getIDFromURL(r, "disputeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	var req resolveDisputeRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	dispute, err := h.disputeService.ResolveDispute(r.Context(), services.ResolveDisputeInput{
		DisputeID:         disputeID,
		ResolutionType:    services.ResolutionType(req.ResolutionType),
		ResolvedByUserID:  userID,
		ResolutionNotes:   req.ResolutionNotes,
		ResolutionPayload: req.ResolutionPayload,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"dispute": dispute}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
