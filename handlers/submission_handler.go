package handlers

import (
	"net/http"
	"time"

	"github.com/Dosada05/esports-results/middleware"
	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/services"
)

type SubmissionHandler struct {
	submissionService   services.SubmissionService
	verificationService services.VerificationService
}

func NewSubmissionHandler(submissionService services.SubmissionService, verificationService services.VerificationService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService:   submissionService,
		verificationService: verificationService,
	}
}

type createSubmissionRequest struct {
	SubmittedByTeamID  *int                 `json:"submitted_by_team_id"`
	RawResultPayload   models.ResultPayload `json:"raw_result_payload"`
	ProofScreenshotURL *string              `json:"proof_screenshot_url"`
	SubmitterNotes     *string              `json:"submitter_notes"`
}

func (h *SubmissionHandler) CreateSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	var req createSubmissionRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sub, err := h.submissionService.CreateSubmission(r.Context(), services.CreateSubmissionInput{
		MatchID:            matchID,
		SubmittedByUserID:  userID,
		SubmittedByTeamID:  req.SubmittedByTeamID,
		RawResultPayload:   req.RawResultPayload,
		ProofScreenshotURL: req.ProofScreenshotURL,
		SubmitterNotes:     req.SubmitterNotes,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"submission": sub}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type opponentResponseRequest struct {
	Decision   string  `json:"decision"`
	ReasonCode string  `json:"reason_code"`
	Notes      *string `json:"notes"`
	Evidence   []struct {
		Type  string  `json:"type"`
		URL   string  `json:"url"`
		Notes *string `json:"notes"`
	} `json:"evidence"`
}

func (h *SubmissionHandler) OpponentRespondHandler(w http.ResponseWriter, r *http.Request) {
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	var req opponentResponseRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	input := services.OpponentResponseInput{
		SubmissionID:     submissionID,
		RespondingUserID: userID,
		Decision:         services.OpponentDecision(req.Decision),
		ReasonCode:       req.ReasonCode,
		Notes:            req.Notes,
	}
	for _, item := range req.Evidence {
		input.Evidence = append(input.Evidence, services.EvidenceInput{
			Type:  item.Type,
			URL:   item.URL,
			Notes: item.Notes,
		})
	}

	sub, err := h.submissionService.OpponentRespond(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submission": sub}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubmissionHandler) VerifySubmissionHandler(w http.ResponseWriter, r *http.Request) {
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.verificationService.VerifySubmission(r.Context(), submissionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"verification": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DryRunVerificationHandler previews verification without touching the audit
// trail or the bus.
func (h *SubmissionHandler) DryRunVerificationHandler(w http.ResponseWriter, r *http.Request) {
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.verificationService.DryRunVerification(r.Context(), submissionID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"verification": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SubmissionHandler) FinalizeSubmissionHandler(w http.ResponseWriter, r *http.Request) {
	submissionID, err := getIDFromURL(r, "submissionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	sub, err := h.verificationService.FinalizeSubmission(r.Context(), submissionID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"submission": sub}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SweepHandler exposes the auto-confirm sweep for operational use; the same
// operation runs on the background ticker.
func (h *SubmissionHandler) SweepHandler(w http.ResponseWriter, r *http.Request) {
	confirmed, err := h.submissionService.AutoConfirmExpired(r.Context(), time.Now())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"auto_confirmed": confirmed}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
