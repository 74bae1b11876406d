package handlers

import (
	"net/http"

	"github.com/Dosada05/esports-results/brackets"
	"github.com/Dosada05/esports-results/repositories"
	"github.com/Dosada05/esports-results/services"
)

type TournamentHandler struct {
	standingService services.StandingService
	bracketRepo     repositories.BracketRepository
}

func NewTournamentHandler(standingService services.StandingService, bracketRepo repositories.BracketRepository) *TournamentHandler {
	return &TournamentHandler{
		standingService: standingService,
		bracketRepo:     bracketRepo,
	}
}

func (h *TournamentHandler) ListStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.standingService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) RecomputeStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.standingService.RecomputeForTournament(r.Context(), tournamentID); err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	standings, err := h.standingService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracketHandler returns the bracket grouped by round, finals last.
func (h *TournamentHandler) GetBracketHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	nodes, err := h.bracketRepo.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if len(nodes) == 0 {
		notFoundResponse(w, r, brackets.ErrEmptyBracket)
		return
	}

	tree, err := brackets.BuildTree(nodes)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	response := jsonResponse{
		"rounds":      tree.Rounds(),
		"is_complete": tree.IsComplete(),
	}
	if tree.IsComplete() {
		response["winner_id"] = tree.Root.WinnerID
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
