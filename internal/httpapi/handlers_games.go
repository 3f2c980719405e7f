package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"Lundawebserver/internal/domain"
	"Lundawebserver/internal/service"
)

type createGameRequest struct {
	Title           string   `json:"title"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	ResultsByAnyone bool     `json:"results_by_anyone"`
	AdminIDs        []string `json:"admin_ids"`
	PlayerIDs       []string `json:"player_ids"`
}

type createGameResponse struct {
	ID string `json:"id"`
}

func (a *api) handleGamesCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req createGameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	startTime, err := parseOptionalTime(req.StartTime)
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"start_time": "must be RFC3339 timestamp"}))
		return
	}
	endTime, err := parseOptionalTime(req.EndTime)
	if err != nil {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"end_time": "must be RFC3339 timestamp"}))
		return
	}

	id, err := a.gameSvc.CreateGame(r.Context(), u.ID, service.CreateGameParams{
		Title:           strings.TrimSpace(req.Title),
		StartTime:       startTime,
		EndTime:         endTime,
		ResultsByAnyone: req.ResultsByAnyone,
		AdminIDs:        req.AdminIDs,
		PlayerIDs:       req.PlayerIDs,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, createGameResponse{ID: id})
}

func (a *api) handleGamesList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	limit := 25
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	games, err := a.gameSvc.ListGames(r.Context(), u.ID, limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, games)
}

func (a *api) handleGamesGet(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	gameID := strings.TrimSpace(r.PathValue("id"))
	if gameID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return
	}

	game, err := a.gameSvc.GetGame(r.Context(), u.ID, gameID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, game)
}

type resultsByAnyoneRequest struct {
	Allowed bool `json:"allowed"`
}

func (a *api) handleGamesSetResultsByAnyone(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	gameID := strings.TrimSpace(r.PathValue("id"))
	if gameID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return
	}

	var req resultsByAnyoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.gameSvc.SetResultsByAnyone(r.Context(), u.ID, gameID, req.Allowed); err != nil {
		WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleGamesFinalizeResults(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	gameID := strings.TrimSpace(r.PathValue("id"))
	if gameID == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id": "required"}))
		return
	}

	if err := a.gameSvc.FinalizeResults(r.Context(), u.ID, gameID); err != nil {
		WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
