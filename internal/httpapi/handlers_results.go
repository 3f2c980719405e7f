package httpapi

import (
	"net/http"
	"strings"

	"Lundawebserver/internal/domain"
	"Lundawebserver/internal/results"
)

type batchOpsRequest struct {
	Ops []results.Op `json:"ops"`
}

// handleResultsBatchOps is the single write endpoint of the results protocol.
// Clients resubmit whole batches after delivery failures, so the response
// echoes a verdict for every op by id.
func (a *api) handleResultsBatchOps(w http.ResponseWriter, r *http.Request) {
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

	var req batchOpsRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	res, err := a.resultsSvc.BatchOps(r.Context(), gameID, u.ID, req.Ops)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, res)
}

type resultsResponse struct {
	Results     *results.Document `json:"results"`
	HeadVersion int64             `json:"headVersion"`
}

func (a *api) handleResultsGet(w http.ResponseWriter, r *http.Request) {
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

	doc, err := a.resultsSvc.GetResults(r.Context(), gameID, u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, resultsResponse{Results: doc, HeadVersion: doc.Version})
}
