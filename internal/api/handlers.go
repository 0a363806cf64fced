package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/onyxservices/dispatch/internal/contracts"
	"github.com/onyxservices/dispatch/internal/db"
)

type createContractRequest struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=4000"`
	Type         string  `json:"type" validate:"required,max=50"`
	Location     string  `json:"location" validate:"max=200"`
	TargetPayout float64 `json:"target_payout" validate:"gte=0"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=planning active completed cancelled"`
}

type targetPayoutRequest struct {
	TargetPayout *float64 `json:"target_payout" validate:"required,gte=0"`
}

type contributionRequest struct {
	Type           string  `json:"contribution_type" validate:"required,oneof=supplies materials equipment ship fuel ammunition medical_supplies time other"`
	ItemName       string  `json:"item_name" validate:"required,max=200"`
	Quantity       int     `json:"quantity" validate:"gte=0"`
	EstimatedValue float64 `json:"estimated_value" validate:"gte=0"`
	Notes          string  `json:"notes" validate:"max=2000"`
}

type addParticipantRequest struct {
	// Empty means the caller joins.
	UserID string `json:"user_id" validate:"omitempty,uuid"`
	Role   string `json:"role" validate:"max=50"`
}

type setShareRequest struct {
	SharePercentage *float64 `json:"share_percentage" validate:"required,gte=0,lte=100"`
}

func (a *API) handleListContracts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !contracts.Status(status).Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	list, err := a.contracts.List(r.Context(), status)
	if err != nil {
		a.serverError(w, err)
		return
	}
	if list == nil {
		list = []db.Contract{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req createContractRequest
	if !a.decode(w, r, &req) {
		return
	}

	c, err := a.contracts.Create(r.Context(), currentUser(r.Context()), contracts.NewContract{
		Title:        req.Title,
		Description:  req.Description,
		Type:         req.Type,
		Location:     req.Location,
		TargetPayout: req.TargetPayout,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleGetContract(w http.ResponseWriter, r *http.Request) {
	sum, err := a.contracts.Summary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !a.authorizeContract(w, r, id) {
		return
	}

	var req updateStatusRequest
	if !a.decode(w, r, &req) {
		return
	}

	if err := a.contracts.UpdateStatus(r.Context(), currentUser(r.Context()), id, contracts.Status(req.Status)); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "status updated",
	})
}

func (a *API) handleUpdateTargetPayout(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !a.authorizeContract(w, r, id) {
		return
	}

	var req targetPayoutRequest
	if !a.decode(w, r, &req) {
		return
	}

	sum, err := a.contracts.UpdateTargetPayout(r.Context(), id, *req.TargetPayout)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) handleDeleteContract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !a.authorizeContract(w, r, id) {
		return
	}

	if err := a.contracts.Delete(r.Context(), currentUser(r.Context()), id); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "contract deleted",
	})
}

func (a *API) handleListContributions(w http.ResponseWriter, r *http.Request) {
	list, err := a.contracts.Contributions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []db.Contribution{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleAddContribution records a contribution by the caller, who must be
// enrolled in the contract or able to manage it.
func (a *API) handleAddContribution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user := currentUser(r.Context())

	sum, err := a.contracts.Summary(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if !sum.Includes(user.ID) && !sum.ManagedBy(user) {
		writeError(w, http.StatusForbidden, "only participants can add contributions")
		return
	}

	var req contributionRequest
	if !a.decode(w, r, &req) {
		return
	}

	c, err := a.contracts.AddContribution(r.Context(), user, id, contracts.NewContribution{
		Type:           req.Type,
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		EstimatedValue: req.EstimatedValue,
		Notes:          req.Notes,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user := currentUser(r.Context())

	var req addParticipantRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = user.ID
	}
	if req.UserID != user.ID && !a.authorizeContract(w, r, id) {
		return
	}

	sum, err := a.contracts.AddParticipant(r.Context(), user, id, req.UserID, req.Role)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

func (a *API) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !a.authorizeContract(w, r, vars["id"]) {
		return
	}

	sum, err := a.contracts.RemoveParticipant(r.Context(), vars["id"], vars["pid"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) handleSetShare(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !a.authorizeContract(w, r, vars["id"]) {
		return
	}

	var req setShareRequest
	if !a.decode(w, r, &req) {
		return
	}

	sum, err := a.contracts.SetShare(r.Context(), vars["id"], vars["pid"], *req.SharePercentage)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) handleResetShare(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !a.authorizeContract(w, r, vars["id"]) {
		return
	}

	sum, err := a.contracts.ResetShare(r.Context(), vars["id"], vars["pid"])
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// authorizeContract lets managers, the contract's creator and its leaders edit it.
func (a *API) authorizeContract(w http.ResponseWriter, r *http.Request, contractID string) bool {
	user := currentUser(r.Context())
	if user.Role.CanManage() {
		return true
	}
	sum, err := a.contracts.Summary(r.Context(), contractID)
	if err != nil {
		a.writeServiceError(w, err)
		return false
	}
	if !sum.ManagedBy(user) {
		writeError(w, http.StatusForbidden, "only a contract leader or a manager can do this")
		return false
	}
	return true
}
