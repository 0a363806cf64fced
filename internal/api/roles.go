package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/roles"
	"github.com/onyxservices/dispatch/internal/rolesync"
)

type roleMappingRequest struct {
	DiscordRoleID   string `json:"discord_role_id" validate:"required,numeric"`
	DiscordRoleName string `json:"discord_role_name" validate:"required,max=100"`
	SystemRole      string `json:"system_role" validate:"required,oneof=staff dispatcher administrator ceo"`
	AutoVerify      bool   `json:"auto_verify"`
}

type updateRoleMappingRequest struct {
	AutoVerify *bool `json:"auto_verify" validate:"required"`
}

type setUserRoleRequest struct {
	Role     string `json:"role" validate:"required,oneof=staff dispatcher administrator ceo"`
	Verified *bool  `json:"verified" validate:"required"`
}

type verifyRequest struct {
	DiscordID string `json:"discord_id" validate:"omitempty,numeric"`
}

func (a *API) handleListRoleMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := a.store.RoleMappings(r.Context())
	if err != nil {
		a.serverError(w, err)
		return
	}
	if mappings == nil {
		mappings = []roles.Mapping{}
	}
	writeJSON(w, http.StatusOK, mappings)
}

func (a *API) handleCreateRoleMapping(w http.ResponseWriter, r *http.Request) {
	var req roleMappingRequest
	if !a.decode(w, r, &req) {
		return
	}

	m, err := a.store.CreateRoleMapping(r.Context(), roles.Mapping{
		DiscordRoleID:   req.DiscordRoleID,
		DiscordRoleName: req.DiscordRoleName,
		SystemRole:      roles.SystemRole(req.SystemRole),
		AutoVerify:      req.AutoVerify,
	})
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) handleUpdateRoleMapping(w http.ResponseWriter, r *http.Request) {
	var req updateRoleMappingRequest
	if !a.decode(w, r, &req) {
		return
	}

	m, err := a.store.SetRoleMappingAutoVerify(r.Context(), mux.Vars(r)["id"], *req.AutoVerify)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleDeleteRoleMapping(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteRoleMapping(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "role mapping deleted",
	})
}

// handleVerifyRoles re-resolves the caller's role, or another member's for managers.
func (a *API) handleVerifyRoles(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.validate.Validate(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DiscordID == "" {
		req.DiscordID = user.DiscordID
	}
	if req.DiscordID != user.DiscordID && !user.Role.CanManage() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	res, err := a.roleSync.VerifyMember(r.Context(), req.DiscordID)
	if errors.Is(err, rolesync.ErrNoMappings) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":       "No role mappings configured",
			"assigned_role": nil,
		})
		return
	}
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSyncRoles(w http.ResponseWriter, r *http.Request) {
	report, err := a.roleSync.SyncGuild(r.Context())
	if err != nil {
		a.log.Error().Err(err).Msg("guild sync failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		a.serverError(w, err)
		return
	}
	if users == nil {
		users = []db.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// handleSetUserRole overrides a user's role and verified flag. Only a CEO may
// do this; the next Discord sync can still replace a hand-set role.
func (a *API) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	actor := currentUser(r.Context())
	if actor.Role != roles.CEO {
		writeError(w, http.StatusForbidden, "only a ceo can change user roles")
		return
	}

	var req setUserRoleRequest
	if !a.decode(w, r, &req) {
		return
	}

	u, err := a.store.SetUserRole(r.Context(), mux.Vars(r)["id"], roles.SystemRole(req.Role), *req.Verified)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	a.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Bool("verified", u.Verified).
		Str("changed_by", actor.ID).Msg("user role set by hand")
	writeJSON(w, http.StatusOK, u)
}
