// Package app exposes the collection service over HTTP.
package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"archive/api/internal/collection"
	"archive/api/internal/icon"
	"archive/api/internal/role"
	"archive/api/internal/search"
	"archive/api/internal/store"
)

// CollectionService is the slice of the collection service the HTTP layer
// drives.
type CollectionService interface {
	CreateCollection(ctx context.Context, actor store.User, in collection.CreateCollectionInput) (store.Collection, error)
	UpdateCollection(ctx context.Context, actor store.User, col store.Collection) (store.Collection, error)
	DestroyCollection(ctx context.Context, actor store.User, collectionID string) error
	GetCollection(ctx context.Context, collectionID string) (store.Collection, error)
	FindByName(ctx context.Context, name string) (store.Collection, error)
	ListTopLevel(ctx context.Context, filter store.CollectionFilter) ([]store.Collection, error)
	SetIconURL(ctx context.Context, actor store.User, collectionID, iconURL string) (store.Collection, error)
	Preference(ctx context.Context, collectionID string) (store.CollectionPreference, error)
	UpdatePreference(ctx context.Context, actor store.User, pref store.CollectionPreference) error
	Profile(ctx context.Context, collectionID string) (store.CollectionProfile, error)
	UpdateProfile(ctx context.Context, actor store.User, profile store.CollectionProfile) error

	Items(ctx context.Context, collectionID string) ([]store.CollectionItem, error)
	ApprovedItems(ctx context.Context, collectionID, kind string) ([]store.CollectionItem, error)
	AddItem(ctx context.Context, actor store.User, collectionID, kind, itemID string) (store.CollectionItem, error)
	SetCollectionApproval(ctx context.Context, actor store.User, itemID, status string) (store.CollectionItem, error)
	SetUserApproval(ctx context.Context, actor store.User, itemID, status string) (store.CollectionItem, error)

	AllParticipants(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error)
	JoinCollection(ctx context.Context, col store.Collection, pseudID string) (store.CollectionParticipant, error)
	ApproveMembership(ctx context.Context, actor store.User, participantID string) (store.CollectionParticipant, error)
	PromoteParticipant(ctx context.Context, actor store.User, participantID string, target role.Role) (store.CollectionParticipant, error)
	RemoveParticipant(ctx context.Context, actor store.User, participantID string) error
	ChangeMembership(ctx context.Context, actor store.User, oldPseudID, newPseudID string) error

	AllOwners(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error)
	Maintainers(ctx context.Context, col store.Collection) ([]store.CollectionParticipant, error)
	AllApprovedWorksCount(ctx context.Context, col store.Collection) (int, error)
	AllApprovedBookmarksCount(ctx context.Context, col store.Collection) (int, error)
	AllFandoms(ctx context.Context, col store.Collection) ([]store.Fandom, error)

	SetChallenge(ctx context.Context, actor store.User, collectionID, kind, challengeID string) (store.Collection, error)
	DetachChallenge(ctx context.Context, actor store.User, collectionID string) (store.Collection, error)
	Reveal(ctx context.Context, actor store.User, collectionID string) error
	RevealAuthors(ctx context.Context, actor store.User, collectionID string) error
}

// UserDirectory resolves the acting user from the trusted identity header.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (store.User, error)
}

// Autocompleter answers collection name lookups.
type Autocompleter interface {
	Lookup(ctx context.Context, q search.Query) ([]string, error)
}

type HTTPServer struct {
	service    CollectionService
	users      UserDirectory
	searcher   Autocompleter
	icons      *icon.Store
	ping       func(context.Context) error
	corsOrigin string
}

func NewHTTPServer(service CollectionService, users UserDirectory, searcher Autocompleter, icons *icon.Store, ping func(context.Context) error, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		users:      users,
		searcher:   searcher,
		icons:      icons,
		ping:       ping,
		corsOrigin: corsOrigin,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if s.ping != nil {
			if err := s.ping(ctx); err != nil {
				status = "not_ready"
				statusCode = http.StatusServiceUnavailable
				checks["database"] = map[string]any{"status": "error", "error": err.Error()}
			}
		}
		writeJSON(w, statusCode, map[string]any{"ok": status == "ready", "status": status, "checks": checks})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/autocomplete" {
		s.handleAutocomplete(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "collections":
		s.routeCollections(w, r, parts[2:])
	case "items":
		s.routeItems(w, r, parts[2:])
	case "participants":
		s.routeParticipants(w, r, parts[2:])
	case "memberships":
		s.routeMemberships(w, r, parts[2:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeCollections(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.handleListCollections(w, r)
	case len(rest) == 0 && r.Method == http.MethodPost:
		s.handleCreateCollection(w, r)
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.handleShowCollection(w, r, rest[0])
	case len(rest) == 1 && r.Method == http.MethodPut:
		s.handleUpdateCollection(w, r, rest[0])
	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.handleDestroyCollection(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "items" && r.Method == http.MethodGet:
		s.handleListItems(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "items" && r.Method == http.MethodPost:
		s.handleAddItem(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "participants" && r.Method == http.MethodGet:
		s.handleListParticipants(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "participants" && r.Method == http.MethodPost:
		s.handleJoin(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "reveal" && r.Method == http.MethodPost:
		s.handleReveal(w, r, rest[0], false)
	case len(rest) == 2 && rest[1] == "reveal-authors" && r.Method == http.MethodPost:
		s.handleReveal(w, r, rest[0], true)
	case len(rest) == 2 && rest[1] == "challenge" && r.Method == http.MethodPut:
		s.handleSetChallenge(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "challenge" && r.Method == http.MethodDelete:
		s.handleDetachChallenge(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "preference" && r.Method == http.MethodPut:
		s.handleUpdatePreference(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "profile" && r.Method == http.MethodPut:
		s.handleUpdateProfile(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "icon" && r.Method == http.MethodPost:
		s.handleUploadIcon(w, r, rest[0])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeItems(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) == 2 && rest[1] == "approval" && r.Method == http.MethodPut {
		s.handleItemApproval(w, r, rest[0])
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) routeParticipants(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 2 && rest[1] == "approve" && r.Method == http.MethodPost:
		s.handleApproveMembership(w, r, rest[0])
	case len(rest) == 2 && rest[1] == "role" && r.Method == http.MethodPut:
		s.handlePromote(w, r, rest[0])
	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.handleRemoveParticipant(w, r, rest[0])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) routeMemberships(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) == 0 && r.Method == http.MethodPut {
		s.handleChangeMembership(w, r)
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// actor resolves the authenticated user from the identity header set by the
// front-end proxy. An absent header means a guest.
func (s *HTTPServer) actor(r *http.Request) (store.User, error) {
	userID := strings.TrimSpace(r.Header.Get("X-Archive-User"))
	if userID == "" {
		return store.User{}, nil
	}
	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.User{}, nil
		}
		return store.User{}, err
	}
	return user, nil
}

func (s *HTTPServer) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
		return
	}
	q := search.Query{
		Text:   r.URL.Query().Get("q"),
		Bucket: search.Bucket(r.URL.Query().Get("bucket")),
		Limit:  20,
	}
	if q.Bucket == "" {
		q.Bucket = search.BucketAll
	}
	ids, err := s.searcher.Lookup(r.Context(), q)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

func (s *HTTPServer) handleListCollections(w http.ResponseWriter, r *http.Request) {
	var filter store.CollectionFilter
	if v := r.URL.Query().Get("closed"); v != "" {
		b := v == "true"
		filter.Closed = &b
	}
	if v := r.URL.Query().Get("moderated"); v != "" {
		b := v == "true"
		filter.Moderated = &b
	}
	filter.Fandom = r.URL.Query().Get("fandom")
	if r.URL.Query().Get("sort") == "items" {
		filter.SortByItemCount = true
	}

	collections, err := s.service.ListTopLevel(r.Context(), filter)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(collections))
	for _, col := range collections {
		payload = append(payload, collectionJSON(col))
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": payload})
}

type collectionRequest struct {
	Name                   string `json:"name"`
	Title                  string `json:"title"`
	Description            string `json:"description"`
	Email                  string `json:"email"`
	HeaderImageURL         string `json:"headerImageUrl"`
	ParentName             string `json:"parentName"`
	OwnerPseudID           string `json:"ownerPseudId"`
	Closed                 bool   `json:"closed"`
	Moderated              bool   `json:"moderated"`
	Unrevealed             bool   `json:"unrevealed"`
	Anonymous              bool   `json:"anonymous"`
	AssignmentNotification string `json:"assignmentNotification"`
	GiftNotification       string `json:"giftNotification"`
}

func (s *HTTPServer) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	var req collectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	col, err := s.service.CreateCollection(r.Context(), actor, collection.CreateCollectionInput{
		Name:                   req.Name,
		Title:                  req.Title,
		Description:            req.Description,
		Email:                  req.Email,
		HeaderImageURL:         req.HeaderImageURL,
		ParentName:             req.ParentName,
		OwnerPseudID:           req.OwnerPseudID,
		Closed:                 req.Closed,
		Moderated:              req.Moderated,
		Unrevealed:             req.Unrevealed,
		Anonymous:              req.Anonymous,
		AssignmentNotification: req.AssignmentNotification,
		GiftNotification:       req.GiftNotification,
	})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"collection": collectionJSON(col)})
}

// handleShowCollection resolves by url-safe name and includes the aggregate
// view: counts across children, fandoms, and the effective staff.
func (s *HTTPServer) handleShowCollection(w http.ResponseWriter, r *http.Request, name string) {
	col, err := s.service.FindByName(r.Context(), name)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	works, err := s.service.AllApprovedWorksCount(r.Context(), col)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	bookmarks, err := s.service.AllApprovedBookmarksCount(r.Context(), col)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	fandoms, err := s.service.AllFandoms(r.Context(), col)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	maintainers, err := s.service.Maintainers(r.Context(), col)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	fandomNames := make([]string, 0, len(fandoms))
	for _, f := range fandoms {
		fandomNames = append(fandomNames, f.Name)
	}
	staff := make([]map[string]any, 0, len(maintainers))
	for _, m := range maintainers {
		staff = append(staff, participantJSON(m))
	}

	payload := collectionJSON(col)
	payload["approvedWorksCount"] = works
	payload["approvedBookmarksCount"] = bookmarks
	payload["fandoms"] = fandomNames
	payload["maintainers"] = staff
	writeJSON(w, http.StatusOK, map[string]any{"collection": payload})
}

func (s *HTTPServer) handleUpdateCollection(w http.ResponseWriter, r *http.Request, collectionID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	existing, err := s.service.GetCollection(r.Context(), collectionID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}

	req := collectionRequest{
		Name:           existing.Name,
		Title:          existing.Title,
		Description:    existing.Description,
		Email:          existing.Email,
		HeaderImageURL: existing.HeaderImageURL,
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	next := existing
	next.Name = req.Name
	next.Title = req.Title
	next.Description = req.Description
	next.Email = req.Email
	next.HeaderImageURL = req.HeaderImageURL

	col, err := s.service.UpdateCollection(r.Context(), actor, next)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": collectionJSON(col)})
}

func (s *HTTPServer) handleDestroyCollection(w http.ResponseWriter, r *http.Request, collectionID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if err := s.service.DestroyCollection(r.Context(), actor, collectionID); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request, collectionID string) {
	var (
		items []store.CollectionItem
		err   error
	)
	if kind := r.URL.Query().Get("kind"); kind != "" {
		items, err = s.service.ApprovedItems(r.Context(), collectionID, kind)
	} else {
		items, err = s.service.Items(r.Context(), collectionID)
	}
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, itemJSON(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": payload})
}

func (s *HTTPServer) handleAddItem(w http.ResponseWriter, r *http.Request, collectionID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	var req struct {
		Kind   string `json:"kind"`
		ItemID string `json:"itemId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	item, err := s.service.AddItem(r.Context(), actor, collectionID, req.Kind, req.ItemID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": itemJSON(item)})
}

func (s *HTTPServer) handleItemApproval(w http.ResponseWriter, r *http.Request, itemID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	var req struct {
		Side   string `json:"side"`
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	var item store.CollectionItem
	switch req.Side {
	case "user":
		item, err = s.service.SetUserApproval(r.Context(), actor, itemID, req.Status)
	case "collection":
		item, err = s.service.SetCollectionApproval(r.Context(), actor, itemID, req.Status)
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "side must be \"user\" or \"collection\"", nil)
		return
	}
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": itemJSON(item)})
}

func (s *HTTPServer) handleListParticipants(w http.ResponseWriter, r *http.Request, collectionID string) {
	col, err := s.service.GetCollection(r.Context(), collectionID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	participants, err := s.service.AllParticipants(r.Context(), col)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		payload = append(payload, participantJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": payload})
}

func (s *HTTPServer) handleJoin(w http.ResponseWriter, r *http.Request, collectionID string) {
	var req struct {
		PseudID string `json:"pseudId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	col, err := s.service.GetCollection(r.Context(), collectionID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	participant, err := s.service.JoinCollection(r.Context(), col, req.PseudID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"participant": participantJSON(participant)})
}

func (s *HTTPServer) handleApproveMembership(w http.ResponseWriter, r *http.Request, participantID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	participant, err := s.service.ApproveMembership(r.Context(), actor, participantID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant": participantJSON(participant)})
}

func (s *HTTPServer) handlePromote(w http.ResponseWriter, r *http.Request, participantID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	participant, err := s.service.PromoteParticipant(r.Context(), actor, participantID, role.Role(req.Role))
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participant": participantJSON(participant)})
}

func (s *HTTPServer) handleRemoveParticipant(w http.ResponseWriter, r *http.Request, participantID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if err := s.service.RemoveParticipant(r.Context(), actor, participantID); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *HTTPServer) handleChangeMembership(w http.ResponseWriter, r *http.Request) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	var req struct {
		OldPseudID string `json:"oldPseudId"`
		NewPseudID string `json:"newPseudId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	if err := s.service.ChangeMembership(r.Context(), actor, req.OldPseudID, req.NewPseudID); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": true})
}

func (s *HTTPServer) handleReveal(w http.ResponseWriter, r *http.Request, collectionID string, authors bool) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	if authors {
		err = s.service.RevealAuthors(r.Context(), actor, collectionID)
	} else {
		err = s.service.Reveal(r.Context(), actor, collectionID)
	}
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revealed": true})
}

func (s *HTTPServer) handleSetChallenge(w http.ResponseWriter, r *http.Request, collectionID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	var req struct {
		Kind        string `json:"kind"`
		ChallengeID string `json:"challengeId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	col, err := s.service.SetChallenge(r.Context(), actor, collectionID, req.Kind, req.ChallengeID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": collectionJSON(col)})
}

func (s *HTTPServer) handleDetachChallenge(w http.ResponseWriter, r *http.Request, collectionID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	col, err := s.service.DetachChallenge(r.Context(), actor, collectionID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": collectionJSON(col)})
}

func (s *HTTPServer) handleUpdatePreference(w http.ResponseWriter, r *http.Request, collectionID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	pref, err := s.service.Preference(r.Context(), collectionID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	req := struct {
		Closed     bool `json:"closed"`
		Moderated  bool `json:"moderated"`
		Unrevealed bool `json:"unrevealed"`
		Anonymous  bool `json:"anonymous"`
	}{pref.Closed, pref.Moderated, pref.Unrevealed, pref.Anonymous}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	pref.Closed = req.Closed
	pref.Moderated = req.Moderated
	pref.Unrevealed = req.Unrevealed
	pref.Anonymous = req.Anonymous
	if err := s.service.UpdatePreference(r.Context(), actor, pref); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preference": pref})
}

func (s *HTTPServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request, collectionID string) {
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	profile, err := s.service.Profile(r.Context(), collectionID)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	req := struct {
		AssignmentNotification string `json:"assignmentNotification"`
		GiftNotification       string `json:"giftNotification"`
	}{profile.AssignmentNotification, profile.GiftNotification}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	profile.AssignmentNotification = req.AssignmentNotification
	profile.GiftNotification = req.GiftNotification
	if err := s.service.UpdateProfile(r.Context(), actor, profile); err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (s *HTTPServer) handleUploadIcon(w http.ResponseWriter, r *http.Request, collectionID string) {
	if s.icons == nil {
		writeError(w, http.StatusServiceUnavailable, "ICONS_UNAVAILABLE", "Icon storage is not configured", nil)
		return
	}
	actor, err := s.actor(r)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	file, header, err := r.FormFile("icon")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "icon file missing", nil)
		return
	}
	defer file.Close()

	url, err := s.icons.Upload(r.Context(), collectionID, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		return
	}
	col, err := s.service.SetIconURL(r.Context(), actor, collectionID, url)
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collection": collectionJSON(col)})
}

func collectionJSON(col store.Collection) map[string]any {
	return map[string]any{
		"id":             col.ID,
		"name":           col.Name,
		"title":          col.Title,
		"description":    col.Description,
		"email":          col.Email,
		"headerImageUrl": col.HeaderImageURL,
		"iconUrl":        col.IconURL,
		"parentId":       col.ParentID,
		"challengeKind":  col.ChallengeKind,
		"challengeId":    col.ChallengeID,
	}
}

func participantJSON(p store.CollectionParticipant) map[string]any {
	return map[string]any{
		"id":           p.ID,
		"collectionId": p.CollectionID,
		"pseudId":      p.PseudID,
		"pseudName":    p.PseudName,
		"role":         p.Role,
	}
}

func itemJSON(item store.CollectionItem) map[string]any {
	return map[string]any{
		"id":                 item.ID,
		"collectionId":       item.CollectionID,
		"kind":               item.ItemKind,
		"itemId":             item.ItemID,
		"title":              item.ItemTitle,
		"userApproval":       item.UserApprovalStatus,
		"collectionApproval": item.CollectionApprovalStatus,
		"unrevealed":         item.Unrevealed,
		"anonymous":          item.Anonymous,
	}
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *collection.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
