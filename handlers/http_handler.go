package handlers

import (
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"corkboard/feed"
	"corkboard/notify"
	"corkboard/posts"
	"corkboard/schemas"
	"corkboard/session"
)

//go:embed board.html
var boardPage []byte

func NewHTTPHandler(sessionCtl *session.Controller, collectionSync *feed.CollectionSync, mutator *posts.Mutator, center *notify.Center) *HTTPHandler {
	return &HTTPHandler{
		session: sessionCtl,
		sync:    collectionSync,
		mutator: mutator,
		center:  center,
	}
}

type HTTPHandler struct {
	session *session.Controller
	sync    *feed.CollectionSync
	mutator *posts.Mutator
	center  *notify.Center
}

// BoardResponse is everything the page needs for one render pass.
type BoardResponse struct {
	Posts        []schemas.Post        `json:"posts"`
	Loading      bool                  `json:"loading"`
	Submitting   bool                  `json:"submitting"`
	Notification *schemas.Notification `json:"notification,omitempty"`
	UserID       string                `json:"userId,omitempty"`
}

func (h *HTTPHandler) boardResponse(searchTerm string) BoardResponse {
	response := BoardResponse{
		Posts:        feed.Project(h.sync.Snapshot(), searchTerm),
		Loading:      h.sync.Loading(),
		Submitting:   h.mutator.Submitting(),
		Notification: h.center.Current(),
	}
	if identity := h.session.Identity(); identity != nil {
		response.UserID = string(identity.UID)
	}
	return response
}

func (h *HTTPHandler) HandleIndex(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = rw.Write(boardPage)
}

func (h *HTTPHandler) HandleGetBoard(rw http.ResponseWriter, r *http.Request) {
	searchTerm := r.URL.Query().Get("search")
	writeJSON(rw, h.boardResponse(searchTerm))
}

func (h *HTTPHandler) HandleCreatePost(rw http.ResponseWriter, r *http.Request) {
	identity := h.session.Identity()
	if identity == nil {
		http.Error(rw, "no auth", http.StatusUnauthorized)
		return
	}

	var draft schemas.PostDraft
	err := json.NewDecoder(r.Body).Decode(&draft)
	if err != nil {
		http.Error(rw, "bad body", http.StatusBadRequest)
		return
	}

	created := h.mutator.Create(r.Context(), draft, identity)
	if !created {
		// blocked validation and failed writes both land here; the toast
		// already distinguishes them for the user
		http.Error(rw, "post not created", http.StatusBadRequest)
		return
	}

	rawResponse, _ := json.Marshal(h.boardResponse(""))
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusAccepted)
	_, _ = rw.Write(rawResponse)
}

func (h *HTTPHandler) HandleDeletePost(rw http.ResponseWriter, r *http.Request) {
	identity := h.session.Identity()
	if identity == nil {
		http.Error(rw, "no auth", http.StatusUnauthorized)
		return
	}

	postId := mux.Vars(r)["postId"]
	post, found := h.findPost(postId)
	if !found {
		http.Error(rw, "not found", http.StatusNotFound)
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	err := h.mutator.Delete(r.Context(), post, identity, confirmed)
	switch {
	case errors.Is(err, posts.ErrForbidden):
		http.Error(rw, "you shall not pass", http.StatusForbidden)
	case errors.Is(err, posts.ErrNotConfirmed):
		http.Error(rw, "confirmation required", http.StatusBadRequest)
	case err != nil:
		http.Error(rw, "internal error", http.StatusInternalServerError)
	default:
		rw.WriteHeader(http.StatusAccepted)
	}
}

func (h *HTTPHandler) HandleLikePost(rw http.ResponseWriter, r *http.Request) {
	postId := mux.Vars(r)["postId"]
	post, found := h.findPost(postId)
	if !found {
		http.Error(rw, "not found", http.StatusNotFound)
		return
	}

	h.mutator.Like(r.Context(), post)
	rw.WriteHeader(http.StatusAccepted)
}

func (h *HTTPHandler) HandleDismissNotification(rw http.ResponseWriter, r *http.Request) {
	h.center.Dismiss()
	rw.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) HandlePing(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(http.StatusOK)
}

func (h *HTTPHandler) findPost(postId string) (schemas.Post, bool) {
	for _, post := range h.sync.Snapshot() {
		if post.ID == postId {
			return post, true
		}
	}
	return schemas.Post{}, false
}

func writeJSON(rw http.ResponseWriter, payload interface{}) {
	rawResponse, _ := json.Marshal(payload)
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(rawResponse)
}
