package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the board routes the way main serves them; tests mount the
// same router against httptest.
func NewRouter(handler *HTTPHandler, live *LiveBoard) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", handler.HandleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/board", handler.HandleGetBoard).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/board/live", live.HandleLive).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/posts", handler.HandleCreatePost).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/posts/{postId}", handler.HandleDeletePost).Methods(http.MethodDelete)
	r.HandleFunc("/api/v1/posts/{postId}/like", handler.HandleLikePost).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/notification", handler.HandleDismissNotification).Methods(http.MethodDelete)
	r.HandleFunc("/maintenance/ping", handler.HandlePing).Methods(http.MethodGet)
	return r
}
