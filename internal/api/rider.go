package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kolekarsoham270-hash/bustracker/internal/locale"
	"github.com/kolekarsoham270-hash/bustracker/internal/query"
	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request) {
	routes := query.FavoriteRoutes(s.store.Snapshot())
	if routes == nil {
		routes = []transit.Route{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": s.store.Favorites(), "routes": routes})
}

func (s *Server) favoritesSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, query.SummarizeFavorites(s.store.Snapshot()))
}

// addFavorite handles PUT /api/favorites/{routeID}. Repeating it is harmless.
func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "routeID")
	if _, ok := s.store.Snapshot().RouteByID(id); !ok {
		writeError(w, http.StatusNotFound, "route not found")
		return
	}
	s.store.AddFavorite(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request) {
	s.store.RemoveFavorite(chi.URLParam(r, "routeID"))
	w.WriteHeader(http.StatusNoContent)
}

type NotificationsResponse struct {
	Notifications []transit.Notification `json:"notifications"`
	Unread        int                    `json:"unread"`
}

// listNotifications handles GET /api/notifications, newest first.
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	list := s.store.Notifications()
	if list == nil {
		list = []transit.Notification{}
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: list, Unread: s.store.UnreadCount()})
}

// markRead handles POST /api/notifications/{id}/read. Unknown ids are
// accepted and change nothing.
func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	s.store.MarkNotificationRead(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putLocation(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !s.decode(w, r, &req) {
		return
	}
	c := transit.Coord{Lat: *req.Lat, Lng: *req.Lng}
	s.store.SetUserLocation(c)
	writeJSON(w, http.StatusOK, c)
}

type selectionRequest struct {
	RouteID string `json:"routeId" validate:"required"`
}

func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, ok := s.store.Snapshot().RouteByID(req.RouteID); !ok {
		writeError(w, http.StatusNotFound, "route not found")
		return
	}
	s.store.SetSelectedRoute(req.RouteID)
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) clearSelection(w http.ResponseWriter, r *http.Request) {
	s.store.ClearSelectedRoute()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mapView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, query.MapView(s.store.Snapshot(), s.center))
}

type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) getLanguage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, languageRequest{Language: string(s.locale.Language())})
}

// putLanguage handles PUT /api/language. An empty language picks the best
// match for the request's Accept-Language header.
func (s *Server) putLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if !s.decode(w, r, &req) {
		return
	}
	lang := locale.Match(r.Header.Get("Accept-Language"))
	if req.Language != "" {
		var ok bool
		if lang, ok = locale.Parse(req.Language); !ok {
			writeError(w, http.StatusBadRequest, "unsupported language")
			return
		}
	}
	s.locale.SetLanguage(lang)
	writeJSON(w, http.StatusOK, languageRequest{Language: string(lang)})
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	writeJSON(w, http.StatusOK, map[string]string{
		"key":      key,
		"language": string(s.locale.Language()),
		"text":     s.locale.T(key),
	})
}
