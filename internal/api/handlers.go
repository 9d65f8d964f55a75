package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sapliy/editorial-notifications/internal/notification"
	"github.com/sapliy/editorial-notifications/internal/notification/handlers"
	"github.com/sapliy/editorial-notifications/pkg/jsonutil"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if c.healthy() {
			checks[c.name] = "ok"
			continue
		}
		checks[c.name] = "unavailable"
		status, code = "degraded", http.StatusServiceUnavailable
	}
	jsonutil.WriteJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func queryInt(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func parseLevel(s string) (notification.Level, error) {
	switch s {
	case "":
		return 0, nil
	case "trivial":
		return notification.LevelTrivial, nil
	case "normal":
		return notification.LevelNormal, nil
	case "task":
		return notification.LevelTask, nil
	}
	return 0, errors.New("level must be trivial, normal or task")
}

// statusOf maps engine errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, notification.ErrNotFound), errors.Is(err, handlers.ErrMissingEntity):
		return http.StatusNotFound
	case errors.Is(err, notification.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, notification.ErrNotSubscribable), errors.Is(err, handlers.ErrUnexpectedAssoc):
		return http.StatusBadRequest
	case errors.Is(err, notification.ErrMisconfiguredType), errors.Is(err, notification.ErrUnsupportedType):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
		s.logger.Error("request failed", "error", err, "request_id", w.Header().Get("X-Request-ID"))
	}
	jsonutil.WriteErrorJSON(w, status, msg)
}

type listResponse struct {
	Notifications []notification.Displayed `json:"notifications"`
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	contextID, err := queryInt(r, "context_id")
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	level, err := parseLevel(r.URL.Query().Get("level"))
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.engine.Display(r.Context(), userID(r.Context()), contextID, level)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []notification.Displayed{}
	}
	jsonutil.WriteJSON(w, http.StatusOK, listResponse{Notifications: list})
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	contextID, err := queryInt(r, "context_id")
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	prefs, err := s.engine.Preferences(r.Context(), userID(r.Context()), contextID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, prefs)
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	contextID, err := queryInt(r, "context_id")
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	var body notification.PreferenceSet
	if err := jsonutil.DecodeJSON(r, &body); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.SetPreferences(r.Context(), userID(r.Context()), contextID, body); err != nil {
		s.writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": notification.Text("common.changesSaved", nil),
	})
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contextID, err := queryInt(r, "context")
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	uid, err := queryInt(r, "user")
	if err != nil || uid == 0 {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "user is required")
		return
	}
	notificationID, token := q.Get("notification"), q.Get("token")
	if notificationID == "" || token == "" {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "notification and token are required")
		return
	}
	t, err := s.engine.Unsubscribe(r.Context(), token, contextID, uid, notificationID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{"unsubscribed": t})
}

type reconcileRequest struct {
	ContextID   int64               `json:"context_id"`
	ActorUserID int64               `json:"actor_user_id"`
	Types       []notification.Type `json:"types"`
	UserIDs     []int64             `json:"user_ids"`
	AssocType   string              `json:"assoc_type"`
	AssocID     int64               `json:"assoc_id"`
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request) {
	var body reconcileRequest
	if err := jsonutil.DecodeJSON(r, &body); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Types) == 0 || body.AssocID == 0 {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "types and assoc_id are required")
		return
	}
	assocType, err := notification.ParseAssocType(body.AssocType)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	req := notification.Requester{ContextID: body.ContextID, ActorUserID: body.ActorUserID}
	if err := s.engine.UpdateState(r.Context(), req, body.Types, body.UserIDs, assocType, body.AssocID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
