package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/mail"
)

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	if s.mailer == nil {
		writeError(w, http.StatusServiceUnavailable, "email is not configured")
		return
	}

	var msg mail.Message
	if err := decodeBody(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg.To = strings.TrimSpace(msg.To)
	if msg.To == "" || msg.Subject == "" || msg.Body == "" {
		writeError(w, http.StatusBadRequest, "email, subject and message are required")
		return
	}

	if err := s.mailer.Send(r.Context(), msg); err != nil {
		s.log.Error("send email", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email sent successfully"})
}
