package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cabanas/internal/events"
	"cabanas/internal/gateway"
	"cabanas/internal/metrics"
	"cabanas/internal/service"
)

// handleWebhook is the gateway's server-to-server push. The signature
// is verified before any read or mutation; internal failures answer
// 5xx so the gateway keeps retrying.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		if k == "s" {
			continue
		}
		params[k] = r.PostForm.Get(k)
	}
	signature := r.PostForm.Get("s")
	if !s.gw.VerifySignature(params, signature) {
		metrics.IncSignatureFailure()
		s.logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature mismatch")
		if s.bus != nil {
			_ = s.bus.PublishJSON(events.EventSignatureInvalid, map[string]string{
				"remote": r.RemoteAddr,
			})
		}
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	outcome, err := s.reconciler.HandleWebhook(r.Context(), token)
	if err != nil {
		s.logger.Error().Err(err).Msg("webhook processing failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": string(outcome)})
}

// handleReturn lands the customer's browser after the payment page.
// It always redirects; redirect parameters are never trusted as proof
// of payment.
func (s *HTTPServer) handleReturn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" && r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			token = strings.TrimSpace(r.PostForm.Get("token"))
		}
	}
	if token == "" {
		http.Redirect(w, r, "/reserva/error", http.StatusSeeOther)
		return
	}

	bookingID, outcome, err := s.reconciler.HandleReturn(r.Context(), token)
	if err != nil {
		s.logger.Error().Err(err).Msg("return processing failed")
		http.Redirect(w, r, "/reserva/error?token="+url.QueryEscape(token), http.StatusSeeOther)
		return
	}

	var page string
	switch outcome {
	case service.OutcomePaid, service.OutcomeDuplicate:
		page = "/reserva/confirmada"
	case service.OutcomeRejected:
		page = "/reserva/rechazada"
	case service.OutcomeCanceled:
		page = "/reserva/cancelada"
	default:
		page = "/reserva/pendiente"
	}

	target := fmt.Sprintf("%s?booking=%s&token=%s", page, url.QueryEscape(bookingID), url.QueryEscape(token))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleReconcileJob triggers a sweep on demand; cron hits this with
// the shared secret when the standalone reconciler binary is not used.
func (s *HTTPServer) handleReconcileJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if s.cfg.JobSecret == "" || r.Header.Get("x-job-secret") != s.cfg.JobSecret {
		writeError(w, http.StatusUnauthorized, "invalid job secret")
		return
	}

	summary := s.reconciler.RunSweep(r.Context())
	writeJSON(w, http.StatusOK, summary)
}

// handleMockConfirm drives the in-process gateway in mock mode so the
// whole payment loop can run locally and in tests.
func (s *HTTPServer) handleMockConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	mock, ok := s.gw.(*gateway.Mock)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	token := strings.TrimSpace(r.PostForm.Get("token"))
	action := strings.TrimSpace(r.PostForm.Get("action"))
	if token == "" || action == "" {
		writeError(w, http.StatusBadRequest, "token and action are required")
		return
	}

	if err := mock.Confirm(token, action); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.reconciler.HandleWebhook(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"result": string(outcome)})
}
