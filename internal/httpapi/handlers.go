package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/AffDk/spy-server/internal/hub"
	"github.com/AffDk/spy-server/internal/session"
	"github.com/AffDk/spy-server/internal/words"
)

type addWordRequest struct {
	Word string `json:"word"`
}

// AddWord extends the word pool at runtime. 201 on success, 409 for
// duplicates, 400 for anything unusable.
func AddWord(pool *words.Supplier, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addWordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}

		if pool.Has(req.Word) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": words.ErrDuplicateWord.Error()})
			return
		}

		switch err := pool.Add(req.Word); {
		case err == nil:
			writeJSON(w, http.StatusCreated, map[string]string{"word": req.Word})
		case errors.Is(err, words.ErrDuplicateWord):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, words.ErrInvalidWord):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Error("adding word failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store word"})
		}
	}
}

// SessionQR renders a join link for a live session as a PNG. Unknown codes
// are 404 so invite screens can stop polling once a session ends.
func SessionQR(h *hub.Hub, publicURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.GetSession{Code: code, Reply: reply}
		if <-reply == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		link := fmt.Sprintf("%s/?session=%s", publicURL, code)
		png, err := qrcode.Encode(link, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to render code", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
