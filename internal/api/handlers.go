package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/tsubakiyo/warikan/internal/db"
	"github.com/tsubakiyo/warikan/internal/split"
)

// Images up to 10 MB; receipts photographed on phones stay well under this.
const maxImageBytes = 10 << 20

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)

	var req struct {
		GroupID *string `json:"group_id"`
	}
	if r.Body != nil {
		// Body is optional for session creation.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	sess, err := a.store.CreateSession(r.Context(), claims.UserID, req.GroupID)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": sess.ID,
		"creator_id": sess.CreatorID,
		"group_id":   sess.GroupID,
	})
}

// handleScan runs the receipt image through the model gateway. A per-session
// processing flag stops two concurrent scans from duplicating provider
// calls for the same session.
func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)
	sessionID := mux.Vars(r)["session_id"]

	sess, err := a.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if sess.CreatorID != claims.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	image, mimeType, languageHint, err := readScanInput(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ok, err := a.store.TryBeginProcessing(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "failed to lock session", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "session is already being processed", http.StatusConflict)
		return
	}
	// The flag must be cleared even when the client goes away mid-parse and
	// the request context is canceled; a stuck flag would 409 every later
	// scan for the session.
	cleanupCtx := context.WithoutCancel(r.Context())
	defer func() {
		if err := a.store.EndProcessing(cleanupCtx, sessionID); err != nil {
			log.Printf("failed to clear processing flag for session %s: %v", sessionID, err)
		}
	}()

	result := a.parser.ParseReceipt(r.Context(), image, mimeType, languageHint, sessionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type finalizeRequest struct {
	Participants []string         `json:"participants"`
	Items        []split.LineItem `json:"items"`
}

// handleFinalize turns the edited items plus roster into a settlement
// snapshot. Owner-only; validation is all-or-nothing; a repeat call
// overwrites the previous snapshot.
func (a *API) handleFinalize(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)
	sessionID := mux.Vars(r)["session_id"]

	sess, err := a.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	if sess.CreatorID != claims.UserID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	participants := make([]split.ParticipantInfo, 0, len(req.Participants))
	for _, id := range req.Participants {
		info, err := a.directory.Lookup(r.Context(), id)
		if err != nil {
			http.Error(w, fmt.Sprintf("unknown participant %q", id), http.StatusBadRequest)
			return
		}
		participants = append(participants, info)
	}

	result, err := split.Finalize(participants, req.Items)
	if err != nil {
		if errors.Is(err, split.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to compute allocation", http.StatusInternalServerError)
		return
	}

	snapshot := &split.Snapshot{
		SessionID:    sessionID,
		Participants: participants,
		Allocations:  result.Allocations,
		Totals:       result.Totals,
		FinalizedAt:  time.Now().UTC(),
	}
	if err := a.store.UpsertSettlement(r.Context(), snapshot); err != nil {
		// Computed but not persisted is not finalized.
		http.Error(w, "failed to persist settlement", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (a *API) handleGetSettlement(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	snapshot, err := a.store.SettlementBySession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "settlement not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load settlement", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

func (a *API) handleMySettlements(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value("claims").(*Claims)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	settlements, err := a.store.SettlementsByParticipant(r.Context(), claims.UserID, limit)
	if err != nil {
		http.Error(w, "failed to list settlements", http.StatusInternalServerError)
		return
	}
	if settlements == nil {
		settlements = []db.ParticipantSettlement{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(settlements)
}

// readScanInput accepts either a multipart form with an "image" file or the
// raw image bytes as the request body.
func readScanInput(r *http.Request) (image []byte, mimeType, languageHint string, err error) {
	languageHint = r.URL.Query().Get("lang")
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/") {
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return nil, "", "", fmt.Errorf("invalid multipart form")
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return nil, "", "", fmt.Errorf("missing image file")
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to read image")
		}
		if lang := r.FormValue("language"); lang != "" {
			languageHint = lang
		}
		mimeType = header.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		return data, mimeType, languageHint, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read request body")
	}
	if len(data) == 0 {
		return nil, "", "", fmt.Errorf("empty image")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, languageHint, nil
}
