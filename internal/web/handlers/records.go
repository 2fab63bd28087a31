package handlers

import (
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-registry/internal/store"
)

// RecordsHandler serves stored face records to matching consumers.
type RecordsHandler struct {
	reader store.Reader
}

// NewRecordsHandler creates a records handler. A nil reader disables the endpoint.
func NewRecordsHandler(reader store.Reader) *RecordsHandler {
	return &RecordsHandler{reader: reader}
}

// RecordsResponse is a page of records, newest first.
type RecordsResponse struct {
	Records []store.Record `json:"records"`
	Total   int            `json:"total"`
}

// List returns the most recent records. Query: limit, images=true to include image data.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		respondError(w, http.StatusNotImplemented, "record listing is not supported by this store")
		return
	}

	opts := store.ListOptions{}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = n
	}
	if s := r.URL.Query().Get("images"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid images flag")
			return
		}
		opts.IncludeImages = b
	}

	records, err := h.reader.List(r.Context(), opts.Normalize())
	if err != nil {
		log.WithError(err).Error("listing records")
		respondError(w, statusForError(err), err.Error())
		return
	}

	total, err := h.reader.Count(r.Context())
	if err != nil {
		log.WithError(err).Error("counting records")
		respondError(w, statusForError(err), err.Error())
		return
	}

	if records == nil {
		records = []store.Record{}
	}
	respondJSON(w, http.StatusOK, RecordsResponse{Records: records, Total: total})
}
