package api

import (
	"bytes"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/export"
	"github.com/sells-group/places-catalog/internal/model"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.catalog.AllBusinesses(r.Context())
	if err != nil {
		s.log.Error("export: load businesses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export data")
		return
	}

	// Render fully before writing headers so a failure can still be a JSON error.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, items); err != nil {
		s.log.Error("export: render", zap.String("format", string(format)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export data")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *Server) handleAllData(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.AllBusinesses(r.Context())
	if err != nil {
		s.log.Error("all-data: load businesses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch data")
		return
	}
	if items == nil {
		items = []model.Business{}
	}
	writeJSON(w, http.StatusOK, items)
}
