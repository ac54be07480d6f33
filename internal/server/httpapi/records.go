package httpapi

import (
	"net/http"
	"strconv"

	"github.com/aliceout/nodea/internal/common"
	"github.com/aliceout/nodea/internal/server/models"
	"github.com/aliceout/nodea/internal/server/rules"
	"github.com/aliceout/nodea/internal/wire"
	"github.com/go-chi/chi/v5"
)

func toWire(r *models.Record) *wire.Record {
	return &wire.Record{
		ID:           r.ID,
		Collection:   r.Collection,
		ModuleUserID: r.ModuleUserID,
		Payload:      r.Payload,
		CipherIV:     r.CipherIV,
		Created:      r.Created,
		Updated:      r.Updated,
	}
}

// capability reads sid and d from the query string.
func capability(r *http.Request) rules.Params {
	q := r.URL.Query()
	return rules.Params{SID: q.Get(common.ParamModuleID), D: q.Get(common.ParamGuard)}
}

func intParam(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	page, err := s.records.List(r.Context(), chi.URLParam(r, "collection"), capability(r), intParam(r, "page"), intParam(r, "perPage"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items := make([]*wire.Record, 0, len(page.Items))
	for _, rec := range page.Items {
		items = append(items, toWire(rec))
	}
	writeJSON(w, http.StatusOK, wire.RecordPage{
		Page:       page.Page,
		PerPage:    page.PerPage,
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
		Items:      items,
	})
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), capability(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(rec))
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.records.Create(r.Context(), chi.URLParam(r, "collection"), &models.Record{
		ModuleUserID: req.ModuleUserID,
		Payload:      req.Payload,
		CipherIV:     req.CipherIV,
		Guard:        req.Guard,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWire(rec))
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	var req wire.UpdateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.records.Update(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), capability(r), models.RecordPatch{
		Payload:  req.Payload,
		CipherIV: req.CipherIV,
		Guard:    req.Guard,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(rec))
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), capability(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
