package api

import (
	"errors"
	"net/http"

	"github.com/novamet/tradesite/pkg/httputil"
	"github.com/novamet/tradesite/pkg/leads"
)

// createLead accepts the public inquiry form
func (s *Server) createLead(w http.ResponseWriter, r *http.Request) {
	var input leads.CreateInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	lead, err := s.leads.Create(r.Context(), input, r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"lead_id": lead.ID,
		"source":  lead.Source,
	}).Info("lead created")
	httputil.WriteCreated(w, lead)
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid limit")
		return
	}

	filter := leads.ListFilter{
		Status:     leads.Status(r.URL.Query().Get("status")),
		AssignedTo: r.URL.Query().Get("assignedTo"),
		Limit:      limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httputil.WriteBadRequest(w, "unknown status")
		return
	}

	result, err := s.leads.List(r.Context(), filter)
	if err != nil {
		s.logger.WithError(err).Error("failed to list leads")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	lead, err := s.leads.Get(r.Context(), id)
	if errors.Is(err, leads.ErrNotFound) {
		httputil.WriteNotFound(w, "lead not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to get lead")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, lead)
}

func (s *Server) updateLead(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var input leads.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	lead, err := s.leads.Update(r.Context(), id, input, r)
	if errors.Is(err, leads.ErrNotFound) {
		httputil.WriteNotFound(w, "lead not found")
		return
	}
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteSuccess(w, lead)
}

func (s *Server) assignLead(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var input struct {
		AssignedTo string `json:"assignedTo"`
	}
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if input.AssignedTo == "" {
		httputil.WriteBadRequest(w, "assignedTo is required")
		return
	}

	lead, err := s.leads.Assign(r.Context(), id, input.AssignedTo, r)
	if errors.Is(err, leads.ErrNotFound) {
		httputil.WriteNotFound(w, "lead not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to assign lead")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, lead)
}

func (s *Server) deleteLead(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	err := s.leads.Delete(r.Context(), id, r)
	if errors.Is(err, leads.ErrNotFound) {
		httputil.WriteNotFound(w, "lead not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to delete lead")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}
