package memory

import "github.com/enjaz/request-service/internal/models"

func cloneService(s models.Service) models.Service {
	if s.Requirements != nil {
		reqs := make([]string, len(s.Requirements))
		copy(reqs, s.Requirements)
		s.Requirements = reqs
	}
	return s
}

func cloneRequest(r models.Request) models.Request {
	if r.Attachments != nil {
		att := make(map[string]string, len(r.Attachments))
		for k, v := range r.Attachments {
			att[k] = v
		}
		r.Attachments = att
	}
	return r
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		Agencies:      append([]models.Agency(nil), s.Agencies...),
		Messages:      append([]models.Message(nil), s.Messages...),
		StatusChanges: append([]models.StatusChange(nil), s.StatusChanges...),
	}
	if s.Services != nil {
		out.Services = make([]models.Service, len(s.Services))
		for i, svc := range s.Services {
			out.Services[i] = cloneService(svc)
		}
	}
	if s.Requests != nil {
		out.Requests = make([]models.Request, len(s.Requests))
		for i, r := range s.Requests {
			out.Requests[i] = cloneRequest(r)
		}
	}
	return out
}
