package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/school-portal/apiclient"
	errs "github.com/jrsteele09/school-portal/internal/errors"
)

// Status values of a project request as shown in the orders table.
const (
	ProjectStatusPending  = "pending"
	ProjectStatusAccepted = "accepted"
	ProjectStatusRejected = "rejected"
	ProjectStatusDone     = "done"
)

// ProjectRequest is a lead submitted through the "apply" form.
type ProjectRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	ProjectType string `json:"projectType,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

type statusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Service) SubmitProjectRequest(ctx context.Context, req ProjectRequest) (*ProjectRequest, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, errs.Wrapf(errs.ErrInvalidRequest, "Service.SubmitProjectRequest name and email required")
	}

	var created ProjectRequest
	err := s.client.DoJSON(ctx, apiclient.Operation{
		Name:   "submit project request",
		Method: http.MethodPost,
		Path:   PathProjects,
		Body:   req,
	}, &created)
	if err != nil {
		return nil, errs.Wrapf(err, "Service.SubmitProjectRequest")
	}
	return &created, nil
}

func (s *Service) ListProjectRequests(ctx context.Context) ([]ProjectRequest, error) {
	requests := make([]ProjectRequest, 0)
	err := s.client.DoJSON(ctx, apiclient.Operation{
		Name:   "list project requests",
		Method: http.MethodGet,
		Path:   PathProjects,
	}, &requests)
	if err != nil {
		return nil, errs.Wrapf(err, "Service.ListProjectRequests")
	}
	return requests, nil
}

func (s *Service) UpdateProjectRequestStatus(ctx context.Context, id, status string) error {
	if id == "" || status == "" {
		return errs.Wrapf(errs.ErrInvalidRequest, "Service.UpdateProjectRequestStatus id and status required")
	}

	err := s.client.DoJSON(ctx, apiclient.Operation{
		Name:   "update project request status",
		Method: http.MethodPut,
		Path:   PathProjects,
		Body:   statusUpdate{ID: id, Status: status},
	}, nil)
	if err != nil {
		return errs.Wrapf(err, "Service.UpdateProjectRequestStatus")
	}
	return nil
}
