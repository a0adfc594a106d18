package portal

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/school-portal/apiclient"
	errs "github.com/jrsteele09/school-portal/internal/errors"
)

type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
	ImageURL    string `json:"image,omitempty"`
}

// Image is an uploaded achievement picture.
type Image struct {
	FileName    string
	ContentType string
	Content     []byte
}

func (s *Service) ListAchievements(ctx context.Context) ([]Achievement, error) {
	achievements := make([]Achievement, 0)
	err := s.client.DoJSON(ctx, apiclient.Operation{
		Name:   "list achievements",
		Method: http.MethodGet,
		Path:   PathAchievementsList,
	}, &achievements)
	if err != nil {
		return nil, errs.Wrapf(err, "Service.ListAchievements")
	}
	return achievements, nil
}

// AddAchievement uploads a as multipart form data. image is optional.
func (s *Service) AddAchievement(ctx context.Context, a Achievement, image *Image) error {
	if strings.TrimSpace(a.Title) == "" {
		return errs.Wrapf(errs.ErrInvalidRequest, "Service.AddAchievement title required")
	}

	form := &apiclient.Multipart{
		Fields: map[string]string{"title": a.Title},
	}
	if a.Description != "" {
		form.Fields["description"] = a.Description
	}
	if a.Date != "" {
		form.Fields["date"] = a.Date
	}
	if image != nil {
		form.Files = append(form.Files, apiclient.FilePart{
			Field:       "image",
			FileName:    image.FileName,
			ContentType: image.ContentType,
			Content:     image.Content,
		})
	}

	err := s.client.DoJSON(ctx, apiclient.Operation{
		Name:      "add achievement",
		Method:    http.MethodPost,
		Path:      PathAchievementsAdd,
		Multipart: form,
	}, nil)
	if err != nil {
		return errs.Wrapf(err, "Service.AddAchievement")
	}
	return nil
}

// DeleteAchievement removes the achievement with the given title.
func (s *Service) DeleteAchievement(ctx context.Context, title string) error {
	if strings.TrimSpace(title) == "" {
		return errs.Wrapf(errs.ErrInvalidRequest, "Service.DeleteAchievement title required")
	}

	err := s.client.DoJSON(ctx, apiclient.Operation{
		Name:   "delete achievement",
		Method: http.MethodDelete,
		Path:   PathAchievements,
		Query:  url.Values{"title": {title}},
	}, nil)
	if err != nil {
		return errs.Wrapf(err, "Service.DeleteAchievement")
	}
	return nil
}
