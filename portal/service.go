// Package portal exposes the school portal backend operations on top of the
// authenticated API client.
package portal

import (
	"context"

	"github.com/jrsteele09/school-portal/apiclient"
	"github.com/jrsteele09/school-portal/sessions"
)

// Executor runs backend operations. *apiclient.Client satisfies it.
type Executor interface {
	DoJSON(ctx context.Context, op apiclient.Operation, out any) error
}

// Session is the credential store login and logout write to.
type Session interface {
	SetCredentials(c sessions.Credentials)
	Logout()
}

// Endpoint paths relative to the API base URL.
const (
	PathLogin            = "api/Teacher"
	PathProjects         = "api/Projects_Information"
	PathAchievements     = "api/Achivments"
	PathAchievementsList = "api/Achivments/get"
	PathAchievementsAdd  = "api/Achivments/add"
)

type Service struct {
	client  Executor
	session Session
}

func NewService(client Executor, session Session) *Service {
	return &Service{
		client:  client,
		session: session,
	}
}
