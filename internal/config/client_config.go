package config

import (
	"strings"
	"time"
)

const (
	baseURLVar        = "API_BASE_URL"
	requestTimeoutVar = "REQUEST_TIMEOUT"
	refreshPathVar    = "REFRESH_PATH"
	userAgentVar      = "USER_AGENT"
)

type ClientConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetRefreshPath() string
	GetUserAgent() string
}

type Client struct {
	src source
}

var _ ClientConfig = Client{}

// GetAPIBaseURL returns the backend base endpoint. Operation paths are
// resolved relative to it, so it always ends with a slash.
func (c Client) GetAPIBaseURL() string {
	base := c.src.get(baseURLVar, "http://localhost:5000/")
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (c Client) GetRequestTimeout() time.Duration {
	return c.src.duration(requestTimeoutVar, 15*time.Second)
}

func (c Client) GetRefreshPath() string {
	return strings.TrimPrefix(c.src.get(refreshPathVar, "auth/refresh"), "/")
}

func (c Client) GetUserAgent() string {
	return c.src.get(userAgentVar, "school-portal-client")
}

func (s source) duration(name string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s.get(name, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
