package config

import "strings"

const (
	appNameVar   = "APP_NAME"
	envVar       = "ENV"
	folderEnvVar = "DATA_FOLDER"
	logLevelVar  = "LOG_LEVEL"
	logFormatVar = "LOG_FORMAT"
)

type EnvVars struct {
	src source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "School Portal")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.src.get(envVar, "DEV"))
}

func (e EnvVars) GetDataFolder() string {
	return e.src.get(folderEnvVar, "./data")
}

// GetLogLevel returns a zerolog level name (debug, info, warn, error).
func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.src.get(logLevelVar, "info"))
}

// GetLogFormat is either "console" or "json".
func (e EnvVars) GetLogFormat() string {
	if e.GetEnv() == "DEV" {
		return strings.ToLower(e.src.get(logFormatVar, "console"))
	}
	return strings.ToLower(e.src.get(logFormatVar, "json"))
}
