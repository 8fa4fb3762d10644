// Package config owns the musegen INI store and the typed settings derived from it.
package config

import "time"

// Section names present in every config document.
const (
	SectionModelScope = "modelscope"
	SectionApp        = "app"
)

// Transport names accepted by modelscope.transport.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Config is the typed runtime view materialized from the store.
type Config struct {
	Remote RemoteConfig
	App    AppConfig
}

// RemoteConfig describes how to reach and address the remote pipeline service.
type RemoteConfig struct {
	Token         string
	ModelID       string
	Revision      string
	Device        string
	Endpoint      string
	Transport     string
	CallSignature string // empty means negotiate on first call
	Timeout       time.Duration
}

// AppConfig carries front-end defaults and local file locations.
type AppConfig struct {
	DefaultSavePath string
	WindowWidth     int
	WindowHeight    int
	LogDir          string
	TempFile        string
	LogLevel        string
	Player          CommandConfig
	Notify          NotifyConfig
}

// NotifyConfig controls desktop notifications and audio cues on completion.
type NotifyConfig struct {
	Enable    bool
	Sound     bool
	AppName   string
	TimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal problem found while materializing settings.
type Warning struct {
	Key     string
	Message string
}
