package config

import "path/filepath"

const (
	DefaultModelID        = "damo/audio_diff_rhythm_text_to_music"
	DefaultRevision       = "v1.0.0"
	DefaultDevice         = "cpu"
	DefaultEndpoint       = "https://www.modelscope.cn"
	DefaultTimeoutSeconds = 300
	DefaultWindowWidth    = 650
	DefaultWindowHeight   = 320
	DefaultLogDir         = "logs"
	DefaultPlayerCmd      = "pw-play --media-role Music"
	DefaultLogLevel       = "info"
	DefaultNotifyAppName  = "musegen"
	DefaultNotifyTimeout  = 4000
)

// DefaultSavePath is the unexpanded save location offered to users.
func DefaultSavePath() string {
	return filepath.Join("~", "Desktop", "musegen.wav")
}

type defaultEntry struct {
	section string
	key     string
	value   string
}

// defaultDocument is written verbatim the first time a config path is opened.
func defaultDocument() []defaultEntry {
	return []defaultEntry{
		{SectionModelScope, "token", ""},
		{SectionModelScope, "model_id", DefaultModelID},
		{SectionModelScope, "device", DefaultDevice},
		{SectionModelScope, "model_revision", DefaultRevision},
		{SectionModelScope, "endpoint", DefaultEndpoint},
		{SectionModelScope, "transport", TransportHTTP},
		{SectionApp, "default_save_path", DefaultSavePath()},
		{SectionApp, "window_width", "650"},
		{SectionApp, "window_height", "320"},
		{SectionApp, "log_dir", DefaultLogDir},
	}
}
