// Package ipc carries JSON line requests between the CLI and a running musegen daemon.
package ipc

// Commands understood by the daemon.
const (
	CommandStatus   = "status"
	CommandGenerate = "generate"
	CommandSave     = "save"
	CommandPreview  = "preview"
)

type Request struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	Prompt  string `json:"prompt,omitempty"`
	Output  string `json:"output,omitempty"`
	Play    bool   `json:"play,omitempty"`
}

type Response struct {
	ID       string `json:"id,omitempty"`
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Category string `json:"category,omitempty"`
	Path     string `json:"path,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
}
