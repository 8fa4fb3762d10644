package hub

import (
	"encoding/base64"
	"strings"

	"github.com/rbright/musegen/internal/audio"
	"github.com/tidwall/gjson"
)

// outputPaths lists where historical response shapes put the audio.
var outputPaths = []string{
	FieldOutputAudio,
	"Data." + FieldOutputAudio,
	"output." + FieldOutputAudio,
}

// DecodeOutput extracts the audio result from a call response document.
// The audio is either a base64 encoded file with a sibling "format", or an
// object {samples, channels, sample_rate} carrying a raw buffer.
func DecodeOutput(body []byte) (audio.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, &Error{Op: "call", Message: "response is not valid JSON"}
	}
	root := gjson.ParseBytes(body)

	for _, path := range outputPaths {
		value := root.Get(path)
		if !value.Exists() || value.Type == gjson.Null {
			continue
		}
		prefix := strings.TrimSuffix(path, FieldOutputAudio)

		if value.IsObject() {
			return decodeBuffer(value)
		}

		payload := strings.TrimSpace(value.String())
		if payload == "" {
			return nil, &Error{Op: "call", Message: "output_audio is empty"}
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, &Error{Op: "call", Message: "output_audio is not base64", Err: err}
		}
		return &audio.Encoded{
			Data:       data,
			Format:     root.Get(prefix + "format").String(),
			SampleRate: int(root.Get(prefix + FieldSampleRate).Int()),
		}, nil
	}

	return nil, &Error{Op: "call", Message: "response carries no output_audio"}
}

func decodeBuffer(value gjson.Result) (audio.Result, error) {
	raw := value.Get("samples")
	if !raw.IsArray() {
		return nil, &Error{Op: "call", Message: "output_audio.samples is not an array"}
	}
	items := raw.Array()
	samples := make([]float32, len(items))
	for i, item := range items {
		samples[i] = float32(item.Float())
	}

	channels := int(value.Get("channels").Int())
	if channels <= 0 {
		channels = 1
	}
	return &audio.Buffer{
		Samples:    samples,
		Channels:   channels,
		SampleRate: int(value.Get(FieldSampleRate).Int()),
	}, nil
}
