package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineBytes bounds one request or response line.
const maxLineBytes = 1 << 20

// writeLine encodes v as one newline-terminated JSON document.
func writeLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// readLine decodes the next newline-terminated JSON document into v.
// what names the payload in errors ("request" or "response").
func readLine(r io.Reader, what string, v any) error {
	reader := bufio.NewReaderSize(io.LimitReader(r, maxLineBytes), 4096)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("read %s: %w", what, err)
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}
