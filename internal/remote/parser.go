package remote

import (
	"strings"
)

const (
	markerConnected = "connected successfully"
	markerVersion   = "version:"
	markerError     = "error:"
)

// ConnectOutput is what a connect or test-connection operation reported.
type ConnectOutput struct {
	Connected bool
	Version   string
	Error     string
}

// ParseConnectOutput reads the text markers a connect script prints:
//
//	Connected successfully
//	Version: 8.0.2
//	Error: <message>
//
// Markers are matched at the start of a line, case-insensitively. An Error
// line wins over a success line. Output with neither counts as a failure
// and the first non-empty line becomes the message.
func ParseConnectOutput(text string) ConnectOutput {
	var (
		out       ConnectOutput
		firstLine string
	)

	for _, line := range lines(text) {
		if firstLine == "" {
			firstLine = line
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, markerConnected):
			out.Connected = true
		case strings.HasPrefix(lower, markerVersion) && out.Version == "":
			out.Version = strings.TrimSpace(line[len(markerVersion):])
		}
	}

	switch msg := ErrorMarkers(text); {
	case msg != "":
		out.Connected = false
		out.Error = msg
	case out.Connected:
	case firstLine == "":
		out.Error = "Empty response from server"
	default:
		out.Error = "Unexpected response from server: " + firstLine
	}
	return out
}

// ErrorMarkers returns the messages of all Error lines in text, joined
// with "; ", or "" when there are none.
func ErrorMarkers(text string) string {
	var msgs []string
	for _, line := range lines(text) {
		if strings.HasPrefix(strings.ToLower(line), markerError) {
			if msg := strings.TrimSpace(line[len(markerError):]); msg != "" {
				msgs = append(msgs, msg)
			}
		}
	}
	return strings.Join(msgs, "; ")
}

// lines splits text into trimmed, non-empty lines.
func lines(text string) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		if line := strings.TrimSpace(raw); line != "" {
			out = append(out, line)
		}
	}
	return out
}
