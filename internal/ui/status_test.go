package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderStatusLine(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)

	tests := []struct {
		name string
		in   StatusLine
		want string
	}{
		{"connected", StatusLine{At: at, Connected: true, Profile: "Lab", Version: "8.0"}, "09:30:00 ● connected to Lab, version 8.0"},
		{"connected without version", StatusLine{Connected: true, Profile: "Lab"}, "● connected to Lab"},
		{"failed", StatusLine{Profile: "Lab", Error: "connection refused"}, "✗ Lab: connection refused"},
		{"disconnected", StatusLine{Profile: "Lab"}, "○ Lab disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderStatusLine(tt.in))
		})
	}
}
