package sessionlog

import (
	"strings"

	json "github.com/json-iterator/go"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
)

// maxSerializedLen is the ceiling on a message's serialized size for it to
// stay in structured output.
const maxSerializedLen = 5000

// imageMarkers identify embedded image and screenshot payloads in a
// message's serialized form. Matching is substring-based on purpose: the
// payload may sit anywhere in the auxiliary data.
var imageMarkers = []string{
	"data:image/",
	"base64,",
	`"screenshot"`,
}

// FilterForOutput projects captured messages into the output shape, dropping
// any message that embeds an image/screenshot payload or whose serialized
// form exceeds the size ceiling. Relative order of retained messages is
// preserved. Messages that cannot be serialized are dropped as well.
func FilterForOutput(msgs []schemas.LogMessage) []schemas.FilteredLog {
	out := make([]schemas.FilteredLog, 0, len(msgs))
	for _, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if len(raw) > maxSerializedLen {
			continue
		}
		if containsImageMarker(string(raw)) {
			continue
		}
		out = append(out, schemas.FilteredLog{
			Category: msg.Category,
			Message:  msg.Message,
			Level:    msg.Level,
		})
	}
	return out
}

func containsImageMarker(serialized string) bool {
	for _, marker := range imageMarkers {
		if strings.Contains(serialized, marker) {
			return true
		}
	}
	return false
}
