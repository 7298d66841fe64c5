package sessionlog_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pagepilot-ai/pagepilot/api/schemas"
	"github.com/pagepilot-ai/pagepilot/internal/sessionlog"
)

func msg(category, text string) schemas.LogMessage {
	return schemas.LogMessage{Category: category, Message: text, Level: 1}
}

func TestFilterForOutput(t *testing.T) {
	t.Parallel()

	withAux := msg("action", "clicked the login button")
	withAux.Auxiliary = map[string]schemas.LogValue{
		"selector": {Value: `"#login"`, Type: "string"},
	}

	screenshotMsg := msg(schemas.LogCategoryScreenshot, "captured viewport")
	screenshotMsg.Auxiliary = map[string]schemas.LogValue{
		"image": {Value: "data:image/png;base64,iVBORw0KGgo...", Type: "string"},
	}

	oversized := msg("session", strings.Repeat("x", 6000))

	input := []schemas.LogMessage{
		msg("session", "session opened"),
		screenshotMsg,
		withAux,
		oversized,
		msg("session", "session closed"),
	}

	got := sessionlog.FilterForOutput(input)

	require.Len(t, got, 3)
	assert.Equal(t, "session opened", got[0].Message)
	assert.Equal(t, "clicked the login button", got[1].Message)
	assert.Equal(t, "session closed", got[2].Message, "relative order is preserved")

	for _, fl := range got {
		assert.NotContains(t, fl.Message, "data:image/")
		assert.LessOrEqual(t, len(fl.Message), 5000)
	}
}

func TestFilterForOutputMarkerVariants(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		msg  schemas.LogMessage
		kept bool
	}{
		{
			name: "plain diagnostic survives",
			msg:  msg("action", "typed into search box"),
			kept: true,
		},
		{
			name: "screenshot category dropped",
			msg:  msg("screenshot", "step 3"),
			kept: false,
		},
		{
			name: "inline data url dropped",
			msg:  msg("action", "rendered data:image/jpeg;attachment"),
			kept: false,
		},
		{
			name: "base64 blob in auxiliary dropped",
			msg: schemas.LogMessage{
				Category: "action",
				Message:  "uploaded file",
				Auxiliary: map[string]schemas.LogValue{
					"body": {Value: "payload;base64,AAAA", Type: "string"},
				},
			},
			kept: false,
		},
		{
			name: "mentioning the word screenshot in prose survives",
			msg:  msg("action", "user asked for a screenshot later"),
			kept: true,
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := sessionlog.FilterForOutput([]schemas.LogMessage{tt.msg})
			if tt.kept {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFilterForOutputBoundary(t *testing.T) {
	t.Parallel()

	// Serialized form, not raw message length, decides the size cut. An
	// auxiliary payload alone can push a short message over the ceiling.
	m := msg("session", "short")
	m.Auxiliary = map[string]schemas.LogValue{
		"dump": {Value: strings.Repeat("y", 5100), Type: "string"},
	}

	assert.Empty(t, sessionlog.FilterForOutput([]schemas.LogMessage{m}))
	assert.Empty(t, sessionlog.FilterForOutput(nil))
}

func TestCollectorConcurrentAppend(t *testing.T) {
	defer goleak.VerifyNone(t)

	collector := sessionlog.NewCollector()
	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				collector.Append(msg("session", "entry"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, collector.Len())

	// Snapshots are copies: truncating one must not disturb the buffer.
	snapshot := collector.Messages()
	require.Len(t, snapshot, writers*perWriter)
	snapshot[0].Message = "mutated"
	assert.Equal(t, "entry", collector.Messages()[0].Message)
}
