package websocket

import (
	"fmt"
	"slices"
	"strings"

	"github.com/OldStager01/press-downtime/pkg/models"
)

// filter selects the frames a client receives. A nil machineID accepts
// every machine; an empty channel set accepts every channel.
type filter struct {
	machineID *int64
	channels  map[MessageType]bool
}

func newFilter(machineID *int64, channels []MessageType) (filter, error) {
	f := filter{machineID: machineID}
	for _, ch := range channels {
		if !slices.Contains(streamed, ch) {
			return filter{}, fmt.Errorf("%w: unknown channel %q", models.ErrInvalidInput, ch)
		}
		if f.channels == nil {
			f.channels = make(map[MessageType]bool)
		}
		f.channels[ch] = true
	}
	return f, nil
}

// parseChannels splits a comma separated channels query value.
func parseChannels(raw string) []MessageType {
	var out []MessageType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, MessageType(part))
		}
	}
	return out
}

func (f filter) wants(channel MessageType) bool {
	return len(f.channels) == 0 || f.channels[channel]
}

func (f filter) channelList() []MessageType {
	if len(f.channels) == 0 {
		return streamed
	}
	out := make([]MessageType, 0, len(f.channels))
	for _, ch := range streamed {
		if f.channels[ch] {
			out = append(out, ch)
		}
	}
	return out
}
