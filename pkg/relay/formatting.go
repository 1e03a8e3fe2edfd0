// Copyright 2024-2026 Aiku AI

package relay

import (
	"fmt"
	"strconv"
	"strings"
)

// formatRelayed renders a source channel message the way it is posted on
// the destination.
func formatRelayed(nick, text string) string {
	return "<" + nick + "> " + text
}

// formatChannelList renders channels as a bracketed list of quoted names.
func formatChannelList(channels []string) string {
	quoted := make([]string, len(channels))
	for i, ch := range channels {
		quoted[i] = strconv.Quote(ch)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// formatInfo is the !info reply.
func formatInfo(channels []string, queued int) string {
	return fmt.Sprintf("chans %s queue %d", formatChannelList(channels), queued)
}
