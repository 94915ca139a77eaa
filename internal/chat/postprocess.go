package chat

import (
	"regexp"
	"strings"
)

const (
	// softReplyCap is the target reply length; longer replies are truncated
	// with an ellipsis marker.
	softReplyCap = 700
	// hardReplyCap bounds pathological replies before the soft cap applies.
	hardReplyCap = 1200

	ellipsis = " ..."
)

var (
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	ackLead     = regexp.MustCompile(`(?i)^(got it|ok|okay|sure|understood|thanks)\b`)
)

// postProcessReply normalizes a raw assistant reply: whitespace trim, newline
// collapse, acknowledgement insertion and length capping.
func postProcessReply(reply string) string {
	out := strings.TrimSpace(reply)
	if out == "" {
		return out
	}

	out = newlineRuns.ReplaceAllString(out, "\n\n")
	return capLength(ensureAcknowledgement(out))
}

// postProcessOpener is postProcessReply without the acknowledgement step;
// an opener answers nothing, so there is nothing to acknowledge.
func postProcessOpener(reply string) string {
	out := strings.TrimSpace(reply)
	if out == "" {
		return out
	}

	out = newlineRuns.ReplaceAllString(out, "\n\n")
	return capLength(out)
}

// capLength counts runes so multibyte replies are not cut mid-character.
func capLength(reply string) string {
	runes := []rune(reply)
	if len(runes) > hardReplyCap {
		runes = runes[:hardReplyCap]
	}
	if len(runes) > softReplyCap {
		return string(runes[:softReplyCap]) + ellipsis
	}
	return string(runes)
}

// ensureAcknowledgement prepends a canned acknowledgement when the reply does
// not already open with one.
func ensureAcknowledgement(reply string) string {
	if ackLead.MatchString(reply) {
		return reply
	}
	return "Got it. " + reply
}
