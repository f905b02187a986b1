package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// PeerIDRegex validates the shape of a peer ID returned by CreatePeer.
	PeerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// sdpLineRegex matches a single SDP line ("a=...", "v=0", ...). Offers
	// are not fully parsed here, only sanity-checked before being handed to
	// pion for the real parse.
	sdpLineRegex = regexp.MustCompile(`^[a-z]=.*$`)
)

// ValidateSDPOffer does a cheap sanity check on a client's offer body before
// it reaches pion's SDP unmarshaler, so malformed input is rejected with
// invalid_offer instead of a generic 500.
func ValidateSDPOffer(sdpType, sdp string) error {
	if sdpType != "offer" {
		return fmt.Errorf("type must be \"offer\", got %q", sdpType)
	}
	if strings.TrimSpace(sdp) == "" {
		return fmt.Errorf("sdp is required")
	}
	if len(sdp) > 1<<20 {
		return fmt.Errorf("sdp exceeds maximum size")
	}
	lines := strings.Split(strings.ReplaceAll(sdp, "\r\n", "\n"), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "v=") {
		return fmt.Errorf("sdp missing version line")
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		if !sdpLineRegex.MatchString(line) {
			return fmt.Errorf("sdp contains malformed line %q", line)
		}
	}
	return nil
}

// ValidateICECandidate checks the shape of a trickled candidate body. An
// empty Candidate string is the documented end-of-candidates marker and is
// always valid.
func ValidateICECandidate(candidate string, sdpMLineIndex *uint16) error {
	if candidate == "" {
		return nil
	}
	if len(candidate) > 4096 {
		return fmt.Errorf("candidate exceeds maximum size")
	}
	if !strings.HasPrefix(candidate, "candidate:") {
		return fmt.Errorf("candidate must start with \"candidate:\"")
	}
	if sdpMLineIndex != nil && *sdpMLineIndex > 31 {
		return fmt.Errorf("sdpMLineIndex out of range")
	}
	return nil
}

// ValidatePeerID validates a peer ID path parameter.
func ValidatePeerID(peerID string) error {
	if peerID == "" {
		return fmt.Errorf("peer ID is required")
	}
	if len(peerID) > 100 {
		return fmt.Errorf("peer ID is too long (max 100 characters)")
	}
	if !PeerIDRegex.MatchString(peerID) {
		return fmt.Errorf("invalid peer ID format")
	}
	return nil
}

// ValidateURL validates a configured URL, used for ICE server URLs and the
// optional stats sink / tracing collector endpoints.
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss", "stun", "stuns", "turn", "turns":
	default:
		return fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}
	host := u.Host
	switch u.Scheme {
	case "stun", "stuns", "turn", "turns":
		// ICE server URIs ("stun:host:port") have no "//" authority, so the
		// host is in the opaque part.
		if host == "" {
			host = u.Opaque
		}
	}
	if host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateBitrate validates a configured bitrate, in kbps.
func ValidateBitrate(bitrate int) error {
	if bitrate < 1 {
		return fmt.Errorf("bitrate must be at least 1 kbps")
	}
	if bitrate > 100000 {
		return fmt.Errorf("bitrate is too high (max 100000 kbps)")
	}
	return nil
}

// ValidatePortRange validates a WebRTC UDP port range.
func ValidatePortRange(min, max uint16) error {
	if min == 0 || max == 0 {
		return fmt.Errorf("port range bounds must be non-zero")
	}
	if min > max {
		return fmt.Errorf("port range min %d exceeds max %d", min, max)
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming.
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length.
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
