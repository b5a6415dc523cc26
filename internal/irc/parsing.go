package irc

import (
	"path"
	"strings"

	"pkdindustries/forkingdongles/internal/model"
)

// CheckAddressed returns true if message starts with botNick followed by a separator or end of string.
func CheckAddressed(message, botNick string) bool {
	if botNick == "" {
		return false
	}
	if len(message) < len(botNick) || !strings.EqualFold(message[:len(botNick)], botNick) {
		return false
	}
	if len(message) == len(botNick) {
		return true
	}
	// Check that the next character is a separator
	next := message[len(botNick)]
	return next == ' ' || next == ':' || next == ','
}

// StripAddressed removes a leading "nick:" / "nick," / "nick " address from message.
func StripAddressed(message, botNick string) (string, bool) {
	if !CheckAddressed(message, botNick) {
		return message, false
	}
	rest := strings.TrimLeft(message[len(botNick):], ":, ")
	return rest, true
}

// CheckAdmin returns true if hostmask matches any pattern in adminList.
// Patterns may use * and ? wildcards and are compared case-insensitively.
// An empty list matches nobody.
func CheckAdmin(hostmask string, adminList []string) bool {
	mask := strings.ToLower(hostmask)
	for _, admin := range adminList {
		pattern := strings.ToLower(admin)
		if pattern == mask {
			return true
		}
		if ok, err := path.Match(pattern, mask); err == nil && ok {
			return true
		}
	}
	return false
}

// IsChannel returns true if target names a channel rather than a nick.
func IsChannel(target string) bool {
	return model.IsChannelName(target)
}

// ParseISupport splits RPL_ISUPPORT tokens into key/value pairs. Keys are
// upper-cased; negated tokens ("-KEY") are skipped.
func ParseISupport(tokens []string) map[string]string {
	features := make(map[string]string)
	for _, f := range tokens {
		if f == "" || strings.HasPrefix(f, "-") || strings.Contains(f, " ") {
			continue
		}
		key, value, _ := strings.Cut(f, "=")
		features[strings.ToUpper(key)] = value
	}
	return features
}
