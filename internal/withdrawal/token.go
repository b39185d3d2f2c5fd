package withdrawal

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback data prefixes of the admin decision buttons
const (
	ApprovePrefix = "wd_ok:"
	RejectPrefix  = "wd_no:"
)

// maxCallbackData is the Telegram limit on inline button data
const maxCallbackData = 64

// ApproveToken encodes the request id together with the amount shown to
// the admin. The requester is read from the stored request.
func ApproveToken(id string, amount int64) string {
	return fmt.Sprintf("%s%s:%d", ApprovePrefix, id, amount)
}

// RejectToken encodes the request id
func RejectToken(id string) string {
	return RejectPrefix + id
}

// ParseApproveToken decodes an ApproveToken
func ParseApproveToken(data string) (id string, amount int64, err error) {
	rest, ok := strings.CutPrefix(data, ApprovePrefix)
	if !ok {
		return "", 0, fmt.Errorf("not an approve token: %q", data)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, fmt.Errorf("malformed approve token: %q", data)
	}
	if amount, err = strconv.ParseInt(parts[1], 10, 64); err != nil || amount <= 0 {
		return "", 0, fmt.Errorf("malformed approve token: %q", data)
	}
	return parts[0], amount, nil
}

// ParseRejectToken decodes a RejectToken
func ParseRejectToken(data string) (string, error) {
	id, ok := strings.CutPrefix(data, RejectPrefix)
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", fmt.Errorf("malformed reject token: %q", data)
	}
	return id, nil
}
