package content

import (
	"encoding/base64"
	"strings"

	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.UGCPolicy()

// Sanitize removes unsafe HTML from user-supplied text (message bodies,
// usernames, bios, statuses, group metadata).
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// ValidInlineImage reports whether a data-URL payload decodes to something
// filetype recognizes as an image. Payloads that fail the check are dropped
// from the stored message rather than rejected.
func ValidInlineImage(dataURL string) bool {
	if dataURL == "" {
		return false
	}
	idx := strings.Index(dataURL, ";base64,")
	if idx < 0 || !strings.HasPrefix(dataURL, "data:image/") {
		return false
	}
	encoded := dataURL[idx+len(";base64,"):]
	// filetype only needs the first few hundred bytes to sniff the header.
	if len(encoded) > 512 {
		encoded = encoded[:512]
		encoded = encoded[:len(encoded)-len(encoded)%4]
	}
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	return filetype.IsImage(buf)
}
