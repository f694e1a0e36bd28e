package ldap

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
)

// minSIDLength is the revision, sub-authority count and identifier authority.
const minSIDLength = 8

// DecodeSID converts a binary objectSid to its S-1-5-21-... form.
func DecodeSID(binarySID []byte) (sid string, err error) {
	if len(binarySID) < minSIDLength {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(binarySID))
	}
	if want := minSIDLength + 4*int(binarySID[1]); len(binarySID) < want {
		return "", fmt.Errorf("binary SID truncated: expected %d bytes, got %d", want, len(binarySID))
	}

	defer func() {
		if r := recover(); r != nil {
			sid, err = "", fmt.Errorf("malformed binary SID: %v", r)
		}
	}()

	return objectsid.Decode(binarySID).String(), nil
}

// extractSID reads objectSid from entry. Entries built in tests may carry
// the SID in string form already.
func extractSID(entry *ldap.Entry) (string, error) {
	raw := entry.GetRawAttributeValue("objectSid")
	if len(raw) == 0 {
		return "", nil
	}
	if strings.HasPrefix(string(raw), "S-") {
		return string(raw), nil
	}
	return DecodeSID(raw)
}
