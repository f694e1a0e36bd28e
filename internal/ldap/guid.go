package ldap

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// GUIDBytesLength is the size of a binary objectGUID.
const GUIDBytesLength = 16

// DecodeGUID converts an objectGUID to its canonical string form.
// Active Directory stores the first three groups little-endian:
//   - bytes 0-3 (Data1) reversed
//   - bytes 4-5 (Data2) reversed
//   - bytes 6-7 (Data3) reversed
//   - bytes 8-15 (Data4) as is
func DecodeGUID(guidBytes []byte) (string, error) {
	if len(guidBytes) != GUIDBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", GUIDBytesLength, len(guidBytes))
	}

	standard := make([]byte, GUIDBytesLength)
	standard[0], standard[1], standard[2], standard[3] = guidBytes[3], guidBytes[2], guidBytes[1], guidBytes[0]
	standard[4], standard[5] = guidBytes[5], guidBytes[4]
	standard[6], standard[7] = guidBytes[7], guidBytes[6]
	copy(standard[8:], guidBytes[8:])

	id, err := uuid.FromBytes(standard)
	if err != nil {
		return "", fmt.Errorf("failed to decode GUID: %w", err)
	}
	return id.String(), nil
}

// extractGUID reads objectGUID from entry. A textual GUID is accepted as is.
func extractGUID(entry *ldap.Entry) (string, error) {
	raw := entry.GetRawAttributeValue("objectGUID")
	if len(raw) == 0 {
		return "", nil
	}
	if len(raw) != GUIDBytesLength {
		if id, err := uuid.Parse(string(raw)); err == nil {
			return id.String(), nil
		}
	}
	return DecodeGUID(raw)
}
