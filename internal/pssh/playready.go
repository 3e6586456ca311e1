package pssh

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"mediaseal/internal/drm"
)

// playReadyObject builds a PlayReady Object (PRO) holding a single rights
// management header record with the key IDs and cipher algorithm.
func playReadyObject(protection drm.ProtectionScheme, keyIDs [][]byte) []byte {
	header := encodeUTF16LE(rightsManagementHeader(protection, keyIDs))

	// PRO: total length, record count, then one record of type 1
	// (rights management header).
	record := make([]byte, 4, 4+len(header))
	binary.LittleEndian.PutUint16(record[0:2], 1)
	binary.LittleEndian.PutUint16(record[2:4], uint16(len(header)))
	record = append(record, header...)

	out := make([]byte, 6, 6+len(record))
	binary.LittleEndian.PutUint32(out[0:4], uint32(6+len(record)))
	binary.LittleEndian.PutUint16(out[4:6], 1)
	return append(out, record...)
}

func rightsManagementHeader(protection drm.ProtectionScheme, keyIDs [][]byte) string {
	algorithm := "AESCTR"
	if protection.IsCBC() {
		algorithm = "AESCBC"
	}

	var kids strings.Builder
	for _, keyID := range keyIDs {
		kids.WriteString(fmt.Sprintf("<KID>%s</KID>", base64.StdEncoding.EncodeToString(keyIDToGUID(keyID))))
	}

	return fmt.Sprintf(
		`<WRMHEADER xmlns="http://schemas.microsoft.com/DRM/2007/03/PlayReadyHeader" version="4.0.0.0">`+
			`<DATA><PROTECTINFO><KEYLEN>16</KEYLEN><ALGID>%s</ALGID></PROTECTINFO>%s</DATA></WRMHEADER>`,
		algorithm, kids.String(),
	)
}

// keyIDToGUID converts a big-endian 16-byte key ID to the mixed-endian
// GUID layout PlayReady headers use.
func keyIDToGUID(keyID []byte) []byte {
	if len(keyID) != 16 {
		out := make([]byte, 16)
		copy(out, keyID)
		keyID = out
	}
	guid := make([]byte, 16)
	guid[0], guid[1], guid[2], guid[3] = keyID[3], keyID[2], keyID[1], keyID[0]
	guid[4], guid[5] = keyID[5], keyID[4]
	guid[6], guid[7] = keyID[7], keyID[6]
	copy(guid[8:], keyID[8:16])
	return guid
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, unit := range units {
		binary.LittleEndian.PutUint16(out[2*i:], unit)
	}
	return out
}
