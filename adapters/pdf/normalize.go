package invoicepdf

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"time"
)

var (
	infoDatePattern   = regexp.MustCompile(`(/(?:CreationDate|ModDate)\s*\(D:)([0-9]{14})`)
	xmpDatePattern    = regexp.MustCompile(`(<xmp:(?:CreateDate|ModifyDate|MetadataDate)>)([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2})`)
	documentIDPattern = regexp.MustCompile(`(/ID\s*\[\s*<)([0-9A-Fa-f]+)(>\s*<)([0-9A-Fa-f]+)(>)`)
	xmpUUIDPattern    = regexp.MustCompile(`(uuid:)([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})`)
)

// NormalizePDF pins document timestamps to at and derives document IDs from
// seed. Every replacement keeps its byte length so xref offsets stay valid.
func NormalizePDF(pdf []byte, at time.Time, seed string) []byte {
	if len(pdf) == 0 {
		return pdf
	}
	at = at.UTC()
	infoDate := []byte(at.Format("20060102150405"))
	xmpDate := []byte(at.Format("2006-01-02T15:04:05"))
	digest := sha256.Sum256([]byte(seed + "|" + at.Format(time.RFC3339)))
	idHex := hex.EncodeToString(digest[:])

	out := append([]byte(nil), pdf...)
	out = infoDatePattern.ReplaceAllFunc(out, func(match []byte) []byte {
		return replaceTail(match, infoDate)
	})
	out = xmpDatePattern.ReplaceAllFunc(out, func(match []byte) []byte {
		return replaceTail(match, xmpDate)
	})
	out = documentIDPattern.ReplaceAllFunc(out, func(match []byte) []byte {
		parts := documentIDPattern.FindSubmatch(match)
		result := make([]byte, 0, len(match))
		result = append(result, parts[1]...)
		result = append(result, fitHex(idHex, len(parts[2]))...)
		result = append(result, parts[3]...)
		result = append(result, fitHex(idHex, len(parts[4]))...)
		result = append(result, parts[5]...)
		return result
	})
	out = xmpUUIDPattern.ReplaceAllFunc(out, func(match []byte) []byte {
		id := []byte(idHex[:32])
		uuid := make([]byte, 0, 36)
		uuid = append(uuid, id[0:8]...)
		uuid = append(uuid, '-')
		uuid = append(uuid, id[8:12]...)
		uuid = append(uuid, '-')
		uuid = append(uuid, id[12:16]...)
		uuid = append(uuid, '-')
		uuid = append(uuid, id[16:20]...)
		uuid = append(uuid, '-')
		uuid = append(uuid, id[20:32]...)
		return append(append([]byte(nil), match[:len("uuid:")]...), uuid...)
	})
	return out
}

// replaceTail overwrites the last len(value) bytes of match.
func replaceTail(match, value []byte) []byte {
	result := append([]byte(nil), match...)
	copy(result[len(result)-len(value):], value)
	return result
}

func fitHex(source string, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = source[i%len(source)]
	}
	return out
}
