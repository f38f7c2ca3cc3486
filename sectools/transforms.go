// Package sectools holds the non-AI half of the security playground: pure
// synchronous transforms applied directly to input. Malformed input produces
// a replacement output string, never an error to the caller, so the UI can
// run them on every keystroke.
package sectools

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Kind names one transform. The set is closed; Apply dispatches on it.
type Kind string

const (
	Base64Encode Kind = "base64_encode"
	Base64Decode Kind = "base64_decode"
	HexEncode    Kind = "hex_encode"
	HexDecode    Kind = "hex_decode"
	URLEncode    Kind = "url_encode"
	URLDecode    Kind = "url_decode"
	SHA256Sum    Kind = "sha256"
	SHA1Sum      Kind = "sha1"
	MD5Sum       Kind = "md5"
	JSONFormat   Kind = "json_format"
)

var transforms = map[Kind]func(string) string{
	Base64Encode: func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	},
	Base64Decode: func(s string) string {
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return "Invalid Base64 input"
		}
		return string(b)
	},
	HexEncode: func(s string) string {
		return hex.EncodeToString([]byte(s))
	},
	HexDecode: func(s string) string {
		b, err := hex.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return "Invalid hex input"
		}
		return string(b)
	},
	URLEncode: func(s string) string {
		return url.QueryEscape(s)
	},
	URLDecode: func(s string) string {
		out, err := url.QueryUnescape(s)
		if err != nil {
			return "Invalid URL-encoded input"
		}
		return out
	},
	SHA256Sum: func(s string) string {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	},
	SHA1Sum: func(s string) string {
		sum := sha1.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	},
	MD5Sum: func(s string) string {
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	},
	JSONFormat: func(s string) string {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
			return "Invalid JSON input"
		}
		return buf.String()
	},
}

// Apply runs one transform. Unknown kinds report themselves in the output,
// matching the replacement-string error convention.
func Apply(kind Kind, input string) string {
	fn, ok := transforms[kind]
	if !ok {
		return fmt.Sprintf("Unknown transform: %s", kind)
	}
	return fn(input)
}

// Kinds lists the available transforms in stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(transforms))
	for k := range transforms {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
