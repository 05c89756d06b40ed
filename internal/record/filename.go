package record

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// TimestampLayout is the timestamp embedded in record filenames.
const TimestampLayout = "20060102-150405"

// Name is a parsed record filename.
type Name struct {
	Agent  string
	Time   time.Time
	Suffix int
	Ext    string
}

var fileNamePattern = regexp.MustCompile(`^(.+)-(\d{8}-\d{6})(?:-(\d+))?\.(toml|yaml|yml)$`)

// FileName builds "<agent>-<YYYYMMDD-HHMMSS>[-<n>]<ext>". A zero suffix is omitted.
func FileName(agent string, ts time.Time, suffix int, ext string) string {
	base := fmt.Sprintf("%s-%s", SanitizeAgent(agent), ts.UTC().Format(TimestampLayout))
	if suffix > 0 {
		base = fmt.Sprintf("%s-%d", base, suffix)
	}
	return base + ext
}

// ParseFileName parses a record filename. Names that do not match are
// reported with ok=false and are not records.
func ParseFileName(name string) (n Name, ok bool) {
	m := fileNamePattern.FindStringSubmatch(strings.ToLower(name))
	if m == nil {
		return Name{}, false
	}
	ts, err := time.Parse(TimestampLayout, m[2])
	if err != nil {
		return Name{}, false
	}
	n = Name{Agent: m[1], Time: ts, Ext: "." + m[4]}
	if m[3] != "" {
		n.Suffix, err = strconv.Atoi(m[3])
		if err != nil {
			return Name{}, false
		}
	}
	return n, true
}

// SanitizeAgent makes an agent name safe for use in a filename.
func SanitizeAgent(agent string) string {
	agent = strings.TrimSpace(strings.ToLower(agent))
	var b strings.Builder
	for _, c := range agent {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '.', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), "._-")
	if s == "" {
		return "unknown"
	}
	return s
}

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s is a well-formed record id.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Digest returns the hex BLAKE3-256 digest of a record file's bytes.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
