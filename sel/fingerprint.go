package sel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
)

// Fingerprint returns a stable hex digest of the normalized selection
// shape. Together with entity and action it keys the template cache:
// selections that normalize to the same tree and arguments share one
// compiled template.
func Fingerprint(entity, action string, ss Sels) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s", entity, action)
	hashSels(h, ss)
	return hex.EncodeToString(h.Sum(nil))
}

func hashSels(w io.Writer, ss Sels) {
	io.WriteString(w, "[")
	for _, s := range ss {
		io.WriteString(w, s.Key)
		if s.Nested {
			if len(s.Args) > 0 {
				keys := make([]string, 0, len(s.Args))
				for k := range s.Args {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				io.WriteString(w, "(")
				for _, k := range keys {
					fmt.Fprintf(w, "%s=%v;", k, s.Args[k])
				}
				io.WriteString(w, ")")
			}
			hashSels(w, s.Sub)
		}
		io.WriteString(w, " ")
	}
	io.WriteString(w, "]")
}
