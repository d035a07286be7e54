// Package vdf parses Valve's KeyValues text format, as found in
// Steam library files such as libraryfolders.vdf.
package vdf

import (
	"io"
	"strings"

	"github.com/nukeythenuke/torygg/pkg/errors"
)

// Parse reads a KeyValues document and flattens it into a map keyed by
// the slash-joined group path, e.g. "libraryfolders/0/path". Escape
// sequences \n, \t, \\ and \" are decoded. Unknown escapes are dropped.
func Parse(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIOFailure, "failed to read vdf document")
	}

	var (
		inQuotes bool
		escape   bool
		key      string
		value    strings.Builder
		path     []string
	)
	pairs := make(map[string]string)

	for _, ch := range string(data) {
		switch {
		case ch == '"' && !escape:
			if inQuotes {
				// A closing quote ends a token. The first token of a
				// pair is the key, the second completes the pair.
				if key == "" {
					key = value.String()
					value.Reset()
				} else {
					pairs[joinPath(path, key)] = value.String()
					key = ""
					value.Reset()
				}
			}
			inQuotes = !inQuotes

		case ch == '{' && !inQuotes:
			// A bare key before an opening brace names the group
			path = append(path, key)
			key = ""

		case ch == '}' && !inQuotes:
			if len(path) > 0 {
				path = path[:len(path)-1]
			}

		default:
			if escape {
				switch ch {
				case 'n':
					value.WriteByte('\n')
				case 't':
					value.WriteByte('\t')
				case '\\':
					value.WriteByte('\\')
				case '"':
					value.WriteByte('"')
				}
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if inQuotes {
				value.WriteRune(ch)
			}
		}
	}

	return pairs, nil
}

func joinPath(path []string, key string) string {
	if len(path) == 0 {
		return key
	}
	return strings.Join(path, "/") + "/" + key
}
