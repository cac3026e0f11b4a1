package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type textDecoder struct {
	name   string
	decode func([]byte) (string, error)
}

var errInvalidUTF8 = errors.New("invalid utf-8 sequence")

// textDecoders are tried in order; the first that succeeds wins.
var textDecoders = []textDecoder{
	{name: "utf-8-sig", decode: decodeUTF8Sig},
	{name: "utf-8", decode: decodeUTF8},
	{name: "latin-1", decode: decodeLatin1},
}

func decodeUTF8Sig(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errInvalidUTF8
	}
	return string(bytes.TrimPrefix(raw, utf8BOM)), nil
}

func decodeUTF8(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errInvalidUTF8
	}
	return string(raw), nil
}

func decodeLatin1(raw []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeText returns the text and the name of the encoding that decoded it.
func decodeText(raw []byte) (string, string, error) {
	var failures []string
	for _, d := range textDecoders {
		text, err := d.decode(raw)
		if err == nil {
			return text, d.name, nil
		}
		failures = append(failures, d.name+": "+err.Error())
	}
	return "", "", fmt.Errorf("%w: %s", ErrDecode, strings.Join(failures, "; "))
}

// splitLines splits on \n, \r\n and \r.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// removeBlankLines drops empty and whitespace-only lines and rejoins the rest
// with \n.
func removeBlankLines(text string) string {
	lines := splitLines(text)
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
