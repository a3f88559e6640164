// Package storage defines how uploaded files leave the process.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/rs/xid"
)

// Object is a file on its way to a bucket.
type Object struct {
	Name        string // client-supplied file name
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// Uploader stores an object and returns the public URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, obj Object) (string, error)
}

// ObjectKey derives a collision-free key from a client file name:
//
//	"../Mes Photos/vélo 1.JPG" → "cn1q0b3v1h5s73b8a2kg-v_lo_1.JPG"
//
// Only the base name survives and anything outside [A-Za-z0-9._-] becomes '_'.
func ObjectKey(name string) string {
	return xid.New().String() + "-" + SanitizeName(name)
}

// SanitizeName reduces a client file name to a safe base name.
func SanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == ".." {
		return "upload"
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
