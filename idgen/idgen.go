// Package idgen generates identifiers: tab ids, live session ids and custom
// script job ids.
//
// Constructors that need ids take a Generator, so tests can substitute a
// deterministic one.
package idgen

import (
	"crypto/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator of base-36 ids of the given length.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of time-sortable RFC 9562 UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends prefix to every id of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Job returns the job id Generator: "<unix millis>-<5 base-36 chars>",
// with millis read from now.
func Job(now func() time.Time) Generator {
	suffix := NanoID(5)
	return func() string {
		return strconv.FormatInt(now().UnixMilli(), 10) + "-" + suffix()
	}
}

// Sequence returns a deterministic Generator "<prefix>1", "<prefix>2", ...
// It is not safe for concurrent use.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

// Default generates tab and session ids.
var Default Generator = UUIDv7()

// New produces an id using Default.
func New() string {
	return Default()
}
