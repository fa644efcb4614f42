package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	perrors "github.com/harun/plugincheck/pkg/errors"
)

// SuccessLine is printed once every invariant holds.
const SuccessLine = "Successfully validated manifest invariants"

// ErrValidationFailed is returned once violations have been reported.
var ErrValidationFailed = errors.New("manifest invariants violated")

// Subject is the kind of document a progress line refers to.
type Subject string

const (
	SubjectPlugin   Subject = "plugin"
	SubjectContract Subject = "contract"
)

// Reporter writes progress, failure and success lines. It is safe for
// concurrent use.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// New creates a reporter. Nil writers default to stdout and stderr.
func New(out, errOut io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Reporter{out: out, errOut: errOut}
}

// Discard returns a reporter that drops everything.
func Discard() *Reporter {
	return New(io.Discard, io.Discard)
}

// Progress announces that a document is about to be validated.
func (r *Reporter) Progress(subject Subject, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Validating %q %s\n", id, subject)
}

// Success prints the success line.
func (r *Reporter) Success() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, SuccessLine)
}

// Failure prints one line per violation and returns ErrValidationFailed.
func (r *Reporter) Failure(errs ...error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, err := range errs {
		if err == nil {
			continue
		}
		fmt.Fprintln(r.errOut, Format(err))
	}
	return ErrValidationFailed
}

// Format renders a violation as "<plugin>[@<version>][ <arch>]: <message>".
// Contract violations use the contract id in place of the plugin id and
// violations without either fall back to the manifest path.
func Format(err error) string {
	if err == nil {
		return ""
	}

	var prefix strings.Builder
	plugin := perrors.StringField(err, perrors.KeyPlugin)
	contract := perrors.StringField(err, perrors.KeyContract)
	version := perrors.StringField(err, perrors.KeyVersion)
	arch := perrors.StringField(err, perrors.KeyArch)

	switch {
	case plugin != "":
		prefix.WriteString(plugin)
	case contract != "":
		prefix.WriteString(contract)
	default:
		prefix.WriteString(perrors.StringField(err, perrors.KeyPath))
	}

	if prefix.Len() > 0 {
		if version != "" {
			prefix.WriteString("@" + version)
		}
		if arch != "" && plugin != "" {
			prefix.WriteString(" " + arch)
		}
		return prefix.String() + ": " + err.Error()
	}

	return err.Error()
}
