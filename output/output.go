// Package output turns untrusted model text into validated JSON values.
//
// Model output is never assumed to be well-formed. The controller strips an optional
// markdown fence, extracts the first JSON object or array, decodes it, and validates it
// against a schema. Every failure is reported as a *ParseError carrying the messages and a
// capped raw snippet for diagnostics; nothing panics past this boundary.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rickchristie/gentflow"
	"github.com/rickchristie/gentflow/schema"
)

// DefaultRawLimit caps the raw snippet attached to a ParseError.
const DefaultRawLimit = 500

// Strip selects whether markdown fences are removed for one call.
type Strip int

const (
	// StripDefault uses the controller's setting.
	StripDefault Strip = iota
	StripOn
	StripOff
)

// ParseOptions configures one parse.
type ParseOptions struct {
	// Schema validates the decoded value when non-nil.
	Schema *schema.Schema
	Strip  Strip
}

// ParseError is returned for every parse failure. Err is one of gentflow.ErrEmptyContent,
// gentflow.ErrNoJSONFound, gentflow.ErrUnclosedBracket, gentflow.ErrInvalidJSON or
// gentflow.ErrValidationFailed.
type ParseError struct {
	Err    error
	Errors []string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, strings.Join(e.Errors, "; "))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Messages returns the human-readable failure messages of err when it is a *ParseError, or
// err's own message otherwise.
func Messages(err error) []string {
	var perr *ParseError
	if errors.As(err, &perr) {
		return perr.Errors
	}
	if err == nil {
		return nil
	}
	return []string{err.Error()}
}

// Controller parses model output.
type Controller struct {
	stripMarkdown bool
	rawLimit      int
}

// NewController creates a Controller that strips markdown fences by default.
func NewController() *Controller {
	return &Controller{
		stripMarkdown: true,
		rawLimit:      DefaultRawLimit,
	}
}

// WithStripMarkdown sets the default fence handling.
func (c *Controller) WithStripMarkdown(strip bool) *Controller {
	c.stripMarkdown = strip
	return c
}

// WithRawLimit sets the maximum length, in characters, of ParseError.Raw.
func (c *Controller) WithRawLimit(n int) *Controller {
	c.rawLimit = n
	return c
}

// Parse extracts, decodes and validates the JSON value in content. Objects decode to
// map[string]any and arrays to []any, as encoding/json does.
func (c *Controller) Parse(content string, opts ParseOptions) (any, error) {
	_, data, err := c.parse(content, opts)
	return data, err
}

// Decode is like Parse and additionally unmarshals the validated JSON into out.
func (c *Controller) Decode(content string, opts ParseOptions, out any) error {
	span, _, err := c.parse(content, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(span), out); err != nil {
		return &ParseError{
			Err:    gentflow.ErrInvalidJSON,
			Errors: []string{err.Error()},
			Raw:    c.cap(span),
		}
	}
	return nil
}

// ParseAs decodes the validated value into a T.
func ParseAs[T any](c *Controller, content string, opts ParseOptions) (T, error) {
	var out T
	err := c.Decode(content, opts, &out)
	return out, err
}

func (c *Controller) parse(content string, opts ParseOptions) (string, any, error) {
	strip := c.stripMarkdown
	switch opts.Strip {
	case StripOn:
		strip = true
	case StripOff:
		strip = false
	}

	span, err := Extract(content, strip)
	if err != nil {
		return "", nil, &ParseError{
			Err:    rootCause(err),
			Errors: []string{extractMessage(err)},
			Raw:    c.cap(content),
		}
	}

	var data any
	if err := json.Unmarshal([]byte(span), &data); err != nil {
		return "", nil, &ParseError{
			Err:    gentflow.ErrInvalidJSON,
			Errors: []string{err.Error()},
			Raw:    c.cap(span),
		}
	}

	if opts.Schema != nil {
		if err := opts.Schema.Validate(data); err != nil {
			msgs := []string{"validation failed"}
			var verr *schema.ValidationError
			if errors.As(err, &verr) && len(verr.Messages) > 0 {
				msgs = verr.Messages
			}
			return "", nil, &ParseError{
				Err:    gentflow.ErrValidationFailed,
				Errors: msgs,
				Raw:    c.cap(span),
			}
		}
	}

	return span, data, nil
}

func rootCause(err error) error {
	for _, sentinel := range []error{gentflow.ErrEmptyContent, gentflow.ErrNoJSONFound, gentflow.ErrUnclosedBracket} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return err
}

func extractMessage(err error) string {
	switch {
	case errors.Is(err, gentflow.ErrEmptyContent):
		return "content is empty after stripping"
	case errors.Is(err, gentflow.ErrNoJSONFound):
		return "content has no '{' or '['"
	default:
		return strings.TrimPrefix(err.Error(), "gentflow: ")
	}
}

func (c *Controller) cap(s string) string {
	if c.rawLimit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= c.rawLimit {
		return s
	}
	return string(r[:c.rawLimit])
}
