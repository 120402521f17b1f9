package spiral

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Option identifiers
// -----------------------------------------------------------------------------

// OptionID identifies a client option.
type OptionID string

// Built-in option identifiers.
const (
	OptionRegion          OptionID = "region"
	OptionEndpoint        OptionID = "endpoint"
	OptionBucket          OptionID = "bucket"
	OptionPrefix          OptionID = "prefix"
	OptionCompression     OptionID = "compression"
	OptionAppID           OptionID = "app_id"
	OptionCredentialsFile OptionID = "credentials_file"
	OptionCABundle        OptionID = "ca_bundle"
	OptionPathStyle       OptionID = "path_style"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidOption indicates a value rejected by an option's rule.
	ErrInvalidOption = errors.New("invalid option value")

	// ErrUnknownOption indicates an option id that is not registered.
	ErrUnknownOption = errors.New("unknown option")
)

// OptionError reports a value that failed validation.
type OptionError struct {
	Option OptionID
	Value  string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %s: %s", e.Option, e.Reason)
}

// Unwrap returns ErrInvalidOption so callers can match with errors.Is.
func (e *OptionError) Unwrap() error {
	return ErrInvalidOption
}

// -----------------------------------------------------------------------------
// Option values
// -----------------------------------------------------------------------------

// Option is a typed client setting that validates every assignment.
// A rejected value leaves the previous value in place.
type Option interface {
	ID() OptionID
	Value() string
	Set(raw string) error
}

// defaultRegexMessage is the fallback failure message; %s is the value.
const defaultRegexMessage = "\"%s\" is not a valid value"

// RegexOption holds a string that must match a regular expression.
type RegexOption struct {
	id      OptionID
	value   string
	regex   *regexp.Regexp
	message string
}

// NewRegexOption creates a regex-constrained option. The default rule only
// accepts the empty string; replace it with SetRegex.
func NewRegexOption(id OptionID) *RegexOption {
	return &RegexOption{
		id:      id,
		regex:   regexp.MustCompile(`^$`),
		message: defaultRegexMessage,
	}
}

func (o *RegexOption) ID() OptionID  { return o.id }
func (o *RegexOption) Value() string { return o.value }

// SetRegex replaces the validation rule.
func (o *RegexOption) SetRegex(re *regexp.Regexp) {
	o.regex = re
}

// SetMessage replaces the failure message. The message is a format string
// receiving the rejected value.
func (o *RegexOption) SetMessage(message string) {
	o.message = message
}

// Set trims raw and stores it if it matches the rule.
func (o *RegexOption) Set(raw string) error {
	value := strings.TrimSpace(raw)
	if !o.regex.MatchString(value) {
		return &OptionError{Option: o.id, Value: value, Reason: fmt.Sprintf(o.message, value)}
	}
	o.value = value
	return nil
}

// FileOption holds a path that must name a readable regular file.
type FileOption struct {
	id    OptionID
	value string
}

// NewFileOption creates a file-constrained option with an empty value.
func NewFileOption(id OptionID) *FileOption {
	return &FileOption{id: id}
}

func (o *FileOption) ID() OptionID  { return o.id }
func (o *FileOption) Value() string { return o.value }

// Set stores path if it can be opened for reading as a regular file.
func (o *FileOption) Set(raw string) error {
	path := strings.TrimSpace(raw)
	if err := checkReadableFile(path); err != nil {
		return &OptionError{Option: o.id, Value: path, Reason: fmt.Sprintf("\"%s\" is not an accessible file: %v", path, err)}
	}
	o.value = path
	return nil
}

func checkReadableFile(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer closer(f)()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	return nil
}

// BoolOption holds a boolean parsed with strconv.ParseBool.
type BoolOption struct {
	id    OptionID
	value bool
}

// NewBoolOption creates a boolean option defaulting to false.
func NewBoolOption(id OptionID) *BoolOption {
	return &BoolOption{id: id}
}

func (o *BoolOption) ID() OptionID  { return o.id }
func (o *BoolOption) Value() string { return strconv.FormatBool(o.value) }

// Bool returns the parsed value.
func (o *BoolOption) Bool() bool { return o.value }

// Set parses raw as a boolean.
func (o *BoolOption) Set(raw string) error {
	value := strings.TrimSpace(raw)
	b, err := strconv.ParseBool(value)
	if err != nil {
		return &OptionError{Option: o.id, Value: value, Reason: fmt.Sprintf("\"%s\" is not a valid boolean", value)}
	}
	o.value = b
	return nil
}

// -----------------------------------------------------------------------------
// Option set
// -----------------------------------------------------------------------------

// Options maps option ids to validated values.
//
// Options is not safe for concurrent mutation.
type Options struct {
	opts map[OptionID]Option
}

// NewOptions creates an empty option set.
func NewOptions() *Options {
	return &Options{opts: make(map[OptionID]Option)}
}

// DefaultOptions creates an option set with the built-in rules registered
// and every value unset.
func DefaultOptions() *Options {
	o := NewOptions()

	o.Register(regexOption(OptionRegion, `^([a-z]{2}(-[a-z]+)+-\d+|auto)$`, "\"%s\" is not a valid region"))
	o.Register(regexOption(OptionEndpoint, `^(https?://[^\s/]+(/\S*)?)?$`, "\"%s\" is not a valid endpoint URL"))
	o.Register(regexOption(OptionBucket, `^([a-z0-9][a-z0-9.\-]{1,61}[a-z0-9])?$`, "\"%s\" is not a valid bucket name"))
	o.Register(regexOption(OptionPrefix, `^[A-Za-z0-9!_.*'()/\-]*$`, "\"%s\" is not a valid key prefix"))
	o.Register(regexOption(OptionCompression, `^(gzip|zstd|noop)?$`, "\"%s\" is not a supported compressor"))
	o.Register(regexOption(OptionAppID, `^[\w.\-]{0,50}$`, "\"%s\" is not a valid application id"))
	o.Register(NewFileOption(OptionCredentialsFile))
	o.Register(NewFileOption(OptionCABundle))
	o.Register(NewBoolOption(OptionPathStyle))

	return o
}

func regexOption(id OptionID, expr, message string) *RegexOption {
	opt := NewRegexOption(id)
	opt.SetRegex(regexp.MustCompile(expr))
	opt.SetMessage(message)
	return opt
}

// Register adds or replaces an option.
func (o *Options) Register(opt Option) {
	o.opts[opt.ID()] = opt
}

// Get returns the registered option for id.
func (o *Options) Get(id OptionID) (Option, bool) {
	opt, ok := o.opts[id]
	return opt, ok
}

// Set validates raw against the rule for id and stores it.
func (o *Options) Set(id OptionID, raw string) error {
	opt, ok := o.opts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOption, id)
	}
	return opt.Set(raw)
}

// Value returns the current value for id, or "" if it is not registered.
func (o *Options) Value(id OptionID) string {
	if opt, ok := o.opts[id]; ok {
		return opt.Value()
	}
	return ""
}

// Bool returns the current value for id parsed as a boolean.
func (o *Options) Bool(id OptionID) bool {
	b, _ := strconv.ParseBool(o.Value(id))
	return b
}

// IDs returns the registered option ids in sorted order.
func (o *Options) IDs() []OptionID {
	ids := make([]OptionID, 0, len(o.opts))
	for id := range o.opts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
