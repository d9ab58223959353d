package protocol

import "errors"

// Sentinel errors shared by the pipeline stages. Codec errors live in the
// wire package, atlas errors in the atlas package.
var (
	ErrStaleFrame         = errors.New("protocol: stale frame")
	ErrMalformedOneof     = errors.New("protocol: multiple oneof variants")
	ErrMalformedPrimitive = errors.New("protocol: malformed primitive")
)

// Diagnostic codes used as log fields and metric labels.
const (
	// Decode layer.
	CodeTruncated       = "E_DECODE_TRUNCATED"
	CodeMalformedVarint = "E_DECODE_MALFORMED_VARINT"
	CodeInvalidTag      = "E_DECODE_INVALID_TAG"

	// Framing layer (fatal to the connection).
	CodeFrameTooLarge = "E_FRAME_TOO_LARGE"
	CodeFramingDesync = "E_FRAMING_DESYNC"

	// Atlas layer.
	CodeUnknownTile      = "E_ATLAS_UNKNOWN_TILE"
	CodeTileOutOfRange   = "E_ATLAS_TILE_OUT_OF_RANGE"
	CodeBoundsOutOfRange = "E_ATLAS_BOUNDS_OUT_OF_RANGE"
	CodePixelDataSize    = "E_ATLAS_PIXEL_DATA_SIZE"
	CodeBadFormat        = "E_ATLAS_BAD_FORMAT"

	// Frame layer.
	CodeStaleFrame         = "E_STALE_FRAME"
	CodeMalformedOneof     = "E_MALFORMED_ONEOF"
	CodeMalformedPrimitive = "E_MALFORMED_PRIMITIVE"

	CodeInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	CodeTruncated:          {},
	CodeMalformedVarint:    {},
	CodeInvalidTag:         {},
	CodeFrameTooLarge:      {},
	CodeFramingDesync:      {},
	CodeUnknownTile:        {},
	CodeTileOutOfRange:     {},
	CodeBoundsOutOfRange:   {},
	CodePixelDataSize:      {},
	CodeBadFormat:          {},
	CodeStaleFrame:         {},
	CodeMalformedOneof:     {},
	CodeMalformedPrimitive: {},
	CodeInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Coded is implemented by errors that carry a diagnostic code.
type Coded interface {
	Code() string
}

// CodeOf maps err to its diagnostic code. Errors from other packages opt in
// by implementing Coded somewhere in their wrap chain.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	switch {
	case errors.Is(err, ErrStaleFrame):
		return CodeStaleFrame
	case errors.Is(err, ErrMalformedOneof):
		return CodeMalformedOneof
	case errors.Is(err, ErrMalformedPrimitive):
		return CodeMalformedPrimitive
	}
	return CodeInternal
}

// CodedError is a sentinel that reports its diagnostic code.
type CodedError struct {
	code string
	msg  string
}

func NewCodedError(code, msg string) *CodedError { return &CodedError{code: code, msg: msg} }

func (e *CodedError) Error() string { return e.msg }
func (e *CodedError) Code() string  { return e.code }
