package ctph

import "errors"

// ErrOverflow is returned when an input's total length, or a declared
// fixed length, exceeds the engine's representable maximum
// (totalSizeMax).
var ErrOverflow = errors.New("ctph: input length exceeds the representable maximum")

// ErrInvariantMismatch is returned when a fixed total length is declared
// twice with different values, or when Digest is requested on a state
// whose actual accumulated length does not match the length it declared
// up front.
var ErrInvariantMismatch = errors.New("ctph: declared total length does not match accumulated input")

// ErrMalformedSignature is returned by the signature parser when a
// textual signature does not follow the "blocksize:sig1:sig2" wire
// format: missing colon, unparsable block size, a block size not of the
// form 3*2^k, or a piece longer than spamSumLength characters.
var ErrMalformedSignature = errors.New("ctph: malformed signature")
