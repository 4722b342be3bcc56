package ctph

import "strconv"

// Flag controls optional behaviour of Digest. The zero value reproduces
// the classic ssdeep wire format: runs of the same character are left
// alone and the second signature half is truncated to 31 characters plus
// a trailing byte.
type Flag uint8

const (
	// FlagElimSeq collapses any run of 4 or more identical characters
	// down to exactly 3 while emitting the signature.
	FlagElimSeq Flag = 1 << iota
	// FlagNoTrunc disables the 31-character cap on the second signature
	// half, letting it grow up to spamSumLength characters like the
	// first.
	FlagNoTrunc
)

const (
	stateFlagNeedLastHash uint8 = 1 << iota
	stateFlagSizeFixed
)

// State is a context-triggered piecewise hash in progress. It is created
// empty with New, fed zero or more byte slices with Update, and rendered
// to a textual signature with Digest. A State may be Cloned before its
// final Digest call so the caller can keep hashing while also producing
// an intermediate signature; the clone and the original can then be
// updated independently, including from separate goroutines, because
// neither holds a pointer into the other.
//
// The zero value is not ready to use; construct a State with New.
type State struct {
	totalSize    uint64
	fixedSize    uint64
	reduceBorder uint64

	bhStart, bhEnd, bhEndLimit int
	flags                      uint8
	rollMask                   uint32

	bh   [numBlockHashes]blockHashContext
	roll rollState

	lastH byte
}

// New returns an empty digest state ready to be updated.
func New() *State {
	s := &State{}
	s.reset()
	return s
}

// reset returns s to the state New would have produced, without
// reallocating it. Used to recycle a *State through a sync.Pool.
func (s *State) reset() {
	*s = State{
		bhStart:      0,
		bhEnd:        1,
		bhEndLimit:   numBlockHashes - 1,
		reduceBorder: uint64(minBlockSize) * spamSumLength,
	}
	s.bh[0].reset()
}

// Clone returns an independent copy of s. Because State holds no pointers
// or slices (the block-hash array and rolling window are fixed size), a
// plain value copy already gives the independence guarantee: further
// updates to the clone are invisible to s and vice versa, and
// Clone(s).Update(x) is equivalent to s.Clone().Update(x).
func (s *State) Clone() *State {
	clone := *s
	return &clone
}

// DeclareTotalLength tells the engine the exact total number of bytes
// that will be fed via Update. This lets it cap the block-size
// hypotheses it bothers to track, matching what a single-pass hasher
// that knew the size up front would have chosen. It is optional: a
// streaming caller that does not know its length in advance can skip it
// and the engine will track all 31 hypotheses until they self-retire.
//
// Declaring a length larger than the engine can represent, or declaring
// two different lengths, returns an error.
func (s *State) DeclareTotalLength(total uint64) error {
	if total > totalSizeMax {
		return ErrOverflow
	}
	if s.flags&stateFlagSizeFixed != 0 && s.fixedSize != total {
		return ErrInvariantMismatch
	}
	s.flags |= stateFlagSizeFixed
	s.fixedSize = total

	bi := 0
	for blockSizeOf(bi)*spamSumLength < total {
		bi++
		if bi == numBlockHashes-2 {
			break
		}
	}
	bi++
	s.bhEndLimit = bi
	return nil
}

// Update feeds len(p) more bytes into the digest. It never fails on its
// own; an input that overflows the engine's maximum length is recorded
// and surfaces as ErrOverflow only when Digest is later called, keeping
// the hot per-byte path free of error checks.
func (s *State) Update(p []byte) {
	n := uint64(len(p))
	if n > totalSizeMax || totalSizeMax-n < s.totalSize {
		s.totalSize = totalSizeMax + 1
	} else {
		s.totalSize += n
	}
	for _, c := range p {
		s.step(c)
	}
}

// Write implements io.Writer so a State can be the destination of
// io.Copy. It always reports success; see Update.
func (s *State) Write(p []byte) (int, error) {
	s.Update(p)
	return len(p), nil
}

// step advances the engine by a single byte: it updates the rolling hash
// and every active block hash, and — if the rolling hash has just hit a
// content-defined boundary — emits one digest character per active block
// size whose boundary condition is satisfied.
func (s *State) step(c byte) {
	s.roll.feed(c)
	horg := s.roll.sum() + 1
	h := horg / minBlockSize

	for i := s.bhStart; i < s.bhEnd; i++ {
		s.bh[i].h = sumHash(c, s.bh[i].h)
		s.bh[i].halfH = sumHash(c, s.bh[i].halfH)
	}
	if s.flags&stateFlagNeedLastHash != 0 {
		s.lastH = sumHash(c, s.lastH)
	}

	if horg == 0 {
		return
	}
	if h&s.rollMask != 0 {
		return
	}
	if horg%minBlockSize != 0 {
		return
	}
	h >>= uint32(s.bhStart)

	for i := s.bhStart; ; {
		if s.bh[i].dindex == 0 {
			s.forkBlockHash()
		}
		s.bh[i].digest[s.bh[i].dindex] = base64Alphabet[s.bh[i].h]
		s.bh[i].halfDigest = base64Alphabet[s.bh[i].halfH]
		if s.bh[i].dindex < spamSumLength-1 {
			s.bh[i].dindex++
			s.bh[i].digest[s.bh[i].dindex] = 0
			s.bh[i].h = hashInit
			if s.bh[i].dindex < spamSumLength/2 {
				s.bh[i].halfH = hashInit
				s.bh[i].halfDigest = 0
			}
		} else {
			s.reduceBlockHash()
		}
		if h&1 != 0 {
			break
		}
		h >>= 1
		i++
		if i >= s.bhEnd {
			break
		}
	}
}

// forkBlockHash activates a new, larger block-size hypothesis by cloning
// the current largest one's running hash. Once all numBlockHashes slots
// are active, a single spare accumulator (lasth) keeps tracking a virtual
// 32nd block size instead: the signature has no room for a full digest at
// that size, but Digest writes its pending character as the one-character
// second half when the largest block size is chosen.
func (s *State) forkBlockHash() {
	obh := &s.bh[s.bhEnd-1]
	if s.bhEnd <= s.bhEndLimit {
		nbh := &s.bh[s.bhEnd]
		nbh.h = obh.h
		nbh.halfH = obh.halfH
		nbh.dindex = 0
		nbh.digest[0] = 0
		nbh.halfDigest = 0
		s.bhEnd++
	} else if s.bhEnd == numBlockHashes && s.flags&stateFlagNeedLastHash == 0 {
		s.flags |= stateFlagNeedLastHash
		s.lastH = obh.h
	}
}

// reduceBlockHash retires the smallest active block-size hypothesis once
// it is clear the final signature will never pick it: the input has
// grown past the point where the initial block-size guess would select
// it, and its neighbour already has a useful amount of digest.
func (s *State) reduceBlockHash() {
	if s.bhEnd-s.bhStart < 2 {
		return
	}
	limit := s.totalSize
	if s.flags&stateFlagSizeFixed != 0 {
		limit = s.fixedSize
	}
	if s.reduceBorder >= limit {
		return
	}
	if s.bh[s.bhStart+1].dindex < spamSumLength/2 {
		return
	}
	s.bhStart++
	s.reduceBorder *= 2
	s.rollMask = s.rollMask*2 + 1
}

// Digest renders the final signature string. It does not mutate s, so a
// caller may keep updating s afterwards (for example to periodically
// render intermediate signatures from clones without disturbing the
// running hash).
func (s *State) Digest(flags Flag) (string, error) {
	if s.totalSize > totalSizeMax {
		return "", ErrOverflow
	}
	if s.flags&stateFlagSizeFixed != 0 && s.fixedSize != s.totalSize {
		return "", ErrInvariantMismatch
	}

	bi := s.bhStart
	for blockSizeOf(bi)*spamSumLength < s.totalSize {
		bi++
	}
	if bi >= s.bhEnd {
		bi = s.bhEnd - 1
	}
	for bi > s.bhStart && s.bh[bi].dindex < spamSumLength/2 {
		bi--
	}

	h := s.roll.sum()

	out := make([]byte, 0, spamSumLength+spamSumLength/2+24)
	out = strconv.AppendUint(out, blockSizeOf(bi), 10)
	out = append(out, ':')

	out = appendPiece(out, flags, s.bh[bi].digest[:s.bh[bi].dindex], h,
		s.bh[bi].h, s.bh[bi].digest[s.bh[bi].dindex])
	out = append(out, ':')

	switch {
	case bi < s.bhEnd-1:
		bi2 := bi + 1
		n := s.bh[bi2].dindex
		if flags&FlagNoTrunc == 0 && n > spamSumLength/2-1 {
			n = spamSumLength/2 - 1
		}
		var trailer byte
		if h != 0 {
			if flags&FlagNoTrunc != 0 {
				trailer = s.bh[bi2].h
			} else {
				trailer = s.bh[bi2].halfH
			}
			out = appendPiece(out, flags, s.bh[bi2].digest[:n], h, trailer, 0)
		} else {
			sentinel := s.bh[bi2].halfDigest
			if flags&FlagNoTrunc != 0 {
				sentinel = s.bh[bi2].digest[s.bh[bi2].dindex]
			}
			out = appendPiece(out, flags, s.bh[bi2].digest[:n], h, 0, sentinel)
		}
	case h != 0:
		if bi == 0 {
			out = append(out, base64Alphabet[s.bh[bi].h])
		} else {
			out = append(out, base64Alphabet[s.lastH])
		}
	}

	return string(out), nil
}

// appendPiece writes one signature half (body plus an optional trailing
// character) to out, applying run elimination to the body when
// FlagElimSeq is set and respecting it for the trailing character too: a
// trailing character is always written when the body is shorter than 3
// characters (no run is possible yet), and otherwise only when it would
// not extend an existing run of 3.
//
// When h (the rolling sum at digest time) is non-zero there is a pending,
// not-yet-committed partial hash and hTrailer (a base64 index, 0..63) is
// appended. When h is zero, there is no pending partial hash; sentinel,
// if non-zero, is a character already committed but not part of body (the
// character stored just past the digest of a block hash that is stuck at
// its maximum length, or, for a truncated second half, the half-hash
// character recorded at the last boundary), and is appended verbatim.
func appendPiece(out []byte, flags Flag, body []byte, h uint32, hTrailer byte, sentinel byte) []byte {
	start := len(out)
	if flags&FlagElimSeq != 0 {
		body = collapseRuns(body)
	}
	out = append(out, body...)

	var trailer byte
	var have bool
	if h != 0 {
		trailer = base64Alphabet[hTrailer]
		have = true
	} else if sentinel != 0 {
		trailer = sentinel
		have = true
	}
	if !have {
		return out
	}

	segLen := len(out) - start
	if flags&FlagElimSeq == 0 || segLen < 3 {
		return append(out, trailer)
	}
	n := len(out)
	if out[n-1] == trailer && out[n-2] == trailer && out[n-3] == trailer {
		return out
	}
	return append(out, trailer)
}
