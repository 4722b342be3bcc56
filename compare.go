package ctph

// Compare returns a similarity score between 0 and 100 for two textual
// signatures, or -1 if either signature is malformed. 100 means the two
// signatures are identical; 0 means no useful similarity was found (this
// includes signatures with block sizes too far apart to compare at all,
// which is not itself an error — two valid signatures simply don't
// overlap in the block sizes they were generated at).
func Compare(sig1, sig2 string) int {
	a, err := parseSignature(sig1)
	if err != nil {
		return -1
	}
	b, err := parseSignature(sig2)
	if err != nil {
		return -1
	}

	bs1, bs2 := a.blockSize, b.blockSize
	if bs1 != bs2 && bs1*2 != bs2 && (bs1%2 != 0 || bs1/2 != bs2) {
		return 0
	}

	if bs1 == bs2 && len(a.sig1) == len(b.sig1) && len(a.sig2) == len(b.sig2) &&
		bytesEqual(a.sig1, b.sig1) && bytesEqual(a.sig2, b.sig2) {
		return 100
	}

	var score uint32
	switch {
	case bs1 == bs2:
		score1 := scoreStrings(a.sig1, b.sig1, bs1)
		score2 := scoreStrings(a.sig2, b.sig2, bs1*2)
		score = score1
		if score2 > score1 {
			score = score2
		}
	case bs1*2 == bs2:
		score = scoreStrings(b.sig1, a.sig2, bs2)
	case bs2*2 == bs1:
		score = scoreStrings(a.sig1, b.sig2, bs1)
	default:
		score = 0
	}

	return int(score)
}

// scoreStrings measures how similar s1 and s2 are, on a 0-100 scale, given
// that both were produced at blockSize. It requires a shared run of
// rollingWindow matching bytes as a cheap pre-filter (scoreStrings
// returns 0 immediately otherwise), then normalises the edit distance
// between the two strings by their combined length, and finally caps the
// score for small block sizes so that a short, low-information match
// doesn't get an inflated score just because the strings themselves are
// short.
func scoreStrings(s1, s2 []byte, blockSize uint64) uint32 {
	if len(s1) < rollingWindow || len(s2) < rollingWindow {
		return 0
	}

	var distance int
	if len(s1) <= spamSumLength && len(s2) <= spamSumLength {
		pa := buildPositionArray(s1)
		if !hasCommonSubstringPA(&pa, s2) {
			return 0
		}
		distance = editDistancePA(&pa, len(s1), s2)
	} else {
		if !hasCommonSubstring(s1, s2) {
			return 0
		}
		distance = editDistanceRows(s1, s2)
	}

	score := uint32(distance) * spamSumLength / uint32(len(s1)+len(s2))
	score = 100 * score / spamSumLength
	score = 100 - score

	if blockSize >= (99+rollingWindow)/rollingWindow*minBlockSize {
		return score
	}

	smaller := len(s1)
	if len(s2) < smaller {
		smaller = len(s2)
	}
	scoreCap := uint32(blockSize/minBlockSize) * uint32(smaller)
	if score > scoreCap {
		score = scoreCap
	}
	return score
}
