package ctph

const (
	// minBlockSize is the smallest block size the engine ever uses
	// (SSDEEP_BS(0)).
	minBlockSize = 3
	// spamSumLength is the maximum number of characters in either half of
	// a signature.
	spamSumLength = 64
	// numBlockHashes is the number of parallel block-size hypotheses the
	// engine can track at once (indices 0..30, block sizes 3*2^0..3*2^30).
	numBlockHashes = 31
	// hashInit is the seed value for both the full and half block hash
	// accumulators.
	hashInit = 0x27

	base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
)

// blockSizeOf returns SSDEEP_BS(index): the block size that block-hash
// slot index represents.
func blockSizeOf(index int) uint64 {
	return uint64(minBlockSize) << uint(index)
}

// totalSizeMax is the largest input length the engine can represent,
// SSDEEP_BS(numBlockHashes-1) * spamSumLength.
const totalSizeMax = (uint64(minBlockSize) << (numBlockHashes - 1)) * spamSumLength

// sumTable is the precomputed 64x64 FNV-style accumulator table: given the
// current hash byte h and an input byte c, sumTable[h][c&0x3f] is the next
// hash byte. Both h and the table's output stay in 0..63 so they index
// directly into base64Alphabet.
var sumTable [64][64]byte

func init() {
	for h := 0; h < 64; h++ {
		for c := 0; c < 64; c++ {
			sumTable[h][c] = byte((uint32(h)*0x01000193 ^ uint32(c)) & 0x3f)
		}
	}
}

func sumHash(c byte, h byte) byte {
	return sumTable[h][c&0x3f]
}

// blockHashContext is the signature-in-progress for one block-size
// hypothesis. digest holds up to spamSumLength committed base64
// characters; dindex is how many of them are valid. halfh/halfdigest track
// a second accumulator that stops resetting once the digest reaches
// spamSumLength/2 characters, which is what lets the second half of a
// signature be truncated independently of the first.
type blockHashContext struct {
	dindex     int
	digest     [spamSumLength]byte
	halfDigest byte
	h, halfH   byte
}

func (b *blockHashContext) reset() {
	*b = blockHashContext{h: hashInit, halfH: hashInit}
}
