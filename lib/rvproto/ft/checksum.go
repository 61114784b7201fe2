package ft

import (
	"io"
)

// ChecksumReset is the checksum of no data.
const ChecksumReset uint32 = 0xFFFF0000

// Checksum computes the AIM file checksum: a 16-bit ones' complement
// difference in which even-offset bytes count as the high byte of a word,
// reported in the high half of a uint32. Byte offsets are counted from the
// start of the stream, so splitting the input across Write calls does not
// change the result.
type Checksum struct {
	check uint32
	odd   bool
}

// NewChecksum returns a checksum in the reset state.
func NewChecksum() *Checksum {
	return NewChecksumFrom(ChecksumReset)
}

// NewChecksumFrom continues from a previously reported sum, as when
// resuming a partial transfer.
func NewChecksumFrom(prev uint32) *Checksum {
	return &Checksum{check: (prev >> 16) & 0xffff}
}

// Reset returns c to the checksum of no data.
func (c *Checksum) Reset() {
	c.check = (ChecksumReset >> 16) & 0xffff
	c.odd = false
}

// Update adds p to the checksum.
func (c *Checksum) Update(p []byte) {
	check := c.check
	odd := c.odd
	for _, b := range p {
		old := check
		val := uint32(b)
		if !odd {
			val <<= 8
		}
		check -= val
		if check > old {
			check--
		}
		odd = !odd
	}
	c.check = check
	c.odd = odd
}

// Write implements io.Writer so a Checksum can be the target of io.Copy.
func (c *Checksum) Write(p []byte) (int, error) {
	c.Update(p)
	return len(p), nil
}

// Sum32 returns the checksum of the data so far.
func (c *Checksum) Sum32() uint32 {
	check := c.check
	check = (check & 0xffff) + (check >> 16)
	check = (check & 0xffff) + (check >> 16)
	return check << 16
}

// ChecksumReader tees everything read through it into a Checksum.
type ChecksumReader struct {
	r   io.Reader
	sum *Checksum
	n   int64
}

// NewChecksumReader returns a reader that checksums r.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{r: r, sum: NewChecksum()}
}

func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.sum.Update(p[:n])
		cr.n += int64(n)
	}
	return n, err
}

// Sum32 returns the checksum of the bytes read so far.
func (cr *ChecksumReader) Sum32() uint32 { return cr.sum.Sum32() }

// Count returns the number of bytes read so far.
func (cr *ChecksumReader) Count() int64 { return cr.n }

// ChecksumOf checksums r to EOF and returns the sum with the byte count.
func ChecksumOf(r io.Reader) (uint32, int64, error) {
	sum := NewChecksum()
	n, err := io.Copy(sum, r)
	return sum.Sum32(), n, err
}
