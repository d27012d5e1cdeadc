package extractor

import (
	"bufio"
	"io"
)

const (
	defaultChunkSize    = 64 * 1024
	defaultChunkOverlap = 1024
)

// ChunkReader feeds r to fn in fixed-size chunks with a trailing overlap
// carried into the next chunk, so matches spanning a boundary are not
// lost. Memory stays bounded by chunkSize+overlap regardless of input
// size.
func ChunkReader(r io.Reader, chunkSize, overlap int, fn func(chunk string) error) error {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = defaultChunkOverlap
	}

	br := bufio.NewReaderSize(r, chunkSize)
	carry := make([]byte, 0, overlap)
	buf := make([]byte, chunkSize)

	for {
		n, err := io.ReadFull(br, buf)
		if n > 0 {
			chunk := append(append([]byte{}, carry...), buf[:n]...)
			if cbErr := fn(string(chunk)); cbErr != nil {
				return cbErr
			}
			if n >= overlap {
				carry = append(carry[:0], buf[n-overlap:n]...)
			} else {
				carry = append(carry[:0], buf[:n]...)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
