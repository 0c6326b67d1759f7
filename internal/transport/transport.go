// Package transport implements retry-until-complete reads and writes over a
// byte stream. Every frame in the rfs protocol has a pre-declared length, so
// the layers above only ever ask for exact byte counts.
package transport

import "io"

// ReadExactly reads into buf until it is full, the peer stops producing
// bytes, or a non-retryable error occurs.
//
// Interrupted and would-block reads are retried. If any bytes were moved
// before the stream ended, the count is returned with a nil error and the
// caller decides whether the shortfall is fatal. An error is only returned
// when nothing was read at all.
func ReadExactly(r io.Reader, buf []byte) (int, error) {
	var total int
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err == nil && n > 0 {
			continue
		}
		if err != nil && retryable(err) {
			continue
		}
		if total == 0 && err != nil {
			return 0, err
		}
		break
	}
	return total, nil
}

// WriteExactly writes buf in full, with the same retry and partial-result
// rules as ReadExactly.
func WriteExactly(w io.Writer, buf []byte) (int, error) {
	var total int
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		if n < 0 {
			n = 0
		}
		total += n
		if err == nil && n > 0 {
			continue
		}
		if err != nil && retryable(err) {
			continue
		}
		if total == 0 && err != nil {
			return 0, err
		}
		break
	}
	return total, nil
}
