package archive

import (
	"bytes"
	"fmt"
	"io"

	"templatefiller/internal/fault"
)

const stageIntake = "intake"

// ReadPayload reads r fully, failing with PayloadTooLarge once more than
// maxBytes arrive. At most maxBytes+1 bytes are consumed.
func ReadPayload(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return nil, fault.New(fault.ConfigError, stageIntake, "read payload", "payload limit must be positive")
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fault.Wrap(fault.IOFailure, stageIntake, "read payload", "upload interrupted", err)
	}
	if n > maxBytes {
		return nil, fault.New(fault.PayloadTooLarge, stageIntake, "read payload",
			fmt.Sprintf("payload exceeds %d bytes", maxBytes))
	}
	return buf.Bytes(), nil
}
