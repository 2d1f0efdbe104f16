package firmware

import "errors"

var (
	// ErrEmptyBaseURL is a descriptor error: no firmware base URL
	// configured (§7 item 4).
	ErrEmptyBaseURL = errors.New("no firmware base URL configured")

	// ErrChecksumMismatch is an integrity error (§7 item 5).
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrFirmwareVersionMissing is a protocol-mismatch error: the
	// device's firmwareVersion resource hasn't been populated yet.
	ErrFirmwareVersionMissing = errors.New("device firmware version unknown")
)
