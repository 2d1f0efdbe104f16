package zclcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOTAFrame_ImageNotify(t *testing.T) {
	assert.True(t, ValidateOTAFrame(OTAImageNotify, []byte{0x00, 0x32}))
	assert.False(t, ValidateOTAFrame(OTAImageNotify, []byte{0x00, 0x65})) // jitter 101
	assert.False(t, ValidateOTAFrame(OTAImageNotify, []byte{0x03, 0x01})) // needs 10 bytes
	assert.True(t, ValidateOTAFrame(OTAImageNotify, append([]byte{0x03, 0x01}, make([]byte, 8)...)))
	assert.False(t, ValidateOTAFrame(OTAImageNotify, []byte{0x00}))
	assert.False(t, ValidateOTAFrame(OTAImageNotify, []byte{0x00, 0x00})) // jitter 0 invalid
}

func TestValidateOTAFrame_QueryNextImageRequest(t *testing.T) {
	assert.False(t, ValidateOTAFrame(OTAQueryNextImageRequest, make([]byte, 8)))
	assert.True(t, ValidateOTAFrame(OTAQueryNextImageRequest, make([]byte, 9)))
}

func TestValidateOTAFrame_QueryNextImageResponse(t *testing.T) {
	assert.False(t, ValidateOTAFrame(OTAQueryNextImageResponse, nil))
	assert.True(t, ValidateOTAFrame(OTAQueryNextImageResponse, make([]byte, 1)))
}

func TestValidateOTAFrame_UpgradeEndRequestResponse(t *testing.T) {
	assert.False(t, ValidateOTAFrame(OTAUpgradeEndRequest, make([]byte, 8)))
	assert.True(t, ValidateOTAFrame(OTAUpgradeEndRequest, make([]byte, 9)))

	assert.False(t, ValidateOTAFrame(OTAUpgradeEndResponse, make([]byte, 15)))
	assert.True(t, ValidateOTAFrame(OTAUpgradeEndResponse, make([]byte, 16)))
}

func TestValidateOTAFrame_LegacyAndUpgradeStartedAcceptEmptyOrNot(t *testing.T) {
	for _, e := range []OTAEventType{OTALegacyBootloadStarted, OTALegacyBootloadFailed, OTALegacyBootloadCompleted, OTAUpgradeStarted} {
		assert.True(t, ValidateOTAFrame(e, nil))
		assert.True(t, ValidateOTAFrame(e, []byte{0x01, 0x02}))
		assert.True(t, ShouldWarnOnNonEmpty(e))
	}

	assert.False(t, ShouldWarnOnNonEmpty(OTAImageNotify))
}
