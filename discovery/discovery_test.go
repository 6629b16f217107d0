package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReply_WellFormed(t *testing.T) {
	info, ok := parseReply("WING,192.168.1.50,MyWing,Wing Compact,SN123,1.2.3")
	require.True(t, ok)
	require.Equal(t, Info{
		IP:       "192.168.1.50",
		Name:     "MyWing",
		Model:    "Wing Compact",
		Serial:   "SN123",
		Firmware: "1.2.3",
	}, info)
}

func TestParseReply_WrongTag(t *testing.T) {
	_, ok := parseReply("HELLO,1,2,3,4,5")
	require.False(t, ok)
}

func TestParseReply_TooFewFields(t *testing.T) {
	_, ok := parseReply("WING,1,2")
	require.False(t, ok)
}

func TestParseReply_ExtraFieldsStillParse(t *testing.T) {
	info, ok := parseReply("WING,10.0.0.1,Name,Model,Serial,1.0,extra")
	require.True(t, ok)
	require.Equal(t, "10.0.0.1", info.IP)
}
