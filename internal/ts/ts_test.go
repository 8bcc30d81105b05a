package ts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildPacket(pid uint16, pusi bool, payload []byte) []byte {
	pkt := make([]byte, PacketSize)
	pkt[0] = SyncByte
	b1 := byte(pid >> 8 & 0x1F)
	if pusi {
		b1 |= 0x40
	}
	pkt[1] = b1
	pkt[2] = byte(pid)
	pkt[3] = 0x10 // adaptation_field_control=01 (payload only), continuity=0
	copy(pkt[4:], payload)
	return pkt
}

func buildPAT(version uint8, programs []PATProgram) []byte {
	body := make([]byte, 0)
	body = append(body, 0, 0) // transport_stream_id
	body = append(body, 0xC1|((version&0x1F)<<1))
	body = append(body, 0, 0) // section/last section number
	for _, p := range programs {
		body = append(body, byte(p.ProgramNumber>>8), byte(p.ProgramNumber))
		body = append(body, byte(0xE0|(p.PMTPID>>8)), byte(p.PMTPID))
	}
	sectionLength := len(body) + 4 // + CRC32
	out := []byte{0x00, 0x80 | byte(sectionLength>>8), byte(sectionLength)}
	out = append(out, body...)
	out = append(out, 0, 0, 0, 0) // fake CRC32
	return out
}

func TestParsePacketHeaderFields(t *testing.T) {
	data := buildPacket(0x0100, true, []byte{0x00, 1, 2, 3})
	p, err := ParsePacket(data)
	require.NoError(t, err)
	require.Equal(t, uint16(0x0100), p.PID)
	require.True(t, p.PayloadUnitStartIndicator)
}

func TestParsePacketRejectsBadSync(t *testing.T) {
	data := make([]byte, PacketSize)
	_, err := ParsePacket(data)
	require.Error(t, err)
}

func TestPSIPayloadHonoursPointerField(t *testing.T) {
	pat := buildPAT(0, []PATProgram{{ProgramNumber: 1, PMTPID: 0x1000}})
	payload := append([]byte{0x00}, pat...) // pointer_field = 0
	data := buildPacket(0x0000, true, payload)
	p, err := ParsePacket(data)
	require.NoError(t, err)
	psi := p.PSIPayload()
	require.NotNil(t, psi)
	require.Equal(t, byte(0x00), psi[0]) // PAT table id
}

func TestStreamingParserRebuildsProgramsOnNewPATVersion(t *testing.T) {
	parser := NewParser()
	var sawPAT int
	var sawPMT int

	pat := buildPAT(1, []PATProgram{{ProgramNumber: 1, PMTPID: 0x1000}})
	patPacket := buildPacket(0x0000, true, append([]byte{0x00}, pat...))

	err := parser.ParsePackets(patPacket, Callbacks{
		OnPAT: func(p PAT) error { sawPAT++; return nil },
		OnPMT: func(p PMT) error { sawPMT++; return nil },
	})
	require.NoError(t, err)
	require.Equal(t, 1, sawPAT)
	require.Equal(t, 1, parser.ProgramCount())

	// Same version again: must not re-invoke OnPAT.
	err = parser.ParsePackets(patPacket, Callbacks{
		OnPAT: func(p PAT) error { sawPAT++; return nil },
	})
	require.NoError(t, err)
	require.Equal(t, 1, sawPAT)

	// New version: must rebuild and re-invoke.
	pat2 := buildPAT(2, []PATProgram{{ProgramNumber: 1, PMTPID: 0x1001}, {ProgramNumber: 2, PMTPID: 0x1002}})
	patPacket2 := buildPacket(0x0000, true, append([]byte{0x00}, pat2...))
	err = parser.ParsePackets(patPacket2, Callbacks{
		OnPAT: func(p PAT) error { sawPAT++; return nil },
	})
	require.NoError(t, err)
	require.Equal(t, 2, sawPAT)
	require.Equal(t, 2, parser.ProgramCount())
}

func TestParserFindsSyncByteAfterGarbage(t *testing.T) {
	parser := NewParser()
	garbage := []byte{0x01, 0x02, 0x03}
	pat := buildPAT(1, []PATProgram{{ProgramNumber: 1, PMTPID: 0x1000}})
	patPacket := buildPacket(0x0000, true, append([]byte{0x00}, pat...))

	var sawPAT int
	err := parser.ParsePackets(append(garbage, patPacket...), Callbacks{
		OnPAT: func(p PAT) error { sawPAT++; return nil },
	})
	require.NoError(t, err)
	require.Equal(t, 1, sawPAT)
}
