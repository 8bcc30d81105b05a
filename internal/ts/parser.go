package ts

import "bytes"

// Parser is a streaming, zero-copy TS parser: it scans an arbitrarily
// chunked byte stream for sync bytes, parses each 188-byte packet, and
// invokes the packet callback for every packet; the PAT and PMT callbacks
// fire only when that table's version changes from the last one seen.
type Parser struct {
	programPIDs map[uint16]uint16 // program number -> PMT PID
	pmtPIDs     map[uint16]uint16 // PMT PID -> program number
	patVersion  *uint8
	pmtVersions map[uint16]uint8 // program number -> version
}

// NewParser constructs an empty streaming parser.
func NewParser() *Parser {
	return &Parser{
		programPIDs: make(map[uint16]uint16),
		pmtPIDs:     make(map[uint16]uint16),
		pmtVersions: make(map[uint16]uint8),
	}
}

// Callbacks groups the optional handlers ParsePackets invokes.
type Callbacks struct {
	OnPAT    func(PAT) error
	OnPMT    func(PMT) error
	OnPacket func(Packet) error
}

// ParsePackets scans data for TS packets, advancing past malformed bytes one
// at a time when a sync byte turns out not to start a valid packet.
func (p *Parser) ParsePackets(data []byte, cb Callbacks) error {
	for len(data) > 0 {
		if !(len(data) >= PacketSize && data[0] == SyncByte) {
			idx := bytes.IndexByte(data, SyncByte)
			if idx < 0 {
				return nil
			}
			data = data[idx:]
		}
		if len(data) < PacketSize {
			return nil
		}

		chunk := data[:PacketSize]
		packet, err := ParsePacket(chunk)
		if err != nil {
			data = data[1:]
			continue
		}

		if cb.OnPacket != nil {
			if err := cb.OnPacket(packet); err != nil {
				return err
			}
		}

		if packet.PayloadUnitStartIndicator {
			if psi := packet.PSIPayload(); psi != nil {
				if err := p.processPSI(packet.PID, psi, cb); err != nil {
					return err
				}
			}
		}
		data = data[PacketSize:]
	}
	return nil
}

func (p *Parser) processPSI(pid uint16, psi []byte, cb Callbacks) error {
	switch {
	case pid == 0x0000:
		if pat, err := ParsePAT(psi); err == nil {
			return p.processPAT(pat, cb)
		}
	case p.isPMTPID(pid):
		if len(psi) == 0 {
			return nil
		}
		switch psi[0] {
		case 0x00:
			if pat, err := ParsePAT(psi); err == nil {
				return p.processPAT(pat, cb)
			}
		case 0x02:
			if pmt, err := ParsePMT(psi); err == nil {
				programNumber := p.pmtPIDs[pid]
				if old, ok := p.pmtVersions[programNumber]; !ok || old != pmt.VersionNumber {
					p.pmtVersions[programNumber] = pmt.VersionNumber
					if cb.OnPMT != nil {
						return cb.OnPMT(pmt)
					}
				}
			}
		}
	}
	return nil
}

func (p *Parser) isPMTPID(pid uint16) bool {
	_, ok := p.pmtPIDs[pid]
	return ok
}

func (p *Parser) processPAT(pat PAT, cb Callbacks) error {
	if p.patVersion != nil && *p.patVersion == pat.VersionNumber {
		return nil
	}
	v := pat.VersionNumber
	p.patVersion = &v

	p.programPIDs = make(map[uint16]uint16)
	p.pmtPIDs = make(map[uint16]uint16)
	p.pmtVersions = make(map[uint16]uint8)

	for _, prog := range pat.Programs() {
		if prog.ProgramNumber == 0 {
			continue
		}
		p.programPIDs[prog.ProgramNumber] = prog.PMTPID
		p.pmtPIDs[prog.PMTPID] = prog.ProgramNumber
	}

	if cb.OnPAT != nil {
		return cb.OnPAT(pat)
	}
	return nil
}

// Reset clears all accumulated program/version state.
func (p *Parser) Reset() {
	p.programPIDs = make(map[uint16]uint16)
	p.pmtPIDs = make(map[uint16]uint16)
	p.patVersion = nil
	p.pmtVersions = make(map[uint16]uint8)
}

// ProgramCount returns the number of programs currently tracked.
func (p *Parser) ProgramCount() int {
	return len(p.programPIDs)
}
