package playlist

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxLineSize allows for very long signed segment URLs in a single
// playlist line.
const maxLineSize = 1024 * 1024

// attrRegex matches KEY=value or KEY="value" attribute pairs found on
// #EXT-X-* tag lines.
var attrRegex = regexp.MustCompile(`([A-Za-z0-9_-]+)=(?:"([^"]*)"|([^,]*))`)

var extinfRegex = regexp.MustCompile(`^#EXTINF:\s*([0-9.]+)\s*,?(.*)$`)

func parseAttrs(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range attrRegex.FindAllStringSubmatch(s, -1) {
		key := strings.ToUpper(m[1])
		val := m[2]
		if val == "" {
			val = strings.TrimSpace(m[3])
		}
		out[key] = val
	}
	return out
}

// Parse reads a playlist body and returns either its master or media
// contents depending on which tags it carries. Twitch-specific
// preprocessing (ad daterange stripping, prefetch-segment rewriting) runs
// before the main parse so downstream tags see a plain RFC 8216 body.
func Parse(r io.Reader) (*InitialPlaylist, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, maxLineSize)
	scanner.Buffer(buf, maxLineSize)

	var rawLines []string
	for scanner.Scan() {
		rawLines = append(rawLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning playlist: %w", err)
	}

	lines := stripTwitchAds(rawLines)
	lines = rewriteTwitchPrefetch(lines)

	isMaster := false
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#EXT-X-STREAM-INF:") {
			isMaster = true
			break
		}
	}

	if isMaster {
		master, err := parseMaster(lines)
		if err != nil {
			return nil, err
		}
		return &InitialPlaylist{Kind: KindMaster, Master: *master}, nil
	}

	media, err := parseMedia(lines)
	if err != nil {
		return nil, err
	}
	return &InitialPlaylist{Kind: KindMedia, Media: *media}, nil
}

func parseMaster(lines []string) (*MasterPlaylistDetails, error) {
	details := &MasterPlaylistDetails{}
	var pending *Variant

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := Variant{
				Resolution: attrs["RESOLUTION"],
				Codecs:     attrs["CODECS"],
				Name:       attrs["NAME"],
				Audio:      attrs["AUDIO"],
				Video:      attrs["VIDEO"],
			}
			v.Bandwidth, _ = strconv.Atoi(attrs["BANDWIDTH"])
			v.AverageBandwidth, _ = strconv.Atoi(attrs["AVERAGE-BANDWIDTH"])
			if fr, err := strconv.ParseFloat(attrs["FRAME-RATE"], 64); err == nil {
				v.FrameRate = fr
			}
			pending = &v

		case strings.HasPrefix(line, "#"):
			continue

		default:
			if pending != nil {
				pending.URI = line
				details.Variants = append(details.Variants, *pending)
				pending = nil
			}
		}
	}
	return details, nil
}

func parseMedia(lines []string) (*MediaPlaylistDetails, error) {
	details := &MediaPlaylistDetails{}

	var (
		pendingDuration time.Duration
		pendingTitle    string
		pendingRange    *ByteRange
		currentKey      *Key
		currentMapURI   string
		discontinuity   bool
		nextSeq         uint64
		haveSeq         bool
		isAd            bool
	)

	for lineNum, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			v, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid target duration: %w", lineNum+1, err)
			}
			details.TargetDuration = time.Duration(v) * time.Second

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			v, err := strconv.ParseUint(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid media sequence: %w", lineNum+1, err)
			}
			details.MediaSequence = v
			nextSeq = v
			haveSeq = true

		case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"):
			v, _ := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-DISCONTINUITY-SEQUENCE:"))
			details.DiscontinuitySequence = v

		case strings.HasPrefix(line, "#EXT-X-ENDLIST"):
			details.EndList = true

		case strings.HasPrefix(line, "#EXT-X-DISCONTINUITY"):
			discontinuity = true

		case strings.HasPrefix(line, "#EXT-X-KEY:"):
			attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-KEY:"))
			if strings.EqualFold(attrs["METHOD"], "NONE") {
				currentKey = nil
			} else {
				currentKey = &Key{Method: attrs["METHOD"], URI: attrs["URI"], IV: attrs["IV"]}
			}

		case strings.HasPrefix(line, "#EXT-X-MAP:"):
			attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-MAP:"))
			currentMapURI = attrs["URI"]
			details.Segments = append(details.Segments, Segment{
				URI:           currentMapURI,
				MediaSequence: nextSeq,
				Key:           currentKey,
				IsInitSegment: true,
			})

		case strings.HasPrefix(line, "#EXT-X-BYTERANGE:"):
			br, err := parseByteRange(strings.TrimPrefix(line, "#EXT-X-BYTERANGE:"))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum+1, err)
			}
			pendingRange = br

		case strings.HasPrefix(line, "#EXTINF:"):
			m := extinfRegex.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("line %d: invalid EXTINF", lineNum+1)
			}
			secs, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid EXTINF duration: %w", lineNum+1, err)
			}
			pendingDuration = time.Duration(math.Round(secs * float64(time.Second)))
			pendingTitle = strings.TrimSpace(m[2])
			isAd = strings.Contains(pendingTitle, "PREFETCH_SEGMENT")

		case strings.HasPrefix(line, "#"):
			continue

		default:
			if !haveSeq {
				nextSeq = 0
				haveSeq = true
			}
			seg := Segment{
				URI:           line,
				Title:         pendingTitle,
				Duration:      pendingDuration,
				MediaSequence: nextSeq,
				ByteRange:     pendingRange,
				Key:           currentKey,
				MapURI:        currentMapURI,
				Discontinuity: discontinuity,
				IsAd:          isAd,
			}
			details.Segments = append(details.Segments, seg)
			nextSeq++
			pendingDuration = 0
			pendingTitle = ""
			pendingRange = nil
			discontinuity = false
			isAd = false
		}
	}

	return details, nil
}

func parseByteRange(s string) (*ByteRange, error) {
	parts := strings.SplitN(s, "@", 2)
	length, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid byte range length: %w", err)
	}
	br := &ByteRange{Length: length}
	if len(parts) == 2 {
		offset, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid byte range offset: %w", err)
		}
		br.Offset = &offset
	}
	return br, nil
}
