package playlist

import "strings"

// stripTwitchAds drops #EXT-X-DATERANGE lines that mark a Twitch
// stitched-in ad break, identified either by a recognizable substring or
// by a CLASS="twitch-stitched-ad" attribute.
func stripTwitchAds(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#EXT-X-DATERANGE") && isTwitchAdDaterange(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func isTwitchAdDaterange(line string) bool {
	if strings.Contains(line, "twitch-stitched-ad") || strings.Contains(line, "stitched-ad-") {
		return true
	}
	attrs := parseAttrs(strings.TrimPrefix(line, "#EXT-X-DATERANGE:"))
	return strings.EqualFold(attrs["CLASS"], "twitch-stitched-ad")
}

// twitchPrefetchDuration is the synthetic duration Twitch's own playlist
// comments document for prefetch segments.
const twitchPrefetchDuration = "2.002"

// rewriteTwitchPrefetch turns each #EXT-X-TWITCH-PREFETCH:<uri> line into a
// standard #EXTINF + URI pair so the rest of the parser never needs to know
// about the Twitch extension. The synthesized EXTINF title carries
// PREFETCH_SEGMENT so parseMedia marks the resulting segment as an ad.
func rewriteTwitchPrefetch(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if uri, ok := strings.CutPrefix(trimmed, "#EXT-X-TWITCH-PREFETCH:"); ok {
			out = append(out, "#EXTINF:"+twitchPrefetchDuration+",PREFETCH_SEGMENT")
			out = append(out, uri)
			continue
		}
		out = append(out, line)
	}
	return out
}
