package playlist

import (
	"fmt"
	"strings"
)

// SelectionPolicy names a master-playlist variant selection strategy.
type SelectionPolicy string

const (
	PolicyHighestBitrate    SelectionPolicy = "highest-bitrate"
	PolicyLowestBitrate     SelectionPolicy = "lowest-bitrate"
	PolicyClosestToBitrate  SelectionPolicy = "closest-to-bitrate"
	PolicyAudioOnly         SelectionPolicy = "audio-only"
	PolicyVideoOnly         SelectionPolicy = "video-only"
	PolicyMatchingResolution SelectionPolicy = "matching-resolution"
	PolicyNamed             SelectionPolicy = "named"
)

// SelectionCriteria parameterizes the policies that need more than just a
// variant list: a target bitrate, a target resolution, or a variant name.
type SelectionCriteria struct {
	Policy          SelectionPolicy
	TargetBitrate   int
	TargetResolution string
	Name            string
}

// SelectVariant applies a selection policy to a master playlist's variants
// and returns the chosen one.
func SelectVariant(variants []Variant, criteria SelectionCriteria) (Variant, error) {
	if len(variants) == 0 {
		return Variant{}, fmt.Errorf("no variants available")
	}

	switch criteria.Policy {
	case PolicyHighestBitrate:
		best := variants[0]
		for _, v := range variants[1:] {
			if v.Bandwidth > best.Bandwidth {
				best = v
			}
		}
		return best, nil

	case PolicyLowestBitrate:
		best := variants[0]
		for _, v := range variants[1:] {
			if v.Bandwidth < best.Bandwidth {
				best = v
			}
		}
		return best, nil

	case PolicyClosestToBitrate:
		best := variants[0]
		bestDelta := abs(best.Bandwidth - criteria.TargetBitrate)
		for _, v := range variants[1:] {
			if d := abs(v.Bandwidth - criteria.TargetBitrate); d < bestDelta {
				best, bestDelta = v, d
			}
		}
		return best, nil

	case PolicyAudioOnly:
		for _, v := range variants {
			if v.Resolution == "" && v.Codecs != "" && !strings.Contains(strings.ToLower(v.Codecs), "avc") {
				return v, nil
			}
		}
		return Variant{}, fmt.Errorf("no audio-only variant found")

	case PolicyVideoOnly:
		for _, v := range variants {
			if v.Resolution != "" {
				return v, nil
			}
		}
		return Variant{}, fmt.Errorf("no video variant found")

	case PolicyMatchingResolution:
		for _, v := range variants {
			if v.Resolution == criteria.TargetResolution {
				return v, nil
			}
		}
		return Variant{}, fmt.Errorf("no variant matches resolution %q", criteria.TargetResolution)

	case PolicyNamed:
		for _, v := range variants {
			if v.Name == criteria.Name {
				return v, nil
			}
		}
		return Variant{}, fmt.Errorf("no variant named %q", criteria.Name)

	default:
		return Variant{}, fmt.Errorf("unknown selection policy %q", criteria.Policy)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
