package flvrepair

import "github.com/jmylchreest/streamvault/internal/flv"

// GopSort buffers tags until the next video keyframe, then flushes them in
// an order that guarantees the required file prefix (script tags, video
// sequence header, audio sequence header, keyframe) followed by the
// remaining buffered audio/video interleaved by timestamp.
//
// Header and EndOfSequence markers pass straight through after flushing
// whatever is currently buffered; they also reset the per-file prefix state
// so the next GOP re-emits the last known sequence headers even if the new
// file's first GOP didn't itself carry fresh ones.
type GopSort struct {
	scriptBuf []Data
	videoBuf  []Data
	audioBuf  []Data

	lastVideoSeqHeader *Data
	lastAudioSeqHeader *Data
	needsFilePrefix    bool
}

// NewGopSort constructs a GopSort stage.
func NewGopSort() *GopSort {
	return &GopSort{needsFilePrefix: true}
}

func (g *GopSort) Name() string { return "GopSort" }

func (g *GopSort) Process(item Data, emit func(Data) error) error {
	switch item.Kind {
	case flv.DataKindHeader, flv.DataKindEndOfSequence:
		if err := g.flush(emit); err != nil {
			return err
		}
		g.needsFilePrefix = true
		return emit(item)
	}

	tag := item.Tag
	switch {
	case flv.IsScriptTag(tag):
		g.scriptBuf = append(g.scriptBuf, item)
		return nil
	case tag.Type == flv.TagTypeVideo:
		if flv.IsVideoSequenceHeader(tag) {
			cp := item
			g.lastVideoSeqHeader = &cp
		}
		g.videoBuf = append(g.videoBuf, item)
		if flv.IsKeyframeNALU(tag) {
			return g.flush(emit)
		}
		return nil
	case tag.Type == flv.TagTypeAudio:
		if flv.IsAudioSequenceHeader(tag) {
			cp := item
			g.lastAudioSeqHeader = &cp
		}
		g.audioBuf = append(g.audioBuf, item)
		return nil
	default:
		return emit(item)
	}
}

func (g *GopSort) Finish(emit func(Data) error) error {
	return g.flush(emit)
}

// flush partitions each buffer into sequence headers and ordinary media
// before merging, so a sequence header sharing a timestamp with the
// keyframe that triggered the flush (common on the very first GOP of a
// file) never loses its place ahead of that keyframe.
func (g *GopSort) flush(emit func(Data) error) error {
	for _, item := range g.scriptBuf {
		if err := emit(item); err != nil {
			return err
		}
	}
	g.scriptBuf = nil

	videoSeq, video := partitionSeqHeaders(g.videoBuf, flv.IsVideoSequenceHeader)
	audioSeq, audio := partitionSeqHeaders(g.audioBuf, flv.IsAudioSequenceHeader)
	g.videoBuf, g.audioBuf = nil, nil

	if g.needsFilePrefix {
		if len(videoSeq) > 0 {
			for _, item := range videoSeq {
				if err := emit(item); err != nil {
					return err
				}
			}
		} else if g.lastVideoSeqHeader != nil {
			if err := emit(*g.lastVideoSeqHeader); err != nil {
				return err
			}
		}
		if len(audioSeq) > 0 {
			for _, item := range audioSeq {
				if err := emit(item); err != nil {
					return err
				}
			}
		} else if g.lastAudioSeqHeader != nil {
			if err := emit(*g.lastAudioSeqHeader); err != nil {
				return err
			}
		}
	} else {
		for _, item := range videoSeq {
			if err := emit(item); err != nil {
				return err
			}
		}
		for _, item := range audioSeq {
			if err := emit(item); err != nil {
				return err
			}
		}
	}

	v, a := 0, 0
	for v < len(video) && a < len(audio) {
		if video[v].Tag.Timestamp <= audio[a].Tag.Timestamp {
			if err := emit(video[v]); err != nil {
				return err
			}
			v++
		} else {
			if err := emit(audio[a]); err != nil {
				return err
			}
			a++
		}
	}
	for ; v < len(video); v++ {
		if err := emit(video[v]); err != nil {
			return err
		}
	}
	for ; a < len(audio); a++ {
		if err := emit(audio[a]); err != nil {
			return err
		}
	}
	g.needsFilePrefix = false
	return nil
}

// partitionSeqHeaders splits buf into items matching isSeqHeader (in
// original order) and the remaining media tags (in original order).
func partitionSeqHeaders(buf []Data, isSeqHeader func(flv.Tag) bool) (seq, rest []Data) {
	for _, item := range buf {
		if isSeqHeader(item.Tag) {
			seq = append(seq, item)
		} else {
			rest = append(rest, item)
		}
	}
	return seq, rest
}
