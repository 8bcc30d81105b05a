package flvrepair

// NaturalMetadataKeyOrder is the fixed onMetaData property order shared
// between ScriptKeyframesFiller, which writes zero-valued placeholders
// before a file's final size is known, and the post-recording script
// modifier, which rewrites the same keys with real values once it is.
// Keeping one order in one place means a same-size rewrite always lands on
// exactly the placeholder's byte offsets.
var NaturalMetadataKeyOrder = []string{
	"duration",
	"fileSize",
	"width",
	"height",
	"videoCodecId",
	"videoDataRate",
	"framerate",
	"audioCodecId",
	"audioDataRate",
	"audiosamplerate",
	"audiosamplesize",
	"stereo",
	"lasttimestamp",
	"lastkeyframelocation",
	"lastkeyframetimestamp",
	"keyframes",
}
