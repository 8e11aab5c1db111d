package clip

// Node types and property keys of the persisted clip layout.
const (
	TypeClip            = "Clip"
	TypeAudioProcessors = "AudioProcessors"
	TypeVideoProcessors = "VideoProcessors"
	TypeAudioProcessor  = "AudioProcessor"
	TypeParameter       = "Parameter"
	TypeKeyframe        = "Keyframe"

	KeyID           = "id"
	KeySource       = "source"
	KeyDescription  = "description"
	KeyStart        = "start"
	KeyLength       = "length"
	KeyOffset       = "offset"
	KeyVideoLine    = "videoLine"
	KeyAudioLine    = "audioLine"
	KeyName         = "name"
	KeyIdentifier   = "identifier"
	KeyPluginStatus = "pluginStatus"
	KeyValue        = "value"
	KeyTime         = "time"
)

// Diagnostics recorded in pluginStatus when a processor has no live unit.
const (
	// StatusEngineMissing is recorded on processors reconstructed without an engine.
	StatusEngineMissing = "engine not present"

	// StatusNoUnit is recorded on processors added without a unit.
	StatusNoUnit = "no unit"

	// StatusBuiltinMissing prefixes the status of a builtin identity this
	// build does not provide.
	StatusBuiltinMissing = "builtin unit not available"
)
