// Package rt holds the import paths of the runtime packages generated code
// depends on. Kept in one place so every protocol generator emits the same
// references.
package rt

const (
	JSONEnc     = "github.com/wiregen/wiregen/runtime/jsonenc"
	JSONDec     = "github.com/wiregen/wiregen/runtime/jsondec"
	XMLCodec    = "github.com/wiregen/wiregen/runtime/xmlcodec"
	Bincodec    = "github.com/wiregen/wiregen/runtime/bincodec"
	Wiretime    = "github.com/wiregen/wiregen/runtime/wiretime"
	Document    = "github.com/wiregen/wiregen/runtime/document"
	EventStream = "github.com/wiregen/wiregen/runtime/eventstream"
	APIErr      = "github.com/wiregen/wiregen/runtime/apierr"
)

// Module names generated functions are grouped under.
const (
	ModuleSerializers   = "serializers"
	ModuleDeserializers = "deserializers"
)
