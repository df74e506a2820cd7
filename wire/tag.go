package wire

// Tag is the one byte that starts every record in a frame. The payload
// layout that follows a tag is fixed per tag, see the command types.
type Tag uint8

// Record tags. The numbering is part of the wire format.
const (
	TagCreateTexture2D Tag = iota
	TagUploadTexture2D
	TagBindTexture2D
	TagCreateBuffer
	TagUpdateBuffer
	TagCreateShaderProgram
	TagCreateRenderTarget
	TagBindRenderTarget
	TagBindRenderTargetTexture
	TagReloadShaders
	TagUseShaderProgram
	TagDraw
	TagBindUniformBuffer
	TagClearScreen
	TagEnd

	tagCount
)

var tagNames = [tagCount]string{
	"CreateTexture2D",
	"UploadTexture2D",
	"BindTexture2D",
	"CreateBuffer",
	"UpdateBuffer",
	"CreateShaderProgram",
	"CreateRenderTarget",
	"BindRenderTarget",
	"BindRenderTargetTexture",
	"ReloadShaders",
	"UseShaderProgram",
	"Draw",
	"BindUniformBuffer",
	"ClearScreen",
	"End",
}

// String returns the name of the tag
func (t Tag) String() string {
	if t < tagCount {
		return tagNames[t]
	}
	return "Unknown"
}

// Valid reports whether t is a known tag
func (t Tag) Valid() bool {
	return t < tagCount
}
