package gemini

// ImageInput is a reference image attached to a generation request.
// Data is the raw encoded file, not base64.
type ImageInput struct {
	Data []byte
	MIME string
}

// Image is a single image payload returned by the model.
type Image struct {
	Data []byte
	MIME string
}
