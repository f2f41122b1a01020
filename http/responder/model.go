package responder

// ErrorBody is the JSON document sent for every failed render.
type ErrorBody struct {
	Errors []string `json:"errors"`
}

// Image describes a rendered file ready to be streamed.
type Image struct {
	ContentType string
	Length      int64
	ETag        string
	// MaxAge is the public cache lifetime in seconds.
	MaxAge int
}
