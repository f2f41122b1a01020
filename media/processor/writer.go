package processor

// Writer chooses the output format and encoder options for a rendered image.
type Writer interface {
	Format(img *Image) Format
	Options() EncodeOptions
}

// AutoWriter picks PNG for images with transparency and JPEG otherwise.
// Render URLs carry no extension, so the format is free to pick.
type AutoWriter struct{}

func (AutoWriter) Format(img *Image) Format {
	if img.HasAlpha() {
		return FormatPNG
	}
	return FormatJPG
}

func (AutoWriter) Options() EncodeOptions {
	return EncodeOptions{}
}

// JPGWriter always writes JPEG, flattening any transparency.
type JPGWriter struct {
	Quality int
}

func (JPGWriter) Format(*Image) Format {
	return FormatJPG
}

func (w JPGWriter) Options() EncodeOptions {
	return EncodeOptions{Quality: w.Quality}
}

// FormatWriter writes a fixed format with default options.
type FormatWriter struct {
	Target Format
}

func (w FormatWriter) Format(*Image) Format {
	return w.Target
}

func (FormatWriter) Options() EncodeOptions {
	return EncodeOptions{}
}
