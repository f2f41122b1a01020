package operator

// Built-in operator names.
const (
	NameAutoOrient           = "auto_orient"
	NameBackgroundFill       = "background_fill"
	NameCrop                 = "crop"
	NameEllipseStencil       = "ellipse_stencil"
	NameExpireAfter          = "expire_after"
	NameFitCrop              = "fit_crop"
	NameForceJPGOut          = "force_jpg_out"
	NameGeom                 = "geom"
	NameJPGQuality           = "jpg_quality"
	NameSharpen              = "sharpen"
	NameSRGB                 = "srgb"
	NameStripMetadata        = "strip_metadata"
	NameCustomOutputFiletype = "custom_output_filetype"
	NameSpecifyFiletype      = "specify_filetype"
	NameOutputFileAsJPG      = "output_file_as_jpg"
)

// RegisterBuiltins adds every built-in operator to r. Names already
// registered are left alone.
func RegisterBuiltins(r *Registry) {
	images := map[string]ImageConstructor{
		NameAutoOrient:     NewAutoOrient,
		NameBackgroundFill: NewBackgroundFill,
		NameCrop:           NewCrop,
		NameEllipseStencil: NewEllipseStencil,
		NameFitCrop:        NewFitCrop,
		NameGeom:           NewGeom,
		NameSharpen:        NewSharpen,
		NameSRGB:           NewSRGB,
		NameStripMetadata:  NewStripMetadata,
	}
	for name, ctor := range images {
		_ = r.RegisterImage(name, ctor)
	}

	metadata := map[string]MetadataConstructor{
		NameExpireAfter:          NewExpireAfter,
		NameForceJPGOut:          NewForceJPGOut,
		NameJPGQuality:           NewJPGQuality,
		NameCustomOutputFiletype: NewCustomOutputFiletype,
		NameSpecifyFiletype:      NewSpecifyFiletype,
		NameOutputFileAsJPG:      NewOutputFileAsJPG,
	}
	for name, ctor := range metadata {
		_ = r.RegisterMetadata(name, ctor)
	}
}
