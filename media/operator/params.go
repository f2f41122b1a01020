package operator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	validatorV10 "github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/leeforge/imagevise/errors"
)

var validate *validatorV10.Validate

func init() {
	validate = validatorV10.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})
	_ = validate.RegisterValidation("imagecolor", func(fl validatorV10.FieldLevel) bool {
		_, err := ParseColor(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("geometry", func(fl validatorV10.FieldLevel) bool {
		_, err := ParseGeometry(fl.Field().String())
		return err == nil
	})
}

// decodeParams fills a parameter struct from the wire map. Values are
// weakly typed ("10" decodes into an int). Unknown and missing keys are
// both rejected.
func decodeParams[P any](name string, params Params) (P, error) {
	var p P
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ErrorUnset:       true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	if params == nil {
		params = Params{}
	}
	if err := dec.Decode(params); err != nil {
		return p, errors.NewInvalidParameter(name, strings.TrimPrefix(err.Error(), "decoding failed due to the following error(s):\n\n")).
			WithInnerError(err)
	}
	if err := validate.Struct(&p); err != nil {
		return p, errors.NewInvalidParameter(name, validationMessage(err)).WithInnerError(err)
	}
	return p, nil
}

// exportParams turns a parameter struct back into a wire map.
func exportParams(p any) Params {
	out := Params{}
	_ = mapstructure.Decode(p, &out)
	return out
}

func validationMessage(err error) string {
	var errs validatorV10.ValidationErrors
	if !stderrors.As(err, &errs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fe.Field(), getValidationMessage(fe)))
	}
	return strings.Join(msgs, ", ")
}

func getValidationMessage(fe validatorV10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must be present and not empty"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "imagecolor":
		return "must be a color name or a hex code"
	case "geometry":
		return "must be a valid geometry string"
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}
