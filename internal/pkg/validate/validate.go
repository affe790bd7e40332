package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Fields validates a struct and returns per-field failure messages keyed by
// the struct field name. An empty map means the struct is valid.
func Fields(s interface{}) map[string][]string {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	out := map[string][]string{}
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		out[""] = []string{err.Error()}
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = append(out[fe.Field()], fmt.Sprintf("failed '%s'", fe.Tag()))
	}
	return out
}
