// Package validation checks caller-supplied input before it reaches a store.
//
// Struct tag validation backs the document tables: a record decoded into its
// typed shape is checked with `validate:` tags, and field names in messages
// follow the json tag so they match the stored field names.
//
//	type Setting struct {
//	    Name  string `json:"name" validate:"required"`
//	    Value string `json:"value"`
//	}
//	err := validation.Validate(setting)
//
// Programmatic validation collects several field errors into one AppError:
//
//	v := validation.New()
//	v.Required("api", req.API).Identifier("field", where.Field)
//	if err := v.Validate(); err != nil { ... }
package validation
