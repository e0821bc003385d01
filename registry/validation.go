package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/asaskevich/govalidator"
	"golang.org/x/text/unicode/norm"
)

// ValidationError maps field names to problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, e.Fields[k])
	}
	return "invalid car: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// clean trims and NFC-normalizes free text so that "Disponível" typed with a
// combining accent compares equal to the precomposed form.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func validateEmail(v *ValidationError, email string) {
	if !govalidator.IsEmail(email) {
		v.add("owner_email", "must be a valid e-mail address")
	}
}

func validateMileage(v *ValidationError, mileage int) {
	if mileage < 0 {
		v.add("mileage", "must not be negative")
	}
}

func (in CarInput) normalized() CarInput {
	in.Model = clean(in.Model)
	in.Description = clean(in.Description)
	in.Brand = clean(in.Brand)
	in.OwnerEmail = strings.TrimSpace(in.OwnerEmail)
	in.Status = clean(in.Status)
	return in
}

func (in CarInput) validate() error {
	v := &ValidationError{}
	if in.Model == "" {
		v.add("model", "is required")
	}
	if in.Description == "" {
		v.add("description", "is required")
	}
	if in.Brand == "" {
		v.add("brand", "is required")
	}
	if in.OwnerEmail == "" {
		v.add("owner_email", "is required")
	} else {
		validateEmail(v, in.OwnerEmail)
	}
	if in.Mileage == nil {
		v.add("mileage", "is required")
	} else {
		validateMileage(v, *in.Mileage)
	}
	return v.orNil()
}

func (in UpdateCarInput) normalized() UpdateCarInput {
	in.Model = clean(in.Model)
	in.Description = clean(in.Description)
	in.Brand = clean(in.Brand)
	in.OwnerEmail = strings.TrimSpace(in.OwnerEmail)
	in.Status = clean(in.Status)
	return in
}

func (in UpdateCarInput) validate() error {
	v := &ValidationError{}
	if in.OwnerEmail != "" {
		validateEmail(v, in.OwnerEmail)
	}
	if in.Mileage != nil {
		validateMileage(v, *in.Mileage)
	}
	return v.orNil()
}
