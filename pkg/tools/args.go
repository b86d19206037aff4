package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vit0-9/domain_mcp/pkg/utils/domain"
)

// DomainArgs is the input of every single-domain tool.
type DomainArgs struct {
	Domain string `json:"domain" jsonschema:"description=Domain name to query (e.g. example.com),maxLength=253" validate:"required,max=253"`
}

// BulkArgs is the input of bulk_domain_check.
type BulkArgs struct {
	Domains []string `json:"domains" jsonschema:"description=Domain names to check,minItems=1,maxItems=100" validate:"required,min=1,max=100,dive,required"`
}

// SearchArgs is the input of search_expired_domains.
type SearchArgs struct {
	Keyword string   `json:"keyword" jsonschema:"description=Keyword the candidate names are built from,minLength=1,maxLength=50" validate:"required,min=1,max=50,keyword"`
	Limit   int      `json:"limit,omitempty" jsonschema:"description=Maximum number of available names to return (default 10),minimum=1,maximum=50" validate:"omitempty,min=1,max=50"`
	TLDs    []string `json:"tlds,omitempty" jsonschema:"description=TLDs to search (default com net org io)" validate:"omitempty,max=20,dive,required,max=63,tld"`
}

// RecordArgs is the input of get_dns_records.
type RecordArgs struct {
	Domain      string   `json:"domain" jsonschema:"description=Domain name to query,maxLength=253" validate:"required,max=253"`
	RecordTypes []string `json:"record_types,omitempty" jsonschema:"description=Record types to query: A AAAA MX NS TXT CNAME SOA (default all)" validate:"omitempty,dive,record_type"`
}

var validate = newValidator()

// newValidator registers the domain rules so they run before dispatch.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "keyword", func(fl validator.FieldLevel) bool {
		return domain.ValidKeyword(fl.Field().String())
	})
	mustRegister(v, "tld", func(fl validator.FieldLevel) bool {
		return domain.ValidTLD(fl.Field().String())
	})
	mustRegister(v, "record_type", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseRecordType(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

// decodeArgs turns the loosely typed argument map into T, rejecting unknown
// fields and wrong JSON types, then applies the struct constraints.
func decodeArgs[T any](name ToolName, args map[string]any) (T, error) {
	var out T
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return out, argError(name, "arguments are not JSON encodable: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, argError(name, "invalid arguments: %v", err)
	}

	if err := validate.Struct(out); err != nil {
		return out, argError(name, "%s", describeValidation(err))
	}
	return out, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := jsonFieldName(fe.Namespace())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of %s", field, fe.Param()))
		case "record_type":
			msgs = append(msgs, fmt.Sprintf("%s must be one of A AAAA MX NS TXT CNAME SOA", field))
		case "keyword":
			msgs = append(msgs, fmt.Sprintf("%s must be letters, digits and inner hyphens", field))
		case "tld":
			msgs = append(msgs, fmt.Sprintf("%s is not a valid TLD", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

var fieldNames = map[string]string{
	"Domain":      "domain",
	"Domains":     "domains",
	"Keyword":     "keyword",
	"Limit":       "limit",
	"TLDs":        "tlds",
	"RecordTypes": "record_types",
}

// jsonFieldName maps "RecordArgs.RecordTypes[2]" to "record_types[2]".
func jsonFieldName(namespace string) string {
	_, field, ok := strings.Cut(namespace, ".")
	if !ok {
		field = namespace
	}
	base, index, _ := strings.Cut(field, "[")
	if name, ok := fieldNames[base]; ok {
		base = name
	}
	if index != "" {
		return base + "[" + index
	}
	return base
}

func argError(name ToolName, format string, args ...any) *domain.LookupError {
	return &domain.LookupError{
		Kind: domain.KindValidation,
		Op:   string(name),
		Err:  fmt.Errorf(format, args...),
	}
}
