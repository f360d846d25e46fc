package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Tag limits shared by the tagging APIs the dispatcher calls.
const (
	maxTagKeyLen   = 128
	maxTagValueLen = 256
	// maxStaticTags leaves room for the five identity tags under the
	// 50-tags-per-resource ceiling.
	maxStaticTags = 45
)

var validate = validator.New()

// Validate checks the config for:
//   - Field constraints declared on the schema
//   - Tag keys and values within API limits, and not in the reserved aws: namespace
//   - Default and override tag layers that together still fit on a resource
func Validate(cfg *Config) error {
	var errs []string

	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range ve {
			errs = append(errs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	validateTags("default_tags", cfg.DefaultTags, &errs)
	validateTags("override_tags", cfg.OverrideTags, &errs)

	static := make(map[string]struct{}, len(cfg.DefaultTags)+len(cfg.OverrideTags))
	for k := range cfg.DefaultTags {
		static[k] = struct{}{}
	}
	for k := range cfg.OverrideTags {
		static[k] = struct{}{}
	}
	if len(static) > maxStaticTags {
		errs = append(errs, fmt.Sprintf("default_tags and override_tags hold %d distinct keys, max %d", len(static), maxStaticTags))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateTags(field string, m map[string]string, errs *[]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := m[k]
		switch {
		case strings.TrimSpace(k) == "":
			*errs = append(*errs, fmt.Sprintf("%s: empty key", field))
		case strings.HasPrefix(strings.ToLower(k), "aws:"):
			*errs = append(*errs, fmt.Sprintf("%s.%s: the aws: prefix is reserved", field, k))
		case utf8.RuneCountInString(k) > maxTagKeyLen:
			*errs = append(*errs, fmt.Sprintf("%s.%s: key longer than %d", field, k, maxTagKeyLen))
		}
		if utf8.RuneCountInString(v) > maxTagValueLen {
			*errs = append(*errs, fmt.Sprintf("%s.%s: value longer than %d", field, k, maxTagValueLen))
		}
	}
}
