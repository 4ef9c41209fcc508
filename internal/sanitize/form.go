package sanitize

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

const (
	DefaultFormMaxEntries    = 32
	DefaultFormMaxKeyRunes   = 64
	DefaultFormMaxValueRunes = 1024
	DefaultFormMaxTotalBytes = 16384
)

// FormLimits bounds one submitted settings group. Zero disables a limit.
type FormLimits struct {
	MaxEntries    int
	MaxKeyRunes   int
	MaxValueRunes int
	MaxTotalBytes int
}

// DefaultFormLimits returns the limits applied to admin form commits.
func DefaultFormLimits() FormLimits {
	return FormLimits{
		MaxEntries:    DefaultFormMaxEntries,
		MaxKeyRunes:   DefaultFormMaxKeyRunes,
		MaxValueRunes: DefaultFormMaxValueRunes,
		MaxTotalBytes: DefaultFormMaxTotalBytes,
	}
}

// CheckForm rejects a submitted field map that exceeds limits. Keys are
// checked in sorted order so the reported violation is deterministic.
func CheckForm(raw map[string]string, limits FormLimits) error {
	if limits.MaxEntries > 0 && len(raw) > limits.MaxEntries {
		return fmt.Errorf("form has %d fields, maximum is %d", len(raw), limits.MaxEntries)
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	total := 0
	for _, key := range keys {
		value := raw[key]
		if limits.MaxKeyRunes > 0 && utf8.RuneCountInString(key) > limits.MaxKeyRunes {
			return fmt.Errorf("field name %q exceeds maximum length of %d characters", TrimToRunes(key, limits.MaxKeyRunes), limits.MaxKeyRunes)
		}
		if limits.MaxValueRunes > 0 && utf8.RuneCountInString(value) > limits.MaxValueRunes {
			return fmt.Errorf("value for %q exceeds maximum length of %d characters", key, limits.MaxValueRunes)
		}
		total += len(key) + len(value)
		if limits.MaxTotalBytes > 0 && total > limits.MaxTotalBytes {
			return fmt.Errorf("form exceeds %d bytes", limits.MaxTotalBytes)
		}
	}
	return nil
}
