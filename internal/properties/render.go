package properties

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingKey is returned by Render under MissingFail when a placeholder's
// source key is absent.
var ErrMissingKey = errors.New("placeholder source key missing")

// MissingKeyPolicy decides what a placeholder renders to when its source key
// is absent from the loaded values.
type MissingKeyPolicy string

const (
	// MissingEmpty substitutes the empty string.
	MissingEmpty MissingKeyPolicy = "empty"
	// MissingLiteralNull substitutes the text "null".
	MissingLiteralNull MissingKeyPolicy = "null"
	// MissingFail aborts rendering with ErrMissingKey.
	MissingFail MissingKeyPolicy = "fail"
)

// ParseMissingKeyPolicy validates raw. The empty string selects MissingEmpty.
func ParseMissingKeyPolicy(raw string) (MissingKeyPolicy, error) {
	switch policy := MissingKeyPolicy(strings.ToLower(strings.TrimSpace(raw))); policy {
	case "":
		return MissingEmpty, nil
	case MissingEmpty, MissingLiteralNull, MissingFail:
		return policy, nil
	default:
		return "", fmt.Errorf("unknown missing key policy %q", raw)
	}
}

// Binding ties a ${Placeholder} token to the run.config key that feeds it.
// A binding without a key always renders empty.
type Binding struct {
	Placeholder string
	Key         string
}

// Token returns the literal text replaced in the template.
func (b Binding) Token() string {
	return "${" + b.Placeholder + "}"
}

// Render replaces every binding's token in tpl, in order, with a literal
// substring replacement. Tokens without a binding are left verbatim.
func Render(tpl string, bindings []Binding, values map[string]string, policy MissingKeyPolicy) (string, error) {
	out := tpl
	for _, b := range bindings {
		value, err := resolve(b, values, policy)
		if err != nil {
			return "", err
		}
		out = strings.ReplaceAll(out, b.Token(), value)
	}
	return out, nil
}

func resolve(b Binding, values map[string]string, policy MissingKeyPolicy) (string, error) {
	if b.Key == "" {
		return "", nil
	}
	if value, ok := values[b.Key]; ok {
		return value, nil
	}
	switch policy {
	case MissingLiteralNull:
		return "null", nil
	case MissingFail:
		return "", fmt.Errorf("%w: %s for %s", ErrMissingKey, b.Key, b.Token())
	default:
		return "", nil
	}
}
