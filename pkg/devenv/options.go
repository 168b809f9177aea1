package devenv

import (
	"fmt"
	"strings"
)

var supportedTypes = []string{"string", "int", "float", "bool", "path", "pkg", "pkgs"}

func supportedTypesList() string {
	return strings.Join(supportedTypes, ", ")
}

// RenderCliOptions renders flat key:type/value pairs into a nix module that
// overrides the matching options. Every value except pkgs lists is forced.
func RenderCliOptions(pairs []string) (string, error) {
	if len(pairs)%2 != 0 {
		return "", &OptionError{Token: pairs[len(pairs)-1], Err: ErrInvalidOption}
	}

	var b strings.Builder
	b.WriteString("{ pkgs, lib, config, ... }: {\n")

	for i := 0; i < len(pairs); i += 2 {
		key, raw := pairs[i], pairs[i+1]

		parts := strings.Split(key, ":")
		if len(parts) < 2 {
			return "", &OptionError{Token: key, Err: ErrInvalidOption}
		}
		path, typ := parts[0], parts[1]

		var value string
		switch typ {
		case "string":
			value = `"` + raw + `"`
		case "int", "float", "bool":
			value = raw
		case "path":
			value = "./" + raw
		case "pkg":
			value = "pkgs." + raw
		case "pkgs":
			fields := strings.Fields(raw)
			refs := make([]string, len(fields))
			for j, f := range fields {
				refs[j] = "pkgs." + f
			}
			value = "[ " + strings.Join(refs, " ") + " ]"
		default:
			return "", &OptionError{Token: typ, Err: ErrUnsupportedOptionType}
		}

		if typ != "pkgs" {
			value = "lib.mkForce " + value
		}
		fmt.Fprintf(&b, "  %s = %s;\n", path, value)
	}

	b.WriteString("}\n")
	return b.String(), nil
}
