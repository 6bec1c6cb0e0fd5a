package command

import (
	"strings"

	"github.com/urfave/cli"
)

// NormalizeArgs rewrites a value flag that is followed by another flag,
// or by nothing, into its "--flag=" form so it receives the empty string
// instead of consuming the next flag as its value.
// args[0] is the program name and is kept as is.
func NormalizeArgs(flags []cli.Flag, args []string) []string {
	if len(args) == 0 {
		return args
	}

	valueFlags := valueFlagNames(flags)

	normalized := make([]string, 0, len(args))
	normalized = append(normalized, args[0])
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			normalized = append(normalized, args[i:]...)
			break
		}

		name, ok := flagName(arg)
		if !ok || !valueFlags[name] {
			normalized = append(normalized, arg)
			continue
		}

		if i+1 >= len(args) || strings.HasPrefix(args[i+1], "-") {
			normalized = append(normalized, arg+"=")
			continue
		}

		// flag and its value
		normalized = append(normalized, arg, args[i+1])
		i++
	}
	return normalized
}

// flagName returns the name of a "-x" or "--xyz" token without an inline value.
func flagName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "-") || strings.Contains(arg, "=") {
		return "", false
	}
	name := strings.TrimLeft(arg, "-")
	if name == "" {
		return "", false
	}
	return name, true
}

func valueFlagNames(flags []cli.Flag) map[string]bool {
	names := make(map[string]bool)
	for _, f := range flags {
		switch f.(type) {
		case cli.BoolFlag, *cli.BoolFlag, cli.BoolTFlag, *cli.BoolTFlag:
			continue
		}
		for _, name := range strings.Split(f.GetName(), ",") {
			if name = strings.TrimSpace(name); name != "" {
				names[name] = true
			}
		}
	}
	return names
}
