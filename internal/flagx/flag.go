// Package flagx helps several flag sets share one command line.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs keeps only the arguments that belong to the given flag names,
// together with their values. Both "-name value" and "-name=value" forms are
// recognised; a following token that starts with "-" is never taken as a value.
//
// The result is never nil, so it can be passed straight to flag.FlagSet.Parse.
func FilterArgs(args []string, names []string) []string {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if known[name] {
				out = append(out, arg)
			}
			continue
		}

		if !known[arg] {
			continue
		}
		out = append(out, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			out = append(out, args[i])
		}
	}

	return out
}

// ConfigFilePath returns the value of -c / -config found in args, or "" when
// neither is present. Other arguments are ignored so the caller can parse its
// own flag set afterwards.
func ConfigFilePath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (shorthand)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--c", "--config"}))

	return path
}
