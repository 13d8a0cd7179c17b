package shell

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// ShellCompleter completes command names, options and a few option values.
type ShellCompleter struct {
	sc *ShellController
}

func NewShellCompleter(sc *ShellController) *ShellCompleter {
	return &ShellCompleter{sc: sc}
}

type CommandMetadata struct {
	Options []string
	Args    []string
}

var commandMetadata = map[string]CommandMetadata{
	"odds": {
		Options: []string{"-game", "-replicates", "-histogram"},
	},
	"game": {
		Options: []string{"-top"},
	},
	"margins": {
		Options: []string{"-bins", "-width"},
	},
	"optimize": {
		Options: []string{"-strategy", "-threads", "-resume"},
	},
	"help": {
		Args: []string{"odds", "optimize", "set"},
	},
}

var commandNames = []string{
	"help", "load", "odds", "game", "margins", "optimize", "set", "exit",
}

var boolValues = []string{"true", "false"}
var strategyValues = []string{"single", "double", "enum"}

// Do implements the readline.AutoCompleter interface.
func (c *ShellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	fields, err := shellquote.Split(text)
	if err != nil {
		fields = strings.Fields(text)
	}
	endsWithSpace := len(text) > 0 && text[len(text)-1] == ' '

	var prefix string
	var completions []string

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		if len(fields) == 1 {
			prefix = fields[0]
		}
		completions = commandNames
	} else {
		cmdName := fields[0]
		if !endsWithSpace {
			prefix = fields[len(fields)-1]
		}
		var lastCompleteField string
		if endsWithSpace {
			lastCompleteField = fields[len(fields)-1]
		} else if len(fields) > 1 {
			lastCompleteField = fields[len(fields)-2]
		}

		switch {
		case lastCompleteField == "-strategy":
			completions = strategyValues
		case lastCompleteField == "-histogram" || lastCompleteField == "-resume":
			completions = boolValues
		case cmdName == "set" && len(fields) <= 2 && lastCompleteField == "set":
			for k := range settable {
				completions = append(completions, k)
			}
		case cmdName == "optimize" && lastCompleteField == "optimize" && c.sc.pool != nil:
			for _, e := range c.sc.pool.Entries {
				completions = append(completions, e.Name)
			}
		}

		if completions == nil {
			if metadata, exists := commandMetadata[cmdName]; exists {
				if strings.HasPrefix(prefix, "-") || len(metadata.Args) == 0 {
					completions = metadata.Options
				} else {
					completions = metadata.Args
				}
			}
		}
	}

	var matches [][]rune
	for _, completion := range completions {
		if strings.HasPrefix(completion, prefix) {
			matches = append(matches, []rune(completion[len(prefix):]))
		}
	}
	return matches, len(prefix)
}
