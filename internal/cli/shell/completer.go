package shell

import (
	"sort"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/afero"

	"github.com/marmos91/distd/pkg/client"
)

type command struct {
	prompt.Suggest
	args string
}

var serverCommands = []command{
	{prompt.Suggest{Text: "LIST", Description: "List files on the server"}, ""},
	{prompt.Suggest{Text: "GET", Description: "Download a file"}, " <filename>"},
	{prompt.Suggest{Text: "PUT", Description: "Upload a local file"}, " <filename> [remote name]"},
	{prompt.Suggest{Text: "DEL", Description: "Delete a file on the server"}, " <filename>"},
	{prompt.Suggest{Text: "STAT", Description: "Show server statistics"}, ""},
	{prompt.Suggest{Text: "SYST", Description: "Show server system information"}, ""},
	{prompt.Suggest{Text: "QUIT", Description: "Disconnect from the server"}, ""},
	{prompt.Suggest{Text: "HELP", Description: "Show this help"}, ""},
}

var localCommands = []command{
	{prompt.Suggest{Text: "LOCAL_LS", Description: "List files in the local directory"}, ""},
	{prompt.Suggest{Text: "LOCAL_CD", Description: "Change the local directory"}, " <dir>"},
	{prompt.Suggest{Text: "LOCAL_PWD", Description: "Show the local directory"}, ""},
	{prompt.Suggest{Text: "EXIT", Description: "Close the client (same as QUIT)"}, ""},
}

// Completer suggests command names, then remote or local file names for
// the command's argument. Remote names come from the last listing the
// shell saw, so completing never talks to the server.
type Completer struct {
	shell    *Shell
	commands []prompt.Suggest
	remote   map[string]struct{}
}

func newCompleter(s *Shell) *Completer {
	c := &Completer{shell: s, remote: make(map[string]struct{})}
	for _, cmd := range serverCommands {
		c.commands = append(c.commands, cmd.Suggest)
	}
	for _, cmd := range localCommands {
		c.commands = append(c.commands, cmd.Suggest)
	}
	return c
}

// Complete implements prompt.Completer.
func (c *Completer) Complete(d prompt.Document) []prompt.Suggest {
	return c.suggest(d.TextBeforeCursor())
}

func (c *Completer) suggest(text string) []prompt.Suggest {
	words := strings.Fields(text)
	if len(words) == 0 || (len(words) == 1 && !strings.HasSuffix(text, " ")) {
		prefix := ""
		if len(words) == 1 {
			prefix = words[0]
		}
		return prompt.FilterHasPrefix(c.commands, prefix, true)
	}

	// Only the first argument is completed.
	if len(words) > 2 || (len(words) == 2 && strings.HasSuffix(text, " ")) {
		return nil
	}
	arg := ""
	if len(words) == 2 {
		arg = words[1]
	}

	switch strings.ToUpper(words[0]) {
	case "GET", "DEL":
		return prompt.FilterHasPrefix(c.remoteSuggestions(), arg, false)
	case "PUT":
		return prompt.FilterHasPrefix(c.localSuggestions(false), arg, false)
	case "LOCAL_CD":
		return prompt.FilterHasPrefix(c.localSuggestions(true), arg, false)
	}
	return nil
}

func (c *Completer) remoteSuggestions() []prompt.Suggest {
	names := make([]string, 0, len(c.remote))
	for name := range c.remote {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]prompt.Suggest, 0, len(names))
	for _, name := range names {
		out = append(out, prompt.Suggest{Text: name, Description: "remote file"})
	}
	return out
}

func (c *Completer) localSuggestions(dirsOnly bool) []prompt.Suggest {
	infos, err := afero.ReadDir(c.shell.fs, c.shell.dir)
	if err != nil {
		return nil
	}
	var out []prompt.Suggest
	for _, info := range infos {
		switch {
		case info.IsDir():
			out = append(out, prompt.Suggest{Text: info.Name(), Description: "local dir"})
		case !dirsOnly:
			out = append(out, prompt.Suggest{Text: info.Name(), Description: "local file"})
		}
	}
	return out
}

func (c *Completer) setRemote(entries []client.Entry) {
	c.remote = make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir {
			c.remote[e.Name] = struct{}{}
		}
	}
}

func (c *Completer) addRemote(name string) {
	c.remote[name] = struct{}{}
}

func (c *Completer) removeRemote(name string) {
	delete(c.remote, name)
}
