package ui

import (
	"strings"

	"github.com/go-faster/errors"
)

type commandKind int

const (
	cmdImage commandKind = iota
	cmdName
	cmdBio
	cmdAvatar
	cmdLogout
	cmdRefresh
)

type command struct {
	kind commandKind
	arg  string
}

var commandNames = map[string]struct {
	kind     commandKind
	needsArg bool
}{
	"image":   {cmdImage, true},
	"name":    {cmdName, true},
	"bio":     {cmdBio, true},
	"avatar":  {cmdAvatar, true},
	"logout":  {cmdLogout, false},
	"refresh": {cmdRefresh, false},
}

// parseInput splits input into a slash command or plain text. A leading
// "//" escapes the slash and sends the rest as text.
func parseInput(text string) (cmd command, isCommand bool, err error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return command{}, false, nil
	}
	if strings.HasPrefix(text, "//") {
		return command{}, false, nil
	}

	name, arg, _ := strings.Cut(text[1:], " ")
	spec, ok := commandNames[strings.ToLower(name)]
	if !ok {
		return command{}, true, errors.Errorf("unknown command /%s", name)
	}
	arg = strings.TrimSpace(arg)
	if spec.needsArg && arg == "" {
		return command{}, true, errors.Errorf("/%s needs an argument", name)
	}
	return command{kind: spec.kind, arg: arg}, true, nil
}

// unescapeText drops the escape from "//text".
func unescapeText(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "//") {
		return text[1:]
	}
	return text
}
