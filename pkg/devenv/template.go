package devenv

import (
	"bufio"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

//go:embed templates/flake.tmpl.nix
var flakeTemplate string

//go:embed templates/direnvrc
var direnvrcTemplate string

//go:embed all:init
var projectFiles embed.FS

const directiveVersionPrefix = "export DEVENV_DIRENVRC_VERSION="

// DirenvRC returns the direnv integration served by this binary
var DirenvRC = sync.OnceValue(func() string {
	return strings.Replace(direnvrcTemplate,
		"DEVENV_DIRENVRC_ROLLING_UPGRADE=0", "DEVENV_DIRENVRC_ROLLING_UPGRADE=1", 1)
})

// DirenvRCVersion returns the directive version declared by DirenvRC
var DirenvRCVersion = sync.OnceValue(func() int {
	scanner := bufio.NewScanner(strings.NewReader(direnvrcTemplate))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if v, ok := strings.CutPrefix(line, directiveVersionPrefix); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				panic(fmt.Sprintf("invalid direnvrc version %q", v))
			}
			return n
		}
	}
	panic("direnvrc does not declare " + directiveVersionPrefix)
})

type flakeVars struct {
	System        string
	Root          string
	DotfileName   string
	ContainerName string
	Tmp           string
	Runtime       string
	Testing       bool
}

func (v flakeVars) render() string {
	container := "null"
	if v.ContainerName != "" {
		container = `"` + v.ContainerName + `"`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "version = %q;\n", Version)
	fmt.Fprintf(&b, "system = \"%s\";\n", v.System)
	fmt.Fprintf(&b, "devenv_root = \"%s\";\n", v.Root)
	fmt.Fprintf(&b, "devenv_dotfile = ./%s;\n", v.DotfileName)
	fmt.Fprintf(&b, "devenv_dotfile_string = \"%s\";\n", v.DotfileName)
	fmt.Fprintf(&b, "container_name = %s;\n", container)
	fmt.Fprintf(&b, "devenv_tmpdir = \"%s\";\n", v.Tmp)
	fmt.Fprintf(&b, "devenv_runtime = \"%s\";\n", v.Runtime)
	fmt.Fprintf(&b, "devenv_istesting = %t;\n", v.Testing)
	fmt.Fprintf(&b, "devenv_direnvrc_latest_version = %d;\n", DirenvRCVersion())
	return b.String()
}

// renderFlake substitutes the variables into every placeholder of the template
func renderFlake(v flakeVars) string {
	return strings.ReplaceAll(flakeTemplate, "__DEVENV_VARS__", v.render())
}
