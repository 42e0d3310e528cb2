// storypipe-agent-sim is a stand-in for a real coding agent. It speaks
// the same invocation protocol (run verb, --model/--agent flags, prompt
// as the final positional argument) and lets tests and dry runs control
// its behavior through environment variables:
//
//	STORYPIPE_SIM_EXIT    exit code to return (default 0)
//	STORYPIPE_SIM_MARKER  file to create in the working directory,
//	                      containing the received prompt
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "run" {
		fmt.Fprintln(os.Stderr, "usage: storypipe-agent-sim run [--model m] [--agent a] <prompt>")
		os.Exit(2)
	}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	model := fs.String("model", "", "model identifier")
	agent := fs.String("agent", "", "agent identifier")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one prompt argument")
		os.Exit(2)
	}
	prompt := fs.Arg(0)

	fmt.Printf("agent-sim: model=%q agent=%q prompt=%d bytes\n", *model, *agent, len(prompt))

	if marker := os.Getenv("STORYPIPE_SIM_MARKER"); marker != "" {
		if !filepath.IsAbs(marker) {
			wd, _ := os.Getwd()
			marker = filepath.Join(wd, marker)
		}
		if err := os.WriteFile(marker, []byte(prompt), 0644); err != nil {
			fmt.Fprintln(os.Stderr, "agent-sim: writing marker:", err)
			os.Exit(1)
		}
	}

	if v := os.Getenv("STORYPIPE_SIM_EXIT"); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			fmt.Fprintln(os.Stderr, "agent-sim: invalid STORYPIPE_SIM_EXIT:", v)
			os.Exit(2)
		}
		os.Exit(code)
	}
}
