/*
Copyright 2016-2017 by Milo Christiansen

This software is provided 'as-is', without any express or implied warranty. In
no event will the authors be held liable for any damages arising from the use of
this software.

Permission is granted to anyone to use this software for any purpose, including
commercial applications, and to alter it and redistribute it freely, subject to
the following restrictions:

1. The origin of this software must not be misrepresented; you must not claim
that you wrote the original software. If you use this software in a product, an
acknowledgment in the product documentation would be appreciated but is not
required.

2. Altered source versions must be plainly marked as such, and must not be
misrepresented as being the original software.

3. This notice may not be removed or altered from any source distribution.
*/

package main

import "fmt"
import "io"
import "strings"

import "github.com/chzyer/readline"
import "github.com/spf13/cobra"

import "github.com/Elskom/luadec"
import "github.com/Elskom/luadec/ast"
import "github.com/Elskom/luadec/chunk"

const replHelp = `load <file>   load a binary chunk
src [path]    print the source of the chunk, or of a nested function ("0/1")
list [path]   print the disassembly listing
info          print the header and fingerprint
help          print this text
quit          leave
`

func newRepl() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Look at binary chunks interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rl, err := readline.New("luadec> ")
			if err != nil {
				return err
			}
			defer rl.Close()

			s := &session{}
			for {
				line, err := rl.Readline()
				if err != nil {
					// EOF or interrupt.
					return nil
				}
				if s.exec(cmd.OutOrStdout(), line) {
					return nil
				}
			}
		},
	}
}

// session is the state of a repl, the currently loaded chunk.
type session struct {
	name string
	data []byte
	c    *chunk.Chunk
}

// exec runs one command line, returning true if the repl should exit.
func (s *session) exec(w io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(w, replHelp)
	case "load":
		data, c, err := load(arg)
		if err != nil {
			fmt.Fprintln(w, err)
			return false
		}
		s.name, s.data, s.c = arg, data, c
		fmt.Fprintf(w, "loaded %v (%v)\n", arg, c.Header)
	case "src", "list", "info":
		if s.c == nil {
			fmt.Fprintln(w, "no chunk loaded")
			return false
		}
		if fields[0] == "info" {
			printInfo(w, s.data, s.c)
			return false
		}

		fn, err := functionAt(s.c.Main, arg)
		if err != nil {
			fmt.Fprintln(w, err)
			return false
		}
		if fields[0] == "list" {
			fmt.Fprint(w, fn.String())
			return false
		}
		if err := luadec.DecompileFunction(fn, ast.NewOutput(w), &luadec.Options{SkipFailed: true}); err != nil {
			fmt.Fprintln(w, err)
		}
	default:
		fmt.Fprintf(w, "unknown command %q, try help\n", fields[0])
	}
	return false
}
