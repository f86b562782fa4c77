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

// The luadec command decompiles Lua 5.1 and 5.2 binary chunks, and has a few tools for looking at them.
package main

import "fmt"
import "io"
import "os"
import "strconv"
import "strings"

import "github.com/spf13/cobra"

import "github.com/Elskom/luadec"
import "github.com/Elskom/luadec/ast"
import "github.com/Elskom/luadec/chunk"

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "luadec:", err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "luadec",
		Short:         "Decompile Lua 5.1 and 5.2 binary chunks",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newDecompile(), newList(), newInfo(), newStrip(), newRepl())
	return root
}

type decompileOptions struct {
	output     string
	verify     bool
	skipFailed bool
	header     bool
	verbose    bool
}

func newDecompile() *cobra.Command {
	opts := new(decompileOptions)
	c := &cobra.Command{
		Use:   "decompile [flags] FILE...",
		Short: "Print the source of binary chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompile(cmd, opts, args)
		},
	}
	c.Flags().StringVarP(&opts.output, "output", "o", "", "write the source to `filename` instead of stdout")
	c.Flags().BoolVar(&opts.verify, "verify", false, "check that the output parses before writing it")
	c.Flags().BoolVar(&opts.skipFailed, "skip-failed", false, "print failing functions as stubs instead of stopping")
	c.Flags().BoolVar(&opts.header, "header", false, "start the output with a comment describing the chunk")
	c.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print chunk details to stderr")
	return c
}

func runDecompile(cmd *cobra.Command, opts *decompileOptions, files []string) error {
	var w io.Writer = cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	for _, name := range files {
		data, c, err := load(name)
		if err != nil {
			return err
		}
		if opts.verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v: %v sha3-256:%v\n", name, c.Header, chunk.Fingerprint(data))
		}

		out := ast.NewOutput(w)
		if opts.header {
			out.Println("-- " + name + ": " + c.Header.String())
			out.Println("-- sha3-256: " + chunk.Fingerprint(data))
		}
		err = luadec.DecompileChunk(c, out, &luadec.Options{SkipFailed: opts.skipFailed, Verify: opts.verify})
		if err != nil {
			return fmt.Errorf("%v: %w", name, err)
		}
	}
	return nil
}

func newList() *cobra.Command {
	return &cobra.Command{
		Use:   "list FILE",
		Short: "Print a disassembly listing of a binary chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := load(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), c.Main.String())
			return err
		},
	}
}

func newInfo() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print the header and fingerprint of a binary chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, c, err := load(args[0])
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), data, c)
			return nil
		},
	}
}

func printInfo(w io.Writer, data []byte, c *chunk.Chunk) {
	fmt.Fprintf(w, "header:    %v\n", c.Header)
	fmt.Fprintf(w, "functions: %v\n", countFunctions(c.Main))
	fmt.Fprintf(w, "sha3-256:  %v\n", chunk.Fingerprint(data))
}

func countFunctions(fn *chunk.Function) int {
	n := 1
	for _, p := range fn.Functions {
		n += countFunctions(p)
	}
	return n
}

func newStrip() *cobra.Command {
	var output string
	strip := &cobra.Command{
		Use:   "strip -o OUT FILE",
		Short: "Write a copy of a binary chunk without debug info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := load(args[0])
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := chunk.Write(f, c.Header, chunk.Strip(c.Main)); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	strip.Flags().StringVarP(&output, "output", "o", "", "write the stripped chunk to `filename`")
	strip.MarkFlagRequired("output")
	return strip
}

func load(name string) ([]byte, *chunk.Chunk, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, err
	}
	c, err := chunk.ReadBytes(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%v: %w", name, err)
	}
	return data, c, nil
}

// functionAt finds a nested function by its index path, "main/0/2" or just "0/2".
func functionAt(main *chunk.Function, path string) (*chunk.Function, error) {
	fn := main
	path = strings.TrimPrefix(strings.Trim(path, "/"), "main")
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 || i >= len(fn.Functions) {
			return nil, fmt.Errorf("no function %q in %q", part, path)
		}
		fn = fn.Functions[i]
	}
	return fn, nil
}
