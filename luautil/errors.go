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

package luautil

import "errors"
import "fmt"

type ErrType int

// Error types.
const (
	ErrTypUndefined     ErrType = iota // Anything that does not fit a category.
	ErrTypMajorInternal                // Errors that should not happen, ever.

	ErrTypHeader    // Bad signature, version, format, endianness or widths. Fatal for the whole chunk.
	ErrTypDecode    // Unknown opcode or a truncated/invalid function body.
	ErrTypStructure // An instruction pattern the block engine has no classification for.

	ErrTypWrapped // An error from some other library wrapped into a standard Error.
	ErrTypEvil    // If something panics with a non-error value, it will be wrapped with this type.
)

var typNames = [...]string{
	"undefined",
	"internal",
	"header",
	"decode",
	"structure",
	"wrapped",
	"evil",
}

func (typ ErrType) String() string {
	if typ < 0 || int(typ) >= len(typNames) {
		return "unknown"
	}
	return typNames[typ]
}

// Error is used for any and every error that is produced by the decompiler and its peripherals.
type Error struct {
	Err  error
	Msg  string
	Type ErrType

	// The nested function path the error happened in ("main", "main/0/2"), if known.
	Trace string

	// 1-based program point inside that function, 0 if the error is not tied to an instruction.
	Line int
}

// Error formats an Error like so:
//
//	<Msg> (at <Trace>:<Line>): <Err.Error()>
//
// If any of the parts are missing they are elided, in the extreme case of an empty error the message will be:
//
//	Unspecified error
func (err Error) Error() string {
	msg := "Unspecified error"
	if err.Msg != "" {
		msg = err.Msg
	}
	if err.Type == ErrTypMajorInternal {
		msg = "Major internal error, this indicates a decompiler bug! " + msg
	}

	at := ""
	switch {
	case err.Trace != "" && err.Line > 0:
		at = fmt.Sprintf(" (at %v:%v)", err.Trace, err.Line)
	case err.Trace != "":
		at = " (at " + err.Trace + ")"
	case err.Line > 0:
		at = fmt.Sprintf(" (at instruction %v)", err.Line)
	}

	errmsg := ""
	if err.Err != nil {
		errmsg = ": " + err.Err.Error()
	}

	return msg + at + errmsg
}

func (err Error) Unwrap() error {
	return err.Err
}

// TypeOf returns the ErrType of err, looking through wrapping. Errors that are not an Error are ErrTypUndefined.
func TypeOf(err error) ErrType {
	var e Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrTypUndefined
}

// Raise converts a string to a Error and then panics with it.
func Raise(msg string, typ ErrType) {
	panic(Error{Msg: msg, Type: typ})
}

// RaiseAt is Raise with a program point attached.
func RaiseAt(line int, typ ErrType, format string, v ...interface{}) {
	panic(Error{Msg: fmt.Sprintf(format, v...), Type: typ, Line: line})
}

// RaiseExisting converts an error to a Error then panics with it.
func RaiseExisting(err error, msg string) {
	panic(Error{Msg: msg, Type: ErrTypWrapped, Err: err})
}

// Recover converts a recovered panic value into an error. Existing Errors are passed through with trace
// filled in if they do not already have one.
func Recover(r interface{}, trace string) error {
	switch e := r.(type) {
	case nil:
		return nil
	case Error:
		if e.Trace == "" {
			e.Trace = trace
		}
		return e
	case error:
		return Error{Msg: "Unexpected failure", Err: e, Type: ErrTypWrapped, Trace: trace}
	default:
		return Error{Msg: fmt.Sprint(e), Type: ErrTypEvil, Trace: trace}
	}
}
