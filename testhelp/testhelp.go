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

// Helper functions for tests.
package testhelp

import "strings"
import "testing"

// Assert fails the test and logs the message if "ok" is false.
//
// This is purely a lazy convenience.
func Assert(t *testing.T, ok bool, msg ...interface{}) {
	t.Helper()
	if !ok {
		t.Error(msg...)
	}
}

// Assertf fails the test and logs the message if "ok" is false.
//
// This is purely a lazy convenience.
func Assertf(t *testing.T, ok bool, format string, msg ...interface{}) {
	t.Helper()
	if !ok {
		t.Errorf(format, msg...)
	}
}

// AssertSource compares two blocks of source text, ignoring trailing white space on each line and
// leading/trailing blank lines.
func AssertSource(t *testing.T, got, want string) {
	t.Helper()
	if normalize(got) != normalize(want) {
		t.Errorf("Source mismatch.\n--- got:\n%v\n--- want:\n%v", got, want)
	}
}

func normalize(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}
	return strings.Join(lines, "\n")
}
