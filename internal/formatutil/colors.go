// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package formatutil manipulates string colors and other formatting operations.
package formatutil

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// ColorMode controls when colors are applied
type ColorMode int32

const (
	// ColorAuto colors the output only when the standard output is a terminal
	ColorAuto ColorMode = iota
	// ColorAlways always colors the output
	ColorAlways
	// ColorNever never colors the output
	ColorNever
)

var mode atomic.Int32

var (
	Bold   = Color("\033[1m%s\033[0m")
	Faint  = Color("\033[2m%s\033[0m")
	Red    = Color("\033[1;31m%s\033[0m")
	Green  = Color("\033[1;32m%s\033[0m")
	Yellow = Color("\033[1;33m%s\033[0m")
)

// SetColorMode sets when the color functions apply colors. The default is ColorAuto.
func SetColorMode(m ColorMode) {
	mode.Store(int32(m))
}

func colorEnabled() bool {
	switch ColorMode(mode.Load()) {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// Color returns a function that formats its arguments like fmt.Sprint, wrapped in the color escape sequence when
// colors are enabled.
func Color(colorString string) func(...interface{}) string {
	result := func(args ...interface{}) string {
		if colorEnabled() {
			return fmt.Sprintf(colorString,
				fmt.Sprint(args...))
		} else {
			return fmt.Sprint(args...)
		}
	}
	return result
}

// Sanitize is a simple sanitizer that removes all escape sequences
func Sanitize(s string) string {
	r := fmt.Sprintf("%q", s)
	if len(r) >= 2 {
		return r[1 : len(r)-1]
	} else {
		return r
	}
}
