package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

// Banner printed by the CLI before a run
const Banner = `
  _                                                
 (_)_ __ ___   __ _ ___  ___ _ __ __ _ _ __   ___ _ __ 
 | | '_ ' _ \ / _' / __|/ __| '__/ _' | '_ \ / _ \ '__|
 | | | | | | | (_| \__ \ (__| | | (_| | |_) |  __/ |   
 |_|_| |_| |_|\__, |___/\___|_|  \__,_| .__/ \___|_|   
              |___/                   |_|              
`

// Color functions for terminal output
var (
	Cyan    = color.New(color.FgCyan).SprintFunc()
	Yellow  = color.New(color.FgYellow).SprintFunc()
	Red     = color.New(color.FgRed).SprintFunc()
	Green   = color.New(color.FgGreen).SprintFunc()
	Magenta = color.New(color.FgMagenta).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
)

// Output is where the printers write. Tests swap it.
var Output io.Writer = os.Stdout

// SetNoColor disables colors for both color libraries
func SetNoColor(disabled bool) {
	color.NoColor = disabled
	if disabled {
		pterm.DisableColor()
	} else {
		pterm.EnableColor()
	}
}

// PrintBanner prints the banner in cyan
func PrintBanner() {
	fmt.Fprint(Output, Cyan(Banner))
}

// PrintError prints an error message in red, with an optional cause
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(Output, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow, with an optional cause
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(Output, Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Output, Magenta(msg))
}
