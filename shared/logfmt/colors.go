package logfmt

import "github.com/muesli/termenv"

// Color is the color interface StyleConfig's foreground/background
// fields accept -- termenv's, since every style ultimately renders
// through a termenv.Output in Formatter.Format.
type Color = termenv.Color

// ANSI-16 palette used by defaultStyle. Named here rather than spelled
// out as termenv.ANSI* at each call site in styleconfig.go.
const (
	ANSIBlack         = termenv.ANSIBlack
	ANSIRed           = termenv.ANSIRed
	ANSIGreen         = termenv.ANSIGreen
	ANSIYellow        = termenv.ANSIYellow
	ANSIBlue          = termenv.ANSIBlue
	ANSIMagenta       = termenv.ANSIMagenta
	ANSICyan          = termenv.ANSICyan
	ANSIWhite         = termenv.ANSIWhite
	ANSIBrightBlack   = termenv.ANSIBrightBlack
	ANSIBrightRed     = termenv.ANSIBrightRed
	ANSIBrightGreen   = termenv.ANSIBrightGreen
	ANSIBrightYellow  = termenv.ANSIBrightYellow
	ANSIBrightBlue    = termenv.ANSIBrightBlue
	ANSIBrightMagenta = termenv.ANSIBrightMagenta
	ANSIBrightCyan    = termenv.ANSIBrightCyan
	ANSIBrightWhite   = termenv.ANSIBrightWhite
)
