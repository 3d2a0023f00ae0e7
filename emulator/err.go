package emulator

import (
	"github.com/ezrec/lc3/translate"
)

var f = translate.From

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	Pc     uint16
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo == 0 {
		return f("pc 0x%04x %v", err.Pc, err.Err)
	}
	return f("line %d pc 0x%04x %v", err.LineNo, err.Pc, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}

// ErrImage indicates the image file that failed to load.
type ErrImage struct {
	Path string
	Err  error
}

func (err *ErrImage) Error() string {
	return f("%v: %v", err.Path, err.Err)
}

func (err *ErrImage) Unwrap() error {
	return err.Err
}
