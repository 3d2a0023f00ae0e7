package io

import (
	"errors"

	"github.com/ezrec/lc3/translate"
)

var f = translate.From

var (
	// Console errors
	ErrConsoleMode = errors.New(f("console mode"))
	ErrConsolePoll = errors.New(f("console poll"))
)
