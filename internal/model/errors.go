//go:build native

package model

import "errors"

// LoadError sentinels. Wrapped with fmt.Errorf("%w: ...", Err...) at the
// call site so callers can errors.Is against the stable sentinel while still
// getting a descriptive message.
var (
	ErrOpenFileFailed           = errors.New("could not open model file")
	ErrNoParentPath             = errors.New("no parent path for model file")
	ErrReadExactFailed          = errors.New("unable to read the requested number of bytes")
	ErrInvalidUtf8              = errors.New("could not convert bytes to a UTF-8 string")
	ErrInvalidIntegerConversion = errors.New("invalid integer conversion")
	ErrUnversionedMagic         = errors.New("unversioned magic number, regenerate the model")
	ErrInvalidMagic             = errors.New("invalid magic number")
	ErrInvalidFormatVersion     = errors.New("invalid file format version")
	ErrHyperparametersF16Invalid = errors.New("invalid ftype value in hyperparameters")
	ErrUnknownTensor            = errors.New("unknown tensor name")
	ErrTensorWrongSize          = errors.New("tensor has the wrong size")
	ErrInvalidFtype             = errors.New("invalid ftype for tensor")
)
