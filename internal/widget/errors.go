package widget

import "errors"

var (
	// ErrMissingWidgetID indicates a snapshot was requested without a widget identifier.
	ErrMissingWidgetID = errors.New("widget: missing widget id")
	// ErrEncodeSnapshot indicates the snapshot could not be serialized into the script.
	ErrEncodeSnapshot = errors.New("widget: encode snapshot")
	// ErrRenderScript indicates the runtime template failed to execute.
	ErrRenderScript = errors.New("widget: render script")
)
