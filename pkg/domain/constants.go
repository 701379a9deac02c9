package domain

// Well-known state keys read by the bridge, relative to the configured prefix.
const (
	// KeyURL is the trigger key. Writing a URL with Ack == false requests a capture.
	KeyURL = "url"
	// KeyFilename is the output path of the screenshot (required).
	KeyFilename = "filename"
	// KeyFullPage selects full scrollable page capture.
	KeyFullPage = "fullPage"

	KeyClipLeft   = "clipLeft"
	KeyClipTop    = "clipTop"
	KeyClipWidth  = "clipWidth"
	KeyClipHeight = "clipHeight"

	// KeyWaitForSelector is a CSS selector to await before capture.
	KeyWaitForSelector = "waitForSelector"
	// KeyRenderTime is a fixed delay in milliseconds to await before capture.
	KeyRenderTime = "renderTime"
)

// ConfigKeys lists every key the bridge consumes, in documentation order.
var ConfigKeys = []string{
	KeyURL,
	KeyFilename,
	KeyFullPage,
	KeyClipLeft,
	KeyClipTop,
	KeyClipWidth,
	KeyClipHeight,
	KeyWaitForSelector,
	KeyRenderTime,
}
