/*
Package shutter is a state-driven screenshot bridge.

It watches a key-value state store for writes to the "url" key. Every
unacknowledged, truthy write is a capture request: the bridge loads the URL in
a shared headless browser, waits for the network to settle and for an optional
selector or render delay, writes a screenshot to the configured file and then
writes the same URL back with ack=true.

# Concept

Commands and confirmations share one key. An operator (or another service)
writes

	url = "https://example.com"  (ack=false)

and the bridge answers with

	url = "https://example.com"  (ack=true)

once the image is on disk. Capture parameters are read from sibling keys at the
moment the trigger is handled: filename, fullPage, clipLeft, clipTop,
clipWidth, clipHeight, waitForSelector and renderTime.

Failures are logged with their URL and never retried; the trigger simply stays
unacknowledged.

# Architecture

The Bridge owns a single browser session and a bounded trigger queue drained
by one worker, so captures never overlap. The state store, the browser engine
and the distributed lock are ports (see pkg/ports), with adapters for memory,
Redis, chromedp and playwright under pkg/adapters.

# Usage

	store := memory.NewStore()
	bridge := shutter.New(store, chrome.NewLauncher(chrome.Config{Headless: true}),
		shutter.WithLogger(slog.Default()),
	)
	if err := bridge.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer bridge.Stop(context.Background())

	_ = store.SetState(ctx, "filename", domain.NewState("/tmp/shot.png", true))
	_ = bridge.Trigger(ctx, "https://example.com")
*/
package shutter
