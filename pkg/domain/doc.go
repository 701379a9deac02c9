/*
Package domain contains the core domain models of the screenshot bridge.

It defines the values exchanged with the external state store, the capture
parameters assembled from configuration, and the lifecycle vocabulary used by
the sequencer and the browser session. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - State: A value held by the state store together with its acknowledgement flag.
  - CaptureRequest: Where to write the screenshot and which region to capture.
  - WaitStrategy: What to wait for between navigation and capture.
  - Phase / SessionStatus: The per-request and per-session state machines.
*/
package domain
