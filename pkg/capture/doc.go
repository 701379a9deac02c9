/*
Package capture implements the screenshot pipeline of the bridge.

The Resolver assembles a domain.CaptureRequest and a domain.WaitStrategy from
discrete configuration values. The Sequencer drives one capture end-to-end
against the shared browser Session:

	resolve -> open page -> navigate -> wait -> capture -> acknowledge -> close page

Every failure is wrapped in a domain.CaptureError whose kind (ErrConfiguration,
ErrNavigation, ErrWait, ErrCapture) can be matched with errors.Is. The page is
closed on every path.
*/
package capture
