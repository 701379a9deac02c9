/*
Package trigger serializes the handling of trigger states.

A Manager hands out per-key locks (reference counted, so unused keys are
garbage collected) and can back them with a ports.DistributedLocker so that
several bridge replicas subscribed to the same store agree on which one
handles a given trigger. Claim re-reads the trigger under the lock and skips
changes that were superseded or already acknowledged.
*/
package trigger
