/*
Package ports defines the driven ports (interfaces) of the screenshot bridge.

These interfaces decouple the capture pipeline from external implementations,
allowing the bridge to work with various state stores and browser engines.

# Key Interfaces

  - StateStore: Holds configuration values and trigger states, and notifies subscribers of writes.
  - ConfigReader: The narrow read capability the configuration resolver depends on.
  - Launcher / Browser / Page: The headless browser capability (navigate, wait, capture).
  - DistributedLocker: Provides distributed locking so replicas never capture the same trigger twice.
*/
package ports
