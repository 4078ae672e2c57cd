// Package mocks provides test doubles for ports interfaces.
//
// These mocks are designed to be simple, thread-safe, in-memory implementations
// suitable for unit testing. Each mock provides:
//
//   - Default behavior that returns reasonable test values
//   - Callback functions (xxxFn) for customizing behavior per test
//   - Recorded calls for assertions
//
// # Usage Example
//
//	func TestMyService(t *testing.T) {
//		platform := mocks.NewPlatform()
//		platform.AddMessage(&domain.Message{ID: "m1", ChannelID: "c1", GuildID: "g1"})
//
//		svc := NewService(platform)
//		// ... test service behavior
//	}
//
// # Available Mocks
//
//   - Platform: implements ports.Platform
//   - CaseStore: implements ports.CaseStore
//   - DedupCache: implements ports.DedupCache
package mocks
