// Package storetest provides a conformance test suite for objectstore.Store
// implementations.
//
// Every backend runs the same suite so the local cluster behaves the same
// regardless of where objects land:
//
//	func TestConformance(t *testing.T) {
//		storetest.RunConformanceSuite(t, func(t *testing.T) objectstore.Store {
//			return memory.New()
//		})
//	}
//
// The factory is called once per subtest and must return an empty store.
// The suite closes the store when the subtest finishes.
package storetest
