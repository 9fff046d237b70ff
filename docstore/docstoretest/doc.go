// Package docstoretest starts document store backends for tests and checks
// them against the container contract.
//
//	func TestMyFeature(t *testing.T) {
//	    backend := docstoretest.SQLite(t, nil)
//	    coll := docstore.NewCollection(backend, table, logger.NewNop())
//	    // backend is stopped when the test ends
//	}
//
// Backend implementations run the shared contract suite:
//
//	func TestContract(t *testing.T) {
//	    docstoretest.RunContainerTests(t, func(t *testing.T, now func() time.Time) docstore.Backend {
//	        return docstoretest.Memory(t, now)
//	    })
//	}
package docstoretest
