package proseql

import "github.com/proseql/proseql/internal/docval"

// Record is one entity: a string-keyed document value. Inputs to CRUD
// operations and query results are both Records.
type Record = docval.Map
