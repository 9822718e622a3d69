package wordledger

import "github.com/xraph/wordledger/id"

// ID is the identifier type for events, awards and snapshot revisions.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
