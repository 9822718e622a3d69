package mongo

import "time"

// kvModel is one stored value. The key is the document id.
type kvModel struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}
