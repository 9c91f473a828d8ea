// internal/storage/models/base.go
package models

import "time"

// BaseModel carries the columns every journal row has.
type BaseModel struct {
	ID        uint64
	CreatedAt time.Time
}
