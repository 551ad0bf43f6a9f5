package bulkx

import "fmt"

// ShardID identifies one partition of a concrete index.
type ShardID struct {
	Index string
	ID    int
}

func (s ShardID) String() string {
	return fmt.Sprintf("[%s][%d]", s.Index, s.ID)
}
