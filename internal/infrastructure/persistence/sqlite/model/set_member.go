package model

// SetMember is one element of a set-valued document field (for example a
// report's follower set). Membership changes are single-row inserts and
// deletes, which is what makes set updates atomic at the store layer.
type SetMember struct {
	Collection string `gorm:"column:collection;type:text;primaryKey"`
	DocID      string `gorm:"column:doc_id;type:text;primaryKey"`
	Field      string `gorm:"column:field;type:text;primaryKey"`
	Value      string `gorm:"column:value;type:text;primaryKey"`
}

func (SetMember) TableName() string {
	return "document_set_members"
}
