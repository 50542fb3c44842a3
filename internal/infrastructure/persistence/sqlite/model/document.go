package model

// Document is one row of the collection-oriented store. Body holds the
// non-set fields as JSON; set-valued fields live in SetMember rows.
// CreatedAt/UpdatedAt are denormalized copies of the body timestamps kept as
// sortable RFC 3339 text.
type Document struct {
	Collection string `gorm:"column:collection;type:text;primaryKey"`
	DocID      string `gorm:"column:doc_id;type:text;primaryKey"`
	Body       string `gorm:"column:body;type:text;not null"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null;index:idx_documents_order,priority:2"`
	UpdatedAt  string `gorm:"column:updated_at;type:text;not null"`
}

func (Document) TableName() string {
	return "documents"
}
