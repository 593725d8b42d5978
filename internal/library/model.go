package library

// Asset is the persisted form of a canonical asset. The ordered question
// sequence is stored as a JSON payload, matching how desk payloads travel to
// the remote document store.
type Asset struct {
	AssetID          string `gorm:"column:asset_id;primaryKey;size:190;not null"`
	Kind             string `gorm:"column:kind;size:32;not null;index"`
	Title            string `gorm:"column:title;size:320;not null;default:''"`
	Position         int64  `gorm:"column:position;not null;default:0;index"`
	QuestionsJSON    string `gorm:"column:questions_json;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Asset) TableName() string {
	return "library_assets"
}
