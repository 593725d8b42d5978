package desks

// Record is the persisted form of a desk-owned question copy. The desk
// column discriminates the three working areas; asset_ref binds tracked
// copies to their canonical origin and stays empty for desk-authored
// records.
type Record struct {
	RecordID         string `gorm:"column:record_id;primaryKey;size:190;not null"`
	Desk             string `gorm:"column:desk;primaryKey;size:16;not null;index:idx_desk_records_ref,priority:1"`
	CourseID         string `gorm:"column:course_id;size:190;not null;default:''"`
	GroupID          string `gorm:"column:group_id;size:190;not null;default:''"`
	CategoryID       string `gorm:"column:category_id;size:190;not null;default:''"`
	CreatedBy        string `gorm:"column:created_by;size:190;not null;default:''"`
	Marks            int    `gorm:"column:marks;not null;default:0"`
	AssetRef         string `gorm:"column:asset_ref;size:400;not null;default:'';index:idx_desk_records_ref,priority:2"`
	Question         string `gorm:"column:question;type:text;not null"`
	OptionsJSON      string `gorm:"column:options_json;type:text;not null"`
	CorrectIndex     int    `gorm:"column:correct_index;not null;default:0"`
	Explanation      string `gorm:"column:explanation;type:text;not null;default:''"`
	Difficulty       string `gorm:"column:difficulty;size:16;not null;default:''"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "desk_records"
}
