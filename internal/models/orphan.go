package models

// OrphanReport names a record whose foreign-key field resolves to nothing.
type OrphanReport struct {
	EntityType    string `json:"entityType"`
	EntityID      ID     `json:"entityId"`
	DanglingField string `json:"danglingField"`
	DanglingValue ID     `json:"danglingValue"`
}

// Reference declares one foreign key checked by the consistency audit.
type Reference struct {
	Source Collection
	Field  string
	Target Collection
}

// References lists the foreign keys of the identity graph in audit order.
func References() []Reference {
	return []Reference{
		{Source: CollectionParentProfiles, Field: FieldUserID, Target: CollectionUsers},
		{Source: CollectionTeacherProfiles, Field: FieldUserID, Target: CollectionUsers},
		{Source: CollectionChildProfiles, Field: FieldParentID, Target: CollectionParentProfiles},
		{Source: CollectionClassrooms, Field: FieldTeacherID, Target: CollectionTeacherProfiles},
	}
}

// ReferenceSummary counts candidates and orphans for one foreign key.
type ReferenceSummary struct {
	EntityType string `json:"entityType"`
	Field      string `json:"field"`
	Checked    int    `json:"checked"`
	Orphans    int    `json:"orphans"`
}
