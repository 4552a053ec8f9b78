package ir

// Record is an immutable entity record. An update produces a new Record
// whose RevisionOf names the logical entity id.
type Record struct {
	ID         Hash        `json:"id"`
	Content    string      `json:"content"`
	Author     IdentityKey `json:"author"`
	CreatedAt  Timestamp   `json:"created_at"`
	Seq        int64       `json:"seq"`
	RevisionOf Hash        `json:"revision_of,omitempty"`
}

// IsOriginal reports whether r is the creation record of its entity.
func (r Record) IsOriginal() bool {
	return r.RevisionOf == ""
}

// Entity is the derived logical view of a versioned entity. Creator and
// CreatedAt always come from the original record.
type Entity struct {
	ID        Hash        `json:"id"`
	RecordID  Hash        `json:"record_id"`
	Content   string      `json:"content"`
	Creator   IdentityKey `json:"creator"`
	CreatedAt Timestamp   `json:"created_at"`
	UpdatedAt *Timestamp  `json:"updated_at,omitempty"`
}

// Meta returns the denormalizable creation metadata of e.
func (e Entity) Meta() EntityMeta {
	return EntityMeta{CreatedAt: e.CreatedAt, Creator: e.Creator}
}

// OriginalView builds the logical view of an original record.
func OriginalView(r Record) Entity {
	return Entity{
		ID:        r.ID,
		RecordID:  r.ID,
		Content:   r.Content,
		Creator:   r.Author,
		CreatedAt: r.CreatedAt,
	}
}

// RevisionView builds the logical view of rev as a revision of original.
func RevisionView(original, rev Record) Entity {
	updated := rev.CreatedAt
	return Entity{
		ID:        original.ID,
		RecordID:  rev.ID,
		Content:   rev.Content,
		Creator:   original.Author,
		CreatedAt: original.CreatedAt,
		UpdatedAt: &updated,
	}
}
